// Command karmactl is the operator CLI for the karma feed.
//
// Accounts have no HTTP registration or login; operators create users here
// and hand out the bearer token it prints.
//
//	karmactl migrate
//	karmactl user create --username alice --email alice@example.com
//	karmactl user token --id <user id> --ttl 720h
//	karmactl user delete --id <user id>
//	karmactl leaderboard points --limit 10
//	karmactl leaderboard recent --hours 24 --limit 5
//
// Configuration comes from the same environment variables as the server.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "karmactl:", err)
		os.Exit(1)
	}
}
