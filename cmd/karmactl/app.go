package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/sakif/karma-feed/internal/auth"
	"github.com/sakif/karma-feed/internal/config"
	"github.com/sakif/karma-feed/internal/repository"
	"github.com/sakif/karma-feed/internal/server"
	"github.com/sakif/karma-feed/internal/service"
)

// ctl holds what every command needs. Before fills it in; After releases
// the store.
type ctl struct {
	out    io.Writer
	cfg    *config.Config
	logger *slog.Logger
	store  repository.Store
}

func newApp(out, logOut io.Writer) *cli.App {
	c := &ctl{out: out}

	app := cli.NewApp()
	app.Name = "karmactl"
	app.Usage = "manage users and inspect leaderboards"
	app.Writer = out
	app.ErrWriter = logOut
	app.Action = cli.ShowAppHelp
	app.Before = func(cctx *cli.Context) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		c.cfg = cfg
		c.logger = cfg.NewLogger(logOut)

		store, err := server.OpenStore(cctx.Context, cfg, c.logger)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		c.store = store
		return nil
	}
	app.After = func(*cli.Context) error {
		if c.store != nil {
			return c.store.Close()
		}
		return nil
	}

	idFlag := &cli.StringFlag{Name: "id", Usage: "user ID", Required: true}
	ttlFlag := &cli.DurationFlag{Name: "ttl", Usage: "token lifetime (default JWT_TTL)"}
	limitFlag := &cli.IntFlag{Name: "limit", Usage: "number of rows (default from config)"}

	app.Commands = []*cli.Command{
		{
			Name:        "migrate",
			Usage:       "Apply the database schema",
			Category:    "Database",
			Description: `Opening the store applies the schema idempotently; this command does only that.`,
			Action:      c.migrate,
		},
		{
			Name:     "user",
			Usage:    "Manage users",
			Category: "Users",
			Subcommands: []*cli.Command{
				{
					Name:   "create",
					Usage:  "Create a user and print a bearer token",
					Action: c.createUser,
					Flags: []cli.Flag{
						&cli.StringFlag{Name: "username", Required: true},
						&cli.StringFlag{Name: "email", Required: true},
						ttlFlag,
					},
				},
				{
					Name:   "token",
					Usage:  "Issue a new bearer token for an existing user",
					Action: c.issueToken,
					Flags:  []cli.Flag{idFlag, ttlFlag},
				},
				{
					Name:        "delete",
					Usage:       "Delete a user with their posts and likes",
					Description: `Points other users earned from the deleted content are kept.`,
					Action:      c.deleteUser,
					Flags:       []cli.Flag{idFlag},
				},
			},
		},
		{
			Name:     "leaderboard",
			Usage:    "Print a leaderboard",
			Category: "Leaderboards",
			Subcommands: []*cli.Command{
				{
					Name:   "points",
					Usage:  "Users by all-time points",
					Action: c.leaderboardPoints,
					Flags:  []cli.Flag{limitFlag},
				},
				{
					Name:   "recent",
					Usage:  "Users by karma from likes inside a window",
					Action: c.leaderboardRecent,
					Flags: []cli.Flag{
						&cli.IntFlag{Name: "hours", Usage: "window in hours (default LEADERBOARD_WINDOW)"},
						limitFlag,
					},
				},
			},
		},
	}
	return app
}

func (c *ctl) authService() (*service.AuthService, error) {
	tokens, err := auth.NewTokenService(c.cfg.JWTSecret, c.cfg.JWTTTL)
	if err != nil {
		return nil, err
	}
	return service.NewAuthService(c.store, tokens, c.logger), nil
}

func (c *ctl) leaderboards() *service.LeaderboardService {
	return service.NewLeaderboardService(c.store, c.cfg.KarmaPolicy(), service.LeaderboardDefaults{
		WindowHours: c.cfg.LeaderboardWindowHours(),
		RecentLimit: c.cfg.LeaderboardLimit,
		PointsLimit: c.cfg.UserLeaderboardLimit,
	}, c.logger)
}

func (c *ctl) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
