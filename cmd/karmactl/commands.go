package main

import (
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/sakif/karma-feed/internal/model"
	"github.com/sakif/karma-feed/internal/service"
)

type tokenOutput struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// tokenTTL reads --ttl. Zero keeps JWT_TTL; a negative lifetime would print
// a token that is already expired.
func tokenTTL(cctx *cli.Context) (time.Duration, error) {
	ttl := cctx.Duration("ttl")
	if ttl < 0 {
		return 0, fmt.Errorf("--ttl must not be negative, got %s", ttl)
	}
	return ttl, nil
}

func (c *ctl) migrate(cctx *cli.Context) error {
	if err := c.store.Ping(cctx.Context); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.out, "schema up to date (%s)\n", c.cfg.DBDriver)
	return err
}

func (c *ctl) createUser(cctx *cli.Context) error {
	ttl, err := tokenTTL(cctx)
	if err != nil {
		return err
	}

	users := service.NewUserService(c.store, c.logger)
	user, err := users.Create(cctx.Context, cctx.String("username"), cctx.String("email"))
	if err != nil {
		return err
	}

	issuer, err := c.authService()
	if err != nil {
		return err
	}
	res, err := issuer.IssueToken(cctx.Context, user.ID, ttl)
	if err != nil {
		return err
	}
	return c.print(tokenOutput{User: res.User, Token: res.Token})
}

func (c *ctl) issueToken(cctx *cli.Context) error {
	ttl, err := tokenTTL(cctx)
	if err != nil {
		return err
	}
	issuer, err := c.authService()
	if err != nil {
		return err
	}
	res, err := issuer.IssueToken(cctx.Context, cctx.String("id"), ttl)
	if err != nil {
		return err
	}
	return c.print(tokenOutput{User: res.User, Token: res.Token})
}

func (c *ctl) deleteUser(cctx *cli.Context) error {
	id := cctx.String("id")
	if err := service.NewUserService(c.store, c.logger).Delete(cctx.Context, id); err != nil {
		return err
	}
	_, err := fmt.Fprintf(c.out, "deleted user %s\n", id)
	return err
}

func (c *ctl) leaderboardPoints(cctx *cli.Context) error {
	users, err := c.leaderboards().ByTotalPoints(cctx.Context, cctx.Int("limit"))
	if err != nil {
		return err
	}
	return c.print(users)
}

func (c *ctl) leaderboardRecent(cctx *cli.Context) error {
	entries, err := c.leaderboards().ByRecentKarma(cctx.Context, cctx.Int("hours"), cctx.Int("limit"))
	if err != nil {
		return err
	}
	return c.print(entries)
}
