// Package config loads server configuration from environment variables.
//
// Every setting has a default except JWT_SECRET, so a bare
// `JWT_SECRET=... go run ./cmd/server` starts against a local SQLite file.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/sakif/karma-feed/internal/ledger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds every setting the server and the CLI read.
type Config struct {
	// --- HTTP ---
	Port int `envconfig:"PORT" default:"8080"`

	// --- Storage ---
	DBDriver    string `envconfig:"DB_DRIVER" default:"sqlite"`
	DBPath      string `envconfig:"DB_PATH" default:"data/karma.db"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`

	// --- Auth ---
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`

	// --- Logging ---
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	// --- Karma policy ---
	TopLevelPostReward int `envconfig:"KARMA_TOP_LEVEL_POST_REWARD" default:"5"`
	ReplyReward        int `envconfig:"KARMA_REPLY_REWARD" default:"2"`
	TopLevelLikeWeight int `envconfig:"KARMA_TOP_LEVEL_LIKE_WEIGHT" default:"5"`
	ReplyLikeWeight    int `envconfig:"KARMA_REPLY_LIKE_WEIGHT" default:"1"`

	// --- Read path ---
	LeaderboardWindow    time.Duration `envconfig:"LEADERBOARD_WINDOW" default:"24h"`
	LeaderboardLimit     int           `envconfig:"LEADERBOARD_LIMIT" default:"5"`
	UserLeaderboardLimit int           `envconfig:"USER_LEADERBOARD_LIMIT" default:"10"`
	ThreadMaxDepth       int           `envconfig:"THREAD_MAX_DEPTH" default:"50"`
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: reading environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT must be between 1 and 65535")
	}
	switch c.DBDriver {
	case DriverSQLite:
		if strings.TrimSpace(c.DBPath) == "" {
			return fmt.Errorf("config: DB_PATH is required for the sqlite driver")
		}
	case DriverPostgres:
		if strings.TrimSpace(c.DatabaseURL) == "" {
			return fmt.Errorf("config: DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("config: unknown DB_DRIVER %q", c.DBDriver)
	}
	if c.DBMaxConns <= 0 {
		return fmt.Errorf("config: DB_MAX_CONNS must be > 0")
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("config: JWT_SECRET must be at least 16 characters")
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("config: JWT_TTL must be positive")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("config: LOG_FORMAT must be text or json")
	}
	if err := c.KarmaPolicy().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.LeaderboardWindow < time.Hour || c.LeaderboardWindow%time.Hour != 0 {
		return fmt.Errorf("config: LEADERBOARD_WINDOW must be a whole number of hours, got %s", c.LeaderboardWindow)
	}
	if c.LeaderboardLimit <= 0 || c.UserLeaderboardLimit <= 0 {
		return fmt.Errorf("config: leaderboard limits must be positive")
	}
	if c.ThreadMaxDepth <= 0 {
		return fmt.Errorf("config: THREAD_MAX_DEPTH must be positive")
	}
	return nil
}

// KarmaPolicy assembles the ledger's reward constants.
func (c *Config) KarmaPolicy() ledger.Policy {
	return ledger.Policy{
		TopLevelPostReward: c.TopLevelPostReward,
		ReplyReward:        c.ReplyReward,
		TopLevelLikeWeight: c.TopLevelLikeWeight,
		ReplyLikeWeight:    c.ReplyLikeWeight,
	}
}

// SlogLevel parses LOG_LEVEL.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: invalid LOG_LEVEL %q", c.LogLevel)
	}
	return level, nil
}

// LeaderboardWindowHours is LEADERBOARD_WINDOW in hours. Validate has
// already rejected windows that are not whole hours.
func (c *Config) LeaderboardWindowHours() int {
	return int(c.LeaderboardWindow / time.Hour)
}

// NewLogger builds the process logger: a text handler by default, JSON when
// LOG_FORMAT=json. Validate has already rejected an unknown level.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, _ := c.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
