package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sakif/karma-feed/internal/ledger"
	"github.com/sakif/karma-feed/internal/model"
	"github.com/sakif/karma-feed/internal/repository"
	"github.com/sakif/karma-feed/internal/repository/sqlite"
)

// =========================================================================
// TEST HELPERS
// =========================================================================
//
// Service tests run against a real in-memory SQLite store rather than a
// hand-written fake: the properties under test (relative increments,
// rollback, cascade) live in the storage layer as much as in the service.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testPolicies are the reward schemes every karma test runs under. They
// include the historical 5/2 + 5/1 scheme and two others, so no test
// depends on one set of constants.
var testPolicies = map[string]ledger.Policy{
	"default":   ledger.DefaultPolicy(),
	"ten-five":  {TopLevelPostReward: 10, ReplyReward: 5, TopLevelLikeWeight: 10, ReplyLikeWeight: 5},
	"five-one":  {TopLevelPostReward: 5, ReplyReward: 1, TopLevelLikeWeight: 3, ReplyLikeWeight: 1},
	"no-reward": {TopLevelPostReward: 0, ReplyReward: 1, TopLevelLikeWeight: 2, ReplyLikeWeight: 1},
}

func forEachPolicy(t *testing.T, fn func(t *testing.T, policy ledger.Policy)) {
	for name, policy := range testPolicies {
		t.Run(name, func(t *testing.T) {
			fn(t, policy)
		})
	}
}

func newTestStore(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(":memory:", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newFileTestStore(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.New(filepath.Join(t.TempDir(), "karma.db"), testLogger())
	require.NoError(t, err)
	db.SetMaxOpenConns(8)
	t.Cleanup(func() { db.Close() })
	return db
}

// env bundles every service over one store.
type env struct {
	store       repository.Store
	policy      ledger.Policy
	users       *UserService
	posts       *PostService
	likes       *LikeService
	leaderboard *LeaderboardService
}

func newEnv(t *testing.T, store repository.Store, policy ledger.Policy, opts ...Option) *env {
	t.Helper()
	l, err := ledger.New(policy, testLogger())
	require.NoError(t, err)
	return &env{
		store:       store,
		policy:      policy,
		users:       NewUserService(store, testLogger()),
		posts:       NewPostService(store, l, testLogger(), 50),
		likes:       NewLikeService(store, l, testLogger(), opts...),
		leaderboard: NewLeaderboardService(store, policy, LeaderboardDefaults{}, testLogger(), opts...),
	}
}

func (e *env) user(t *testing.T, name string) *model.User {
	t.Helper()
	u, err := e.users.Create(context.Background(), name, name+"@example.com")
	require.NoError(t, err)
	return u
}

func (e *env) post(t *testing.T, author *model.User, parent *model.Post) *model.Post {
	t.Helper()
	var parentID *string
	if parent != nil {
		parentID = &parent.ID
	}
	p, err := e.posts.Create(context.Background(), author.ID, fmt.Sprintf("post by %s", author.Username), parentID)
	require.NoError(t, err)
	return p
}

func (e *env) toggle(t *testing.T, u *model.User, p *model.Post) *model.ToggleResult {
	t.Helper()
	res, err := e.likes.Toggle(context.Background(), u.ID, p.ID)
	require.NoError(t, err)
	return res
}

func (e *env) points(t *testing.T, u *model.User) int {
	t.Helper()
	got, err := e.store.GetUserByID(context.Background(), u.ID)
	require.NoError(t, err)
	return got.Points
}

// clock is a settable time source for WithClock.
type clock struct{ t time.Time }

func (c *clock) now() time.Time      { return c.t }
func (c *clock) add(d time.Duration) { c.t = c.t.Add(d) }
