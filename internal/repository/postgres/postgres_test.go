package postgres

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/karma-feed/internal/apperror"
	"github.com/sakif/karma-feed/internal/model"
	"github.com/sakif/karma-feed/internal/repository"
)

// These tests run only when KARMA_TEST_DATABASE_URL points at a disposable
// database. Every test truncates all tables.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := os.Getenv("KARMA_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("KARMA_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	db, err := New(ctx, dsn, 10, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.pool.Exec(ctx, `TRUNCATE likes, posts, users`)
	require.NoError(t, err)
	return db
}

func createUser(t *testing.T, db *DB, name string) *model.User {
	t.Helper()
	u := &model.User{Username: name, Email: name + "@example.com"}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

func createPost(t *testing.T, db *DB, author *model.User, parent *model.Post) *model.Post {
	t.Helper()
	p := &model.Post{AuthorID: author.ID, Content: "content"}
	if parent != nil {
		p.ParentID = &parent.ID
	}
	err := db.WithinTx(context.Background(), func(tx repository.Tx) error {
		return tx.InsertPost(context.Background(), p)
	})
	require.NoError(t, err)
	return p
}

func like(t *testing.T, db *DB, u *model.User, p *model.Post, at time.Time) {
	t.Helper()
	err := db.WithinTx(context.Background(), func(tx repository.Tx) error {
		created, err := tx.InsertLike(context.Background(), &model.Like{UserID: u.ID, PostID: p.ID, CreatedAt: at})
		if err != nil {
			return err
		}
		assert.True(t, created)
		return nil
	})
	require.NoError(t, err)
}

func TestUsers(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	alice := createUser(t, db, "alice")
	err := db.CreateUser(ctx, &model.User{Username: "alice", Email: "x@example.com"})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	got, err := db.GetUserByID(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Zero(t, got.Points)

	_, err = db.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	users, err := db.ListUsersByPoints(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	require.NoError(t, db.DeleteUser(ctx, alice.ID))
	assert.ErrorIs(t, db.DeleteUser(ctx, alice.ID), apperror.ErrNotFound)
}

func TestPostsAndLikes(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	author := createUser(t, db, "author")
	fan := createUser(t, db, "fan")
	root := createPost(t, db, author, nil)
	reply := createPost(t, db, fan, root)
	like(t, db, fan, root, time.Now())

	got, err := db.GetPostByID(ctx, reply.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ParentID)
	assert.Equal(t, root.ID, *got.ParentID)
	assert.Equal(t, "fan", got.Author.Username)

	feed, err := db.ListTopLevel(ctx, repository.ListOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, feed, 1)
	assert.Nil(t, feed[0].ParentID)

	replies, err := db.ListByParentIDs(ctx, []string{root.ID})
	require.NoError(t, err)
	require.Len(t, replies, 1)

	likes, err := db.CountLikes(ctx, []string{root.ID, reply.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, likes[root.ID])
	assert.Equal(t, 0, likes[reply.ID])

	counts, err := db.CountReplies(ctx, []string{root.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, counts[root.ID])

	liked, err := db.LikedBy(ctx, fan.ID, []string{root.ID, reply.ID})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{root.ID: true}, liked)

	err = db.WithinTx(ctx, func(tx repository.Tx) error {
		created, err := tx.InsertLike(ctx, &model.Like{UserID: fan.ID, PostID: root.ID})
		assert.False(t, created)
		return err
	})
	require.NoError(t, err)

	require.NoError(t, db.DeletePost(ctx, root.ID))
	_, err = db.GetPostByID(ctx, reply.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = db.GetLike(ctx, fan.ID, root.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRecentKarma(t *testing.T) {
	db := newTestDB(t)
	threshold := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	author := createUser(t, db, "author")
	fan1 := createUser(t, db, "fan1")
	fan2 := createUser(t, db, "fan2")
	root := createPost(t, db, author, nil)
	reply := createPost(t, db, author, root)
	like(t, db, fan1, root, threshold)
	like(t, db, fan2, root, threshold.Add(-time.Second))
	like(t, db, fan1, reply, threshold.Add(time.Minute))

	entries, err := db.RecentKarma(context.Background(), threshold, repository.KarmaWeights{TopLevel: 5, Reply: 1}, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, author.ID, entries[0].ID)
	assert.Equal(t, 6, entries[0].RecentKarma)
	assert.Equal(t, 0, entries[1].RecentKarma)
	assert.Equal(t, fan1.ID, entries[1].ID)
}

func TestIncrementPoints_Concurrent(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	user := createUser(t, db, "popular")

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				err := db.WithinTx(ctx, func(tx repository.Tx) error {
					return tx.IncrementPoints(ctx, user.ID, 2)
				})
				if !apperror.IsRetryable(err) {
					assert.NoError(t, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, writers*2, got.Points)
}
