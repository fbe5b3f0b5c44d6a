package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/karma-feed/internal/apperror"
	"github.com/sakif/karma-feed/internal/model"
	"github.com/sakif/karma-feed/internal/repository"
)

var _ repository.Tx = (*txStore)(nil)

// GetLike returns the like for a (user, post) pair, or NotFound.
func (db *DB) GetLike(ctx context.Context, userID, postID string) (*model.Like, error) {
	var l model.Like
	err := db.conn.QueryRowContext(ctx,
		`SELECT user_id, post_id, created_at FROM likes WHERE user_id = ? AND post_id = ?`,
		userID, postID,
	).Scan(&l.UserID, &l.PostID, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("like", userID+"/"+postID)
		}
		return nil, fmt.Errorf("sqlite: getting like %s/%s: %w", userID, postID, err)
	}
	return &l, nil
}

// txStore runs the ledger-affecting statements on one *sql.Tx.
type txStore struct {
	q querier
}

func (t *txStore) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return getUser(ctx, t.q, id)
}

func (t *txStore) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	return getPost(ctx, t.q, id)
}

func (t *txStore) InsertPost(ctx context.Context, post *model.Post) error {
	if post.ID == "" {
		post.ID = xid.New().String()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now()
	}
	post.CreatedAt = post.CreatedAt.UTC()

	var parentID any
	if post.ParentID != nil {
		parentID = *post.ParentID
	}

	_, err := t.q.ExecContext(ctx,
		`INSERT INTO posts (id, author_id, content, parent_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		post.ID,
		post.AuthorID,
		post.Content,
		parentID,
		post.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			if post.ParentID != nil {
				return apperror.NotFound("post", *post.ParentID)
			}
			return apperror.NotFound("user", post.AuthorID)
		}
		return fmt.Errorf("sqlite: inserting post: %w", err)
	}
	return nil
}

// InsertLike relies on the (user_id, post_id) primary key: a second insert
// for the same pair affects no rows instead of failing.
func (t *txStore) InsertLike(ctx context.Context, like *model.Like) (bool, error) {
	if like.CreatedAt.IsZero() {
		like.CreatedAt = time.Now()
	}
	// Timestamps are compared as text; a single zone keeps that ordering correct.
	like.CreatedAt = like.CreatedAt.UTC()

	result, err := t.q.ExecContext(ctx,
		`INSERT INTO likes (user_id, post_id, created_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (user_id, post_id) DO NOTHING`,
		like.UserID,
		like.PostID,
		like.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, apperror.NotFound("post", like.PostID)
		}
		return false, fmt.Errorf("sqlite: inserting like: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n == 1, nil
}

func (t *txStore) DeleteLike(ctx context.Context, userID, postID string) (bool, error) {
	result, err := t.q.ExecContext(ctx,
		`DELETE FROM likes WHERE user_id = ? AND post_id = ?`,
		userID, postID,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting like: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return n == 1, nil
}

func (t *txStore) CountPostLikes(ctx context.Context, postID string) (int, error) {
	var n int
	err := t.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM likes WHERE post_id = ?`, postID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting likes on %s: %w", postID, err)
	}
	return n, nil
}

// IncrementPoints is the only statement in the codebase that writes
// users.points. The addition happens inside SQLite, never in Go.
func (t *txStore) IncrementPoints(ctx context.Context, userID string, delta int) error {
	result, err := t.q.ExecContext(ctx,
		`UPDATE users SET points = points + ? WHERE id = ?`,
		delta, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing points for %s: %w", userID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("user", userID)
	}
	return nil
}
