package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/sakif/karma-feed/internal/apperror"
	"github.com/sakif/karma-feed/internal/model"
	"github.com/sakif/karma-feed/internal/repository"
)

var _ repository.Tx = (*txStore)(nil)

func (db *DB) GetLike(ctx context.Context, userID, postID string) (*model.Like, error) {
	var l model.Like
	err := db.pool.QueryRow(ctx,
		`SELECT user_id, post_id, created_at FROM likes WHERE user_id = $1 AND post_id = $2`,
		userID, postID,
	).Scan(&l.UserID, &l.PostID, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("like", userID+"/"+postID)
		}
		return nil, fmt.Errorf("postgres: getting like %s/%s: %w", userID, postID, err)
	}
	return &l, nil
}

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

	_, err := t.q.Exec(ctx,
		`INSERT INTO posts (id, author_id, content, parent_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		post.ID, post.AuthorID, post.Content, post.ParentID, post.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			if post.ParentID != nil {
				return apperror.NotFound("post", *post.ParentID)
			}
			return apperror.NotFound("user", post.AuthorID)
		}
		return fmt.Errorf("postgres: inserting post: %w", err)
	}
	return nil
}

func (t *txStore) InsertLike(ctx context.Context, like *model.Like) (bool, error) {
	if like.CreatedAt.IsZero() {
		like.CreatedAt = time.Now()
	}
	like.CreatedAt = like.CreatedAt.UTC()

	tag, err := t.q.Exec(ctx,
		`INSERT INTO likes (user_id, post_id, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, post_id) DO NOTHING`,
		like.UserID, like.PostID, like.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return false, apperror.NotFound("post", like.PostID)
		}
		return false, fmt.Errorf("postgres: inserting like: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *txStore) DeleteLike(ctx context.Context, userID, postID string) (bool, error) {
	tag, err := t.q.Exec(ctx,
		`DELETE FROM likes WHERE user_id = $1 AND post_id = $2`,
		userID, postID,
	)
	if err != nil {
		return false, fmt.Errorf("postgres: deleting like: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (t *txStore) CountPostLikes(ctx context.Context, postID string) (int, error) {
	var n int
	err := t.q.QueryRow(ctx, `SELECT COUNT(*) FROM likes WHERE post_id = $1`, postID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("postgres: counting likes on %s: %w", postID, err)
	}
	return n, nil
}

// IncrementPoints is the only write to users.points. The row lock it takes
// queues concurrent adjustments to the same author.
func (t *txStore) IncrementPoints(ctx context.Context, userID string, delta int) error {
	tag, err := t.q.Exec(ctx,
		`UPDATE users SET points = points + $1 WHERE id = $2`,
		delta, userID,
	)
	if err != nil {
		return fmt.Errorf("postgres: incrementing points for %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("user", userID)
	}
	return nil
}
