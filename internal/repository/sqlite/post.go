package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sakif/karma-feed/internal/apperror"
	"github.com/sakif/karma-feed/internal/model"
	"github.com/sakif/karma-feed/internal/repository"
)

const (
	postColumns = `p.id, p.author_id, p.content, p.parent_id, p.created_at`

	postWithAuthorColumns = postColumns + `,
		u.id, u.username, u.email, u.points, u.created_at`
)

func scanPost(row rowScanner, p *model.Post) error {
	var parentID sql.NullString
	if err := row.Scan(&p.ID, &p.AuthorID, &p.Content, &parentID, &p.CreatedAt); err != nil {
		return err
	}
	if parentID.Valid {
		p.ParentID = &parentID.String
	}
	return nil
}

func scanPostWithAuthor(row rowScanner, p *model.Post) error {
	var parentID sql.NullString
	author := &model.User{}
	err := row.Scan(
		&p.ID, &p.AuthorID, &p.Content, &parentID, &p.CreatedAt,
		&author.ID, &author.Username, &author.Email, &author.Points, &author.CreatedAt,
	)
	if err != nil {
		return err
	}
	if parentID.Valid {
		p.ParentID = &parentID.String
	}
	p.Author = author
	return nil
}

func collectPosts(rows *sql.Rows, withAuthor bool) ([]model.Post, error) {
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		var p model.Post
		var err error
		if withAuthor {
			err = scanPostWithAuthor(rows, &p)
		} else {
			err = scanPost(rows, &p)
		}
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}
	return posts, nil
}

// GetPostByID returns a post with its author.
func (db *DB) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	return getPost(ctx, db.conn, id)
}

func getPost(ctx context.Context, q querier, id string) (*model.Post, error) {
	var p model.Post
	err := scanPostWithAuthor(q.QueryRowContext(ctx,
		`SELECT `+postWithAuthorColumns+`
		 FROM posts p
		 JOIN users u ON u.id = p.author_id
		 WHERE p.id = ?`,
		id,
	), &p)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}
	return &p, nil
}

// ListTopLevel returns the feed: threads only, newest first.
func (db *DB) ListTopLevel(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+postWithAuthorColumns+`
		 FROM posts p
		 JOIN users u ON u.id = p.author_id
		 WHERE p.parent_id IS NULL
		 ORDER BY p.created_at DESC, p.id DESC
		 LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing feed: %w", err)
	}
	return collectPosts(rows, true)
}

// ListByParentIDs fetches one level of a thread in a single query.
func (db *DB) ListByParentIDs(ctx context.Context, parentIDs []string) ([]model.Post, error) {
	if len(parentIDs) == 0 {
		return []model.Post{}, nil
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+postWithAuthorColumns+`
		 FROM posts p
		 JOIN users u ON u.id = p.author_id
		 WHERE p.parent_id IN (`+placeholders(len(parentIDs))+`)
		 ORDER BY p.created_at ASC, p.id ASC`,
		stringArgs(parentIDs)...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing replies: %w", err)
	}
	return collectPosts(rows, true)
}

func (db *DB) ListByAuthor(ctx context.Context, authorID string) ([]model.Post, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+postColumns+`
		 FROM posts p
		 WHERE p.author_id = ?
		 ORDER BY p.created_at DESC, p.id DESC`,
		authorID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing posts by %s: %w", authorID, err)
	}
	return collectPosts(rows, false)
}

// CountLikes returns like counts keyed by post id. Posts without likes are
// absent from the map (a zero lookup).
func (db *DB) CountLikes(ctx context.Context, postIDs []string) (map[string]int, error) {
	return db.countBy(ctx,
		`SELECT post_id, COUNT(*) FROM likes
		 WHERE post_id IN (`+placeholders(len(postIDs))+`)
		 GROUP BY post_id`,
		postIDs,
	)
}

func (db *DB) CountReplies(ctx context.Context, postIDs []string) (map[string]int, error) {
	return db.countBy(ctx,
		`SELECT parent_id, COUNT(*) FROM posts
		 WHERE parent_id IN (`+placeholders(len(postIDs))+`)
		 GROUP BY parent_id`,
		postIDs,
	)
}

func (db *DB) countBy(ctx context.Context, query string, ids []string) (map[string]int, error) {
	counts := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	rows, err := db.conn.QueryContext(ctx, query, stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: counting: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("sqlite: scanning count row: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating counts: %w", err)
	}
	return counts, nil
}

func (db *DB) LikedBy(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	liked := make(map[string]bool)
	if userID == "" || len(postIDs) == 0 {
		return liked, nil
	}

	args := append([]any{userID}, stringArgs(postIDs)...)
	rows, err := db.conn.QueryContext(ctx,
		`SELECT post_id FROM likes
		 WHERE user_id = ? AND post_id IN (`+placeholders(len(postIDs))+`)`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: checking likes for %s: %w", userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning like row: %w", err)
		}
		liked[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating likes: %w", err)
	}
	return liked, nil
}

// DeletePost removes a post; replies and likes go with it through the
// schema's cascades.
func (db *DB) DeletePost(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("post", id)
	}
	return nil
}
