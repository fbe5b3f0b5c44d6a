package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/sakif/karma-feed/internal/apperror"
	"github.com/sakif/karma-feed/internal/model"
	"github.com/sakif/karma-feed/internal/repository"
)

const (
	postColumns = `p.id, p.author_id, p.content, p.parent_id, p.created_at`

	postWithAuthorColumns = postColumns + `,
		u.id, u.username, u.email, u.points, u.created_at`
)

// pgx scans NULL into a **string as nil, so ParentID needs no NullString.
func scanPost(row pgx.Row, p *model.Post) error {
	return row.Scan(&p.ID, &p.AuthorID, &p.Content, &p.ParentID, &p.CreatedAt)
}

func scanPostWithAuthor(row pgx.Row, p *model.Post) error {
	author := &model.User{}
	err := row.Scan(
		&p.ID, &p.AuthorID, &p.Content, &p.ParentID, &p.CreatedAt,
		&author.ID, &author.Username, &author.Email, &author.Points, &author.CreatedAt,
	)
	if err != nil {
		return err
	}
	p.Author = author
	return nil
}

func collectPosts(rows pgx.Rows, withAuthor bool) ([]model.Post, error) {
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
			return nil, fmt.Errorf("postgres: scanning post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating posts: %w", err)
	}
	return posts, nil
}

func (db *DB) GetPostByID(ctx context.Context, id string) (*model.Post, error) {
	return getPost(ctx, db.pool, id)
}

func getPost(ctx context.Context, q querier, id string) (*model.Post, error) {
	var p model.Post
	err := scanPostWithAuthor(q.QueryRow(ctx,
		`SELECT `+postWithAuthorColumns+`
		 FROM posts p
		 JOIN users u ON u.id = p.author_id
		 WHERE p.id = $1`,
		id,
	), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("postgres: getting post %s: %w", id, err)
	}
	return &p, nil
}

func (db *DB) ListTopLevel(ctx context.Context, opts repository.ListOptions) ([]model.Post, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := max(opts.Offset, 0)

	rows, err := db.pool.Query(ctx,
		`SELECT `+postWithAuthorColumns+`
		 FROM posts p
		 JOIN users u ON u.id = p.author_id
		 WHERE p.parent_id IS NULL
		 ORDER BY p.created_at DESC, p.id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing feed: %w", err)
	}
	return collectPosts(rows, true)
}

func (db *DB) ListByParentIDs(ctx context.Context, parentIDs []string) ([]model.Post, error) {
	if len(parentIDs) == 0 {
		return []model.Post{}, nil
	}

	rows, err := db.pool.Query(ctx,
		`SELECT `+postWithAuthorColumns+`
		 FROM posts p
		 JOIN users u ON u.id = p.author_id
		 WHERE p.parent_id = ANY($1::text[])
		 ORDER BY p.created_at ASC, p.id ASC`,
		parentIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing replies: %w", err)
	}
	return collectPosts(rows, true)
}

func (db *DB) ListByAuthor(ctx context.Context, authorID string) ([]model.Post, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+postColumns+`
		 FROM posts p
		 WHERE p.author_id = $1
		 ORDER BY p.created_at DESC, p.id DESC`,
		authorID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing posts by %s: %w", authorID, err)
	}
	return collectPosts(rows, false)
}

func (db *DB) CountLikes(ctx context.Context, postIDs []string) (map[string]int, error) {
	return db.countBy(ctx,
		`SELECT post_id, COUNT(*) FROM likes
		 WHERE post_id = ANY($1::text[])
		 GROUP BY post_id`,
		postIDs,
	)
}

func (db *DB) CountReplies(ctx context.Context, postIDs []string) (map[string]int, error) {
	return db.countBy(ctx,
		`SELECT parent_id, COUNT(*) FROM posts
		 WHERE parent_id = ANY($1::text[])
		 GROUP BY parent_id`,
		postIDs,
	)
}

func (db *DB) countBy(ctx context.Context, query string, ids []string) (map[string]int, error) {
	counts := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}

	rows, err := db.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: counting: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("postgres: scanning count row: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating counts: %w", err)
	}
	return counts, nil
}

func (db *DB) LikedBy(ctx context.Context, userID string, postIDs []string) (map[string]bool, error) {
	liked := make(map[string]bool)
	if userID == "" || len(postIDs) == 0 {
		return liked, nil
	}

	rows, err := db.pool.Query(ctx,
		`SELECT post_id FROM likes WHERE user_id = $1 AND post_id = ANY($2::text[])`,
		userID, postIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: checking likes for %s: %w", userID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scanning like row: %w", err)
		}
		liked[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating likes: %w", err)
	}
	return liked, nil
}

func (db *DB) DeletePost(ctx context.Context, id string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: deleting post %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("post", id)
	}
	return nil
}
