package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/karma-feed/internal/model"
	"github.com/sakif/karma-feed/internal/repository"
)

// RecentKarma is the same single aggregate as the sqlite store. The window
// condition lives in the likes join so users without recent likes still
// appear with 0.
func (db *DB) RecentKarma(ctx context.Context, since time.Time, weights repository.KarmaWeights, limit int) ([]model.LeaderboardEntry, error) {
	var lim *int
	if limit > 0 {
		lim = &limit
	}

	rows, err := db.pool.Query(ctx,
		`SELECT u.id, u.username, u.email, u.points, u.created_at,
		        COALESCE(SUM(
		            CASE
		                WHEN l.post_id IS NULL THEN 0
		                WHEN p.parent_id IS NULL THEN $1::int
		                ELSE $2::int
		            END
		        ), 0)::int AS recent_karma
		 FROM users u
		 LEFT JOIN posts p ON p.author_id = u.id
		 LEFT JOIN likes l ON l.post_id = p.id AND l.created_at >= $3
		 GROUP BY u.id, u.username, u.email, u.points, u.created_at
		 ORDER BY recent_karma DESC, u.created_at ASC, u.id ASC
		 LIMIT $4`,
		weights.TopLevel, weights.Reply, since.UTC(), lim,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: computing recent karma: %w", err)
	}
	defer rows.Close()

	entries := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(
			&e.ID, &e.Username, &e.Email, &e.Points, &e.CreatedAt,
			&e.RecentKarma,
		); err != nil {
			return nil, fmt.Errorf("postgres: scanning leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating leaderboard: %w", err)
	}
	return entries, nil
}
