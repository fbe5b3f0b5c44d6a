package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/karma-feed/internal/model"
	"github.com/sakif/karma-feed/internal/repository"
)

// RecentKarma aggregates likes received inside the window in one query.
//
// users LEFT JOIN posts LEFT JOIN likes keeps every user in the result; the
// window condition sits in the likes join (not in WHERE) so a user whose
// likes are all too old still appears, with a score of 0. Each joined like
// row contributes the weight of the post it is on; rows without a like
// contribute nothing.
func (db *DB) RecentKarma(ctx context.Context, since time.Time, weights repository.KarmaWeights, limit int) ([]model.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT u.id, u.username, u.email, u.points, u.created_at,
		        COALESCE(SUM(
		            CASE
		                WHEN l.post_id IS NULL THEN 0
		                WHEN p.parent_id IS NULL THEN ?
		                ELSE ?
		            END
		        ), 0) AS recent_karma
		 FROM users u
		 LEFT JOIN posts p ON p.author_id = u.id
		 LEFT JOIN likes l ON l.post_id = p.id AND l.created_at >= ?
		 GROUP BY u.id, u.username, u.email, u.points, u.created_at
		 ORDER BY recent_karma DESC, u.created_at ASC, u.id ASC
		 LIMIT ?`,
		weights.TopLevel,
		weights.Reply,
		since.UTC(),
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: computing recent karma: %w", err)
	}
	defer rows.Close()

	entries := []model.LeaderboardEntry{}
	for rows.Next() {
		var e model.LeaderboardEntry
		if err := rows.Scan(
			&e.ID, &e.Username, &e.Email, &e.Points, &e.CreatedAt,
			&e.RecentKarma,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning leaderboard row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating leaderboard: %w", err)
	}
	return entries, nil
}
