// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a member of the feed.
//
// Points is the all-time karma total. It is a running counter that only the
// karma ledger moves, always through a relative update executed by the
// storage engine (points = points + delta). Nothing in the request path ever
// assigns it directly.
//
// CreatedAt doubles as the join time and is the tiebreaker for the
// all-time leaderboard (earlier members rank first on equal points).
type User struct {
	ID        string    `json:"id"        db:"id"`
	Username  string    `json:"username"  db:"username"`
	Email     string    `json:"email"     db:"email"`
	Points    int       `json:"points"    db:"points"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Profile is a user together with the posts they authored, newest first.
// The posts carry their read-time likesCount and repliesCount projections.
type Profile struct {
	User
	Posts []Post `json:"posts"`
}
