// Package repository declares the storage contracts. The sqlite and postgres
// subpackages implement them; services depend only on these interfaces.
package repository

import (
	"context"
	"time"

	"github.com/sakif/karma-feed/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// ListUsersByPoints orders by points descending, join time ascending.
	// A limit <= 0 returns every user.
	ListUsersByPoints(ctx context.Context, limit int) ([]model.User, error)
	// DeleteUser cascades to the user's posts (and their replies) and likes.
	DeleteUser(ctx context.Context, id string) error
}

type PostRepository interface {
	GetPostByID(ctx context.Context, id string) (*model.Post, error)
	// ListTopLevel returns threads newest first, with Author populated.
	ListTopLevel(ctx context.Context, opts ListOptions) ([]model.Post, error)
	// ListByParentIDs returns the direct replies of every given post, oldest
	// first, with Author populated.
	ListByParentIDs(ctx context.Context, parentIDs []string) ([]model.Post, error)
	// ListByAuthor returns a user's posts newest first.
	ListByAuthor(ctx context.Context, authorID string) ([]model.Post, error)
	CountLikes(ctx context.Context, postIDs []string) (map[string]int, error)
	CountReplies(ctx context.Context, postIDs []string) (map[string]int, error)
	// LikedBy returns the subset of postIDs that userID has liked.
	LikedBy(ctx context.Context, userID string, postIDs []string) (map[string]bool, error)
	// DeletePost cascades to replies at any depth and to every Like on them.
	DeletePost(ctx context.Context, id string) error
}

type LikeRepository interface {
	GetLike(ctx context.Context, userID, postID string) (*model.Like, error)
}

// KarmaWeights are the per-like values used by the windowed aggregation.
type KarmaWeights struct {
	TopLevel int
	Reply    int
}

type LeaderboardRepository interface {
	// RecentKarma ranks every user by the weighted count of likes received
	// on their posts with created_at >= since, in a single aggregate query.
	// Users without qualifying likes score 0 and sort after everyone else,
	// ordered by join time then id.
	RecentKarma(ctx context.Context, since time.Time, weights KarmaWeights, limit int) ([]model.LeaderboardEntry, error)
}

// Tx is the unit of work for ledger-affecting operations. Everything done
// through a Tx commits or rolls back together.
type Tx interface {
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetPostByID(ctx context.Context, id string) (*model.Post, error)
	InsertPost(ctx context.Context, post *model.Post) error
	// InsertLike reports false, without error, when the pair already exists.
	InsertLike(ctx context.Context, like *model.Like) (bool, error)
	// DeleteLike reports whether a row was removed.
	DeleteLike(ctx context.Context, userID, postID string) (bool, error)
	CountPostLikes(ctx context.Context, postID string) (int, error)
	// IncrementPoints executes points = points + delta in the database.
	IncrementPoints(ctx context.Context, userID string, delta int) error
}

// Store is the full Entity Store.
type Store interface {
	UserRepository
	PostRepository
	LikeRepository
	LeaderboardRepository

	// WithinTx runs fn in a transaction. A nil return commits; any error
	// rolls back. Aborts caused by concurrent writers come back as
	// apperror.Retryable.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
