// Package ledger owns every change to a user's karma total.
//
// The ledger never computes a new total itself. It decides the size of an
// adjustment from the reward policy and hands a relative delta to a
// PointsIncrementer, which must apply it as a single storage-side statement
// (UPDATE users SET points = points + ? WHERE id = ?). Two writers crediting
// the same author therefore serialise inside the database and neither update
// is lost.
//
// Callers pass the transaction that performed the triggering mutation (a post
// insert or a like insert/delete) as the incrementer, so the mutation and the
// points change commit or roll back together.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
)

// Policy holds the reward constants. They are configuration, not contract:
// the only fixed rules are that thread and reply creation rewards differ and
// that like weights are positive.
type Policy struct {
	TopLevelPostReward int // credited to the author of a new thread
	ReplyReward        int // credited to the author of a new reply
	TopLevelLikeWeight int // moved per like/unlike on a thread
	ReplyLikeWeight    int // moved per like/unlike on a reply
}

// DefaultPolicy is 5/2 for post creation and 5/1 for likes.
func DefaultPolicy() Policy {
	return Policy{
		TopLevelPostReward: 5,
		ReplyReward:        2,
		TopLevelLikeWeight: 5,
		ReplyLikeWeight:    1,
	}
}

func (p Policy) Validate() error {
	if p.TopLevelPostReward < 0 || p.ReplyReward < 0 {
		return fmt.Errorf("ledger: post creation rewards must not be negative")
	}
	if p.TopLevelPostReward == p.ReplyReward {
		return fmt.Errorf("ledger: thread and reply creation rewards must differ (both %d)", p.ReplyReward)
	}
	if p.TopLevelLikeWeight <= 0 || p.ReplyLikeWeight <= 0 {
		return fmt.Errorf("ledger: like weights must be positive")
	}
	return nil
}

// PostReward is the creation reward for a post of the given kind.
func (p Policy) PostReward(topLevel bool) int {
	if topLevel {
		return p.TopLevelPostReward
	}
	return p.ReplyReward
}

// LikeWeight is the karma a like on a post of the given kind is worth.
// The kind is always the target post's, never the liker's.
func (p Policy) LikeWeight(topLevel bool) int {
	if topLevel {
		return p.TopLevelLikeWeight
	}
	return p.ReplyLikeWeight
}

// LikeDelta is +weight for a new like and -weight for a removed one.
func (p Policy) LikeDelta(topLevel, liked bool) int {
	w := p.LikeWeight(topLevel)
	if liked {
		return w
	}
	return -w
}

// PointsIncrementer applies a relative change to a user's points inside the
// storage engine. Implementations must not read the current value.
type PointsIncrementer interface {
	IncrementPoints(ctx context.Context, userID string, delta int) error
}

// Ledger applies karma adjustments according to a Policy.
type Ledger struct {
	policy Policy
	logger *slog.Logger
}

func New(policy Policy, logger *slog.Logger) (*Ledger, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Ledger{policy: policy, logger: logger}, nil
}

func (l *Ledger) Policy() Policy {
	return l.policy
}

// CreditPostCreation rewards authorID for a new post and returns the amount
// credited. store must be the transaction that inserted the post.
func (l *Ledger) CreditPostCreation(ctx context.Context, store PointsIncrementer, authorID string, topLevel bool) (int, error) {
	reward := l.policy.PostReward(topLevel)
	if reward == 0 {
		return 0, nil
	}
	if err := store.IncrementPoints(ctx, authorID, reward); err != nil {
		return 0, fmt.Errorf("ledger: crediting post creation to %s: %w", authorID, err)
	}
	l.logger.Debug("karma credited for post",
		slog.String("userID", authorID),
		slog.Bool("topLevel", topLevel),
		slog.Int("delta", reward),
	)
	return reward, nil
}

// AdjustForLike moves authorID's points by delta, which must be plus or
// minus one of the policy's like weights. store must be the transaction that
// inserted or deleted the like.
func (l *Ledger) AdjustForLike(ctx context.Context, store PointsIncrementer, authorID string, delta int) error {
	magnitude := delta
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if magnitude != l.policy.TopLevelLikeWeight && magnitude != l.policy.ReplyLikeWeight {
		return fmt.Errorf("ledger: like delta %d does not match any like weight", delta)
	}
	if err := store.IncrementPoints(ctx, authorID, delta); err != nil {
		return fmt.Errorf("ledger: adjusting %s by %d: %w", authorID, delta, err)
	}
	l.logger.Debug("karma adjusted for like",
		slog.String("userID", authorID),
		slog.Int("delta", delta),
	)
	return nil
}
