package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/karma-feed/internal/apperror"
	"github.com/sakif/karma-feed/internal/ledger"
	"github.com/sakif/karma-feed/internal/model"
	"github.com/sakif/karma-feed/internal/repository"
)

// LeaderboardDefaults apply when a caller passes zero for a parameter.
type LeaderboardDefaults struct {
	WindowHours int
	RecentLimit int
	PointsLimit int
}

// LeaderboardService serves both rankings. Neither writes anything.
type LeaderboardService struct {
	store    repository.Store
	weights  repository.KarmaWeights
	defaults LeaderboardDefaults
	logger   *slog.Logger
	now      func() time.Time
}

// NewLeaderboardService takes the like weights from policy so the windowed
// score uses the same values the ledger applies on toggle.
func NewLeaderboardService(store repository.Store, policy ledger.Policy, defaults LeaderboardDefaults, logger *slog.Logger, opts ...Option) *LeaderboardService {
	o := buildOptions(opts)
	if defaults.WindowHours <= 0 {
		defaults.WindowHours = 24
	}
	if defaults.RecentLimit <= 0 {
		defaults.RecentLimit = 5
	}
	if defaults.PointsLimit <= 0 {
		defaults.PointsLimit = 10
	}
	return &LeaderboardService{
		store: store,
		weights: repository.KarmaWeights{
			TopLevel: policy.TopLevelLikeWeight,
			Reply:    policy.ReplyLikeWeight,
		},
		defaults: defaults,
		logger:   logger,
		now:      o.now,
	}
}

// ByTotalPoints ranks users by their all-time points, earliest joiner first
// on ties.
func (s *LeaderboardService) ByTotalPoints(ctx context.Context, limit int) ([]model.User, error) {
	limit = clampLimit(limit, s.defaults.PointsLimit)

	users, err := s.store.ListUsersByPoints(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing users by points: %w", err)
	}
	return users, nil
}

// ByRecentKarma ranks users by karma from likes received at or after
// now - windowHours. It is recomputed from like timestamps on every call and
// is unrelated to the stored points total: a creation reward never counts,
// and an unliked post stops counting the moment its like is deleted.
//
// windowHours 0 uses the default window. Negative or over-a-year windows are
// a ValidationFailed error.
func (s *LeaderboardService) ByRecentKarma(ctx context.Context, windowHours, limit int) ([]model.LeaderboardEntry, error) {
	if windowHours == 0 {
		windowHours = s.defaults.WindowHours
	}
	if windowHours < 0 || windowHours > MaxWindowHours {
		return nil, apperror.ValidationFailed("hours",
			fmt.Sprintf("hours must be between 1 and %d", MaxWindowHours))
	}
	limit = clampLimit(limit, s.defaults.RecentLimit)

	since := s.now().Add(-time.Duration(windowHours) * time.Hour)
	entries, err := s.store.RecentKarma(ctx, since, s.weights, limit)
	if err != nil {
		return nil, fmt.Errorf("computing recent karma: %w", err)
	}

	s.logger.Debug("recent karma computed",
		slog.Int("windowHours", windowHours),
		slog.Int("entries", len(entries)),
	)
	return entries, nil
}
