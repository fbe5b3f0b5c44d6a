package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/karma-feed/internal/apperror"
	"github.com/sakif/karma-feed/internal/ledger"
	"github.com/sakif/karma-feed/internal/model"
	"github.com/sakif/karma-feed/internal/repository"
)

// LikeService runs the like toggle.
type LikeService struct {
	store  repository.Store
	ledger *ledger.Ledger
	logger *slog.Logger
	now    func() time.Time
}

func NewLikeService(store repository.Store, l *ledger.Ledger, logger *slog.Logger, opts ...Option) *LikeService {
	o := buildOptions(opts)
	return &LikeService{
		store:  store,
		ledger: l,
		logger: logger,
		now:    o.now,
	}
}

// Toggle flips the (actor, post) pair between liked and unliked and moves
// the post author's points by the like weight of the post's kind.
//
// STATE MACHINE:
//
//	NOT_LIKED --Toggle--> LIKED      insert like, author += weight
//	LIKED     --Toggle--> NOT_LIKED  delete like, author -= weight
//
// The insert is attempted first with ON CONFLICT DO NOTHING. If it inserted
// nothing, the pair was already liked and the like is deleted instead. Both
// branches run in one transaction together with the points update and the
// like recount, so two toggles racing on the same pair cannot both insert,
// and the returned count is the one this transaction committed.
func (s *LikeService) Toggle(ctx context.Context, actorID, postID string) (*model.ToggleResult, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return nil, apperror.ValidationFailed("id", "post ID is required")
	}

	var result model.ToggleResult
	var delta int
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		post, err := tx.GetPostByID(ctx, postID)
		if err != nil {
			return err
		}
		if _, err := tx.GetUserByID(ctx, actorID); err != nil {
			return err
		}

		liked, err := tx.InsertLike(ctx, &model.Like{
			UserID:    actorID,
			PostID:    postID,
			CreatedAt: s.now(),
		})
		if err != nil {
			return err
		}
		if !liked {
			removed, err := tx.DeleteLike(ctx, actorID, postID)
			if err != nil {
				return err
			}
			if !removed {
				// Inserted nothing and deleted nothing: another writer
				// changed the pair under us. Let the caller retry.
				return apperror.Retryable("toggling like", nil)
			}
		}

		// The weight comes from the liked post, never from the liker.
		delta = s.ledger.Policy().LikeDelta(post.IsTopLevel(), liked)
		if err := s.ledger.AdjustForLike(ctx, tx, post.AuthorID, delta); err != nil {
			return err
		}

		count, err := tx.CountPostLikes(ctx, postID)
		if err != nil {
			return err
		}

		result = model.ToggleResult{
			Status:        model.StatusUnliked,
			LikesCount:    count,
			IsLikedByUser: liked,
		}
		if liked {
			result.Status = model.StatusLiked
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("like toggled",
		slog.String("postID", postID),
		slog.String("userID", actorID),
		slog.String("status", string(result.Status)),
		slog.Int("delta", delta),
	)
	return &result, nil
}
