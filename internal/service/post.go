package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/rs/xid"

	"github.com/sakif/karma-feed/internal/apperror"
	"github.com/sakif/karma-feed/internal/ledger"
	"github.com/sakif/karma-feed/internal/model"
	"github.com/sakif/karma-feed/internal/repository"
)

// PostService creates, reads and deletes posts.
type PostService struct {
	store    repository.Store
	ledger   *ledger.Ledger
	logger   *slog.Logger
	maxDepth int
}

// NewPostService wires a PostService. maxDepth bounds how many reply levels
// GetThread expands below the root; values <= 0 mean 50.
func NewPostService(store repository.Store, l *ledger.Ledger, logger *slog.Logger, maxDepth int) *PostService {
	if maxDepth <= 0 {
		maxDepth = 50
	}
	return &PostService{
		store:    store,
		ledger:   l,
		logger:   logger,
		maxDepth: maxDepth,
	}
}

// Create validates and stores a post, then credits the author's creation
// reward in the same transaction. parentID nil creates a thread.
//
// ERRORS:
//   - Unauthorized: actorID is empty
//   - ValidationFailed: content blank or too long, parentID malformed
//   - NotFound: the author or the parent post does not exist
//   - Retryable: the transaction lost a race with another writer
func (s *PostService) Create(ctx context.Context, actorID, content string, parentID *string) (*model.Post, error) {
	if err := requireActor(actorID); err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperror.ValidationFailed("content", "content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, tooLong("content", MaxContentLength)
	}

	var parent *string
	if parentID != nil {
		id := strings.TrimSpace(*parentID)
		// Post IDs are xids; anything else cannot name a post.
		if _, err := xid.FromString(id); err != nil {
			return nil, apperror.ValidationFailed("parentId", "parentId is not a valid post id")
		}
		parent = &id
	}

	post := &model.Post{
		AuthorID: actorID,
		Content:  content,
		ParentID: parent,
	}

	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetUserByID(ctx, actorID); err != nil {
			return err
		}
		if parent != nil {
			if _, err := tx.GetPostByID(ctx, *parent); err != nil {
				return err
			}
		}

		if err := tx.InsertPost(ctx, post); err != nil {
			return err
		}
		if _, err := s.ledger.CreditPostCreation(ctx, tx, actorID, post.IsTopLevel()); err != nil {
			return err
		}

		// Re-read so the response shows the points the database now holds.
		author, err := tx.GetUserByID(ctx, actorID)
		if err != nil {
			return err
		}
		post.Author = author
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("post created",
		slog.String("id", post.ID),
		slog.String("authorID", actorID),
		slog.Bool("topLevel", post.IsTopLevel()),
	)
	return post, nil
}

// Feed returns top-level posts newest first. viewerID may be empty; when set,
// IsLikedByUser is filled in for that user.
func (s *PostService) Feed(ctx context.Context, viewerID string, limit, offset int) ([]model.Post, error) {
	limit = clampLimit(limit, DefaultListLimit)
	if offset < 0 {
		offset = 0
	}

	posts, err := s.store.ListTopLevel(ctx, repository.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("listing feed: %w", err)
	}

	nodes := make([]*model.Post, len(posts))
	for i := range posts {
		nodes[i] = &posts[i]
	}
	if err := annotate(ctx, s.store, viewerID, nodes); err != nil {
		return nil, err
	}
	return posts, nil
}

// GetThread returns a post and, when expand is true, its reply tree.
//
// The tree is built breadth first: one ListByParentIDs query per depth
// level, never one per post. Expansion stops after maxDepth levels; posts on
// the last expanded level keep their RepliesCount but carry no Replies.
// Replies at each level are ordered oldest first.
func (s *PostService) GetThread(ctx context.Context, id, viewerID string, expand bool) (*model.Post, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "post ID is required")
	}

	root, err := s.store.GetPostByID(ctx, id)
	if err != nil {
		return nil, err
	}

	all := []*model.Post{root}
	if expand {
		level := []*model.Post{root}
		for depth := 0; depth < s.maxDepth && len(level) > 0; depth++ {
			ids := make([]string, len(level))
			byID := make(map[string]*model.Post, len(level))
			for i, p := range level {
				ids[i] = p.ID
				byID[p.ID] = p
				p.Replies = []*model.Post{}
			}

			children, err := s.store.ListByParentIDs(ctx, ids)
			if err != nil {
				return nil, fmt.Errorf("loading replies of %s: %w", id, err)
			}

			next := make([]*model.Post, 0, len(children))
			for i := range children {
				child := &children[i]
				parent := byID[*child.ParentID]
				parent.Replies = append(parent.Replies, child)
				next = append(next, child)
			}
			all = append(all, next...)
			level = next
		}
	}

	if err := annotate(ctx, s.store, viewerID, all); err != nil {
		return nil, err
	}
	return root, nil
}

// Delete removes a post the actor authored. Replies and likes go with it.
// Points already credited for the post, its replies and its likes stay:
// the ledger is a running total of events, not a recomputation.
func (s *PostService) Delete(ctx context.Context, actorID, id string) error {
	if err := requireActor(actorID); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "post ID is required")
	}

	post, err := s.store.GetPostByID(ctx, id)
	if err != nil {
		return err
	}
	if post.AuthorID != actorID {
		return apperror.Forbidden("only the author can delete a post")
	}

	if err := s.store.DeletePost(ctx, id); err != nil {
		return err
	}

	s.logger.Info("post deleted", slog.String("id", id), slog.String("authorID", actorID))
	return nil
}

// annotate fills the read-time fields of posts with three batched queries,
// whatever the number of posts.
func annotate(ctx context.Context, store repository.PostRepository, viewerID string, posts []*model.Post) error {
	if len(posts) == 0 {
		return nil
	}
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}

	likes, err := store.CountLikes(ctx, ids)
	if err != nil {
		return fmt.Errorf("counting likes: %w", err)
	}
	replies, err := store.CountReplies(ctx, ids)
	if err != nil {
		return fmt.Errorf("counting replies: %w", err)
	}
	liked, err := store.LikedBy(ctx, viewerID, ids)
	if err != nil {
		return fmt.Errorf("loading viewer likes: %w", err)
	}

	for _, p := range posts {
		p.LikesCount = likes[p.ID]
		p.RepliesCount = replies[p.ID]
		p.IsLikedByUser = liked[p.ID]
	}
	return nil
}
