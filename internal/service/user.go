package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/sakif/karma-feed/internal/apperror"
	"github.com/sakif/karma-feed/internal/model"
	"github.com/sakif/karma-feed/internal/repository"
)

// UserService manages user records. Points are never set here; a new user
// starts at zero and only the ledger moves the total afterwards.
type UserService struct {
	store  repository.Store
	logger *slog.Logger
}

func NewUserService(store repository.Store, logger *slog.Logger) *UserService {
	return &UserService{store: store, logger: logger}
}

// Create adds a user. A taken username or email is a Conflict.
func (s *UserService) Create(ctx context.Context, username, email string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)

	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if len(username) > MaxUsernameLen {
		return nil, tooLong("username", MaxUsernameLen)
	}
	if email == "" {
		return nil, apperror.ValidationFailed("email", "email is required")
	}
	if len(email) > MaxEmailLen {
		return nil, tooLong("email", MaxEmailLen)
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, apperror.ValidationFailed("email", "email is not a valid address")
	}

	user := &model.User{Username: username, Email: email}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("user created", slog.String("id", user.ID), slog.String("username", username))
	return user, nil
}

// Get returns a single user without their posts.
func (s *UserService) Get(ctx context.Context, id string) (*model.User, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}
	return s.store.GetUserByID(ctx, id)
}

// Profile returns a user with their posts, newest first, each carrying its
// like and reply counts.
func (s *UserService) Profile(ctx context.Context, id string) (*model.Profile, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	posts, err := s.store.ListByAuthor(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("listing posts of %s: %w", user.ID, err)
	}

	nodes := make([]*model.Post, len(posts))
	for i := range posts {
		nodes[i] = &posts[i]
	}
	if err := annotate(ctx, s.store, "", nodes); err != nil {
		return nil, err
	}

	return &model.Profile{User: *user, Posts: posts}, nil
}

// List returns every user ordered by points.
func (s *UserService) List(ctx context.Context) ([]model.User, error) {
	users, err := s.store.ListUsersByPoints(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	return users, nil
}

// Delete removes a user with everything they authored and every like they
// gave. Authors who received those likes keep the points.
func (s *UserService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "user ID is required")
	}
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.logger.Info("user deleted", slog.String("id", id))
	return nil
}
