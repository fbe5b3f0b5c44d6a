package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/karma-feed/internal/apperror"
	"github.com/sakif/karma-feed/internal/ledger"
)

func TestUserCreate_Validation(t *testing.T) {
	e := newEnv(t, newTestStore(t), ledger.DefaultPolicy())

	tests := []struct {
		name     string
		username string
		email    string
		wantErr  error
	}{
		{"valid", "alice", "alice@example.com", nil},
		{"empty username", "  ", "a@example.com", apperror.ErrValidation},
		{"long username", strings.Repeat("a", MaxUsernameLen+1), "b@example.com", apperror.ErrValidation},
		{"empty email", "bob", "", apperror.ErrValidation},
		{"bad email", "bob", "not-an-email", apperror.ErrValidation},
		{"display-name email", "bob", "Bob <bob@example.com>", apperror.ErrValidation},
		{"duplicate username", "alice", "other@example.com", apperror.ErrConflict},
		{"duplicate email", "carol", "alice@example.com", apperror.ErrConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := e.users.Create(context.Background(), tt.username, tt.email)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.NotEmpty(t, u.ID)
				assert.Zero(t, u.Points)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUserProfile(t *testing.T) {
	e := newEnv(t, newTestStore(t), ledger.DefaultPolicy())
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")

	thread := e.post(t, alice, nil)
	e.post(t, bob, thread)
	e.toggle(t, bob, thread)

	profile, err := e.users.Profile(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Username)
	assert.Equal(t, e.points(t, alice), profile.Points)
	require.Len(t, profile.Posts, 1)
	assert.Equal(t, 1, profile.Posts[0].LikesCount)
	assert.Equal(t, 1, profile.Posts[0].RepliesCount)

	_, err = e.users.Profile(context.Background(), "")
	assert.ErrorIs(t, err, apperror.ErrValidation)
	_, err = e.users.Profile(context.Background(), "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestUserListAndDelete(t *testing.T) {
	e := newEnv(t, newTestStore(t), ledger.DefaultPolicy())
	alice := e.user(t, "alice")
	bob := e.user(t, "bob")
	post := e.post(t, bob, nil)
	e.toggle(t, alice, post)
	bobPoints := e.points(t, bob)

	users, err := e.users.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, bob.ID, users[0].ID)

	require.NoError(t, e.users.Delete(context.Background(), alice.ID))
	assert.ErrorIs(t, e.users.Delete(context.Background(), alice.ID), apperror.ErrNotFound)

	// alice's like went with her; bob keeps what it earned him.
	counts, err := e.store.CountLikes(context.Background(), []string{post.ID})
	require.NoError(t, err)
	assert.Zero(t, counts[post.ID])
	assert.Equal(t, bobPoints, e.points(t, bob))
}
