package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/karma-feed/internal/apperror"
	"github.com/sakif/karma-feed/internal/auth"
	"github.com/sakif/karma-feed/internal/model"
)

// fakeUserRepo is an in-memory repository.UserRepository. AuthService only
// needs lookups, so the fake keeps it that small.
type fakeUserRepo struct {
	users      map[string]*model.User
	getByIDErr error
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[string]*model.User)}
	for _, u := range users {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	if f.getByIDErr != nil {
		return nil, f.getByIDErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return u, nil
}

func (f *fakeUserRepo) ListUsersByPoints(context.Context, int) ([]model.User, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeUserRepo) DeleteUser(_ context.Context, id string) error {
	delete(f.users, id)
	return nil
}

func newTestAuthService(t *testing.T, repo *fakeUserRepo) *AuthService {
	t.Helper()
	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars!!", time.Hour)
	require.NoError(t, err)
	return NewAuthService(repo, tokens, testLogger())
}

func TestIssueToken_RoundTrip(t *testing.T) {
	alice := &model.User{ID: "user-alice", Username: "alice"}
	svc := newTestAuthService(t, newFakeUserRepo(alice))

	result, err := svc.IssueToken(context.Background(), alice.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, alice, result.User)
	assert.NotEmpty(t, result.Token)

	userID, err := svc.ValidateToken(result.Token)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, userID)
}

func TestIssueToken_TTL(t *testing.T) {
	alice := &model.User{ID: "user-alice"}
	svc := newTestAuthService(t, newFakeUserRepo(alice))

	tests := []struct {
		name      string
		ttl       time.Duration
		wantLife  time.Duration
		wantValid bool
	}{
		{"zero uses the service lifetime", 0, time.Hour, true},
		{"positive overrides it", 30 * 24 * time.Hour, 30 * 24 * time.Hour, true},
		{"negative is already expired", -time.Second, -time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := svc.IssueToken(context.Background(), alice.ID, tt.ttl)
			require.NoError(t, err)

			var c jwt.RegisteredClaims
			_, _, err = jwt.NewParser().ParseUnverified(result.Token, &c)
			require.NoError(t, err)
			require.NotNil(t, c.ExpiresAt)
			require.NotNil(t, c.IssuedAt)
			assert.Equal(t, tt.wantLife, c.ExpiresAt.Sub(c.IssuedAt.Time))

			_, err = svc.ValidateToken(result.Token)
			if tt.wantValid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err, "a token issued already expired must not validate")
			}
		})
	}
}

func TestIssueToken_UnknownUser(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())

	_, err := svc.IssueToken(context.Background(), "ghost", 0)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestIssueToken_RepositoryFailure(t *testing.T) {
	repo := newFakeUserRepo(&model.User{ID: "user-alice"})
	repo.getByIDErr = errors.New("db down")
	svc := newTestAuthService(t, repo)

	_, err := svc.IssueToken(context.Background(), "user-alice", 0)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	svc := newTestAuthService(t, newFakeUserRepo())

	_, err := svc.ValidateToken("garbage")
	assert.Error(t, err)
}
