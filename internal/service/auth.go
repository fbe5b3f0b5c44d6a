package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/karma-feed/internal/auth"
	"github.com/sakif/karma-feed/internal/model"
	"github.com/sakif/karma-feed/internal/repository"
)

// AuthService issues and checks the tokens that carry the acting identity.
//
//	karmactl user create → UserService.Create → AuthService.IssueToken
//	HTTP request         → auth middleware    → TokenService.Validate
//
// Accounts are provisioned by operators; there is no login or registration
// endpoint, so IssueToken is only reachable from the CLI.
type AuthService struct {
	users  repository.UserRepository
	tokens *auth.TokenService
	logger *slog.Logger
}

func NewAuthService(users repository.UserRepository, tokens *auth.TokenService, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

// AuthResult bundles a user with a freshly signed token.
type AuthResult struct {
	User  *model.User
	Token string
}

// IssueToken signs a token for an existing user. A zero ttl uses the token
// service's default lifetime; a negative ttl signs an already expired token.
func (s *AuthService) IssueToken(ctx context.Context, userID string, ttl time.Duration) (*AuthResult, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	var token string
	if ttl != 0 {
		token, err = s.tokens.GenerateWithDuration(user.ID, ttl)
	} else {
		token, err = s.tokens.Generate(user.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}

	s.logger.Info("token issued", slog.String("userID", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// ValidateToken returns the user ID a token was issued for.
func (s *AuthService) ValidateToken(tokenStr string) (string, error) {
	userID, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return "", fmt.Errorf("service/auth: %w", err)
	}
	return userID, nil
}
