package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinels(t *testing.T) {
	sentinels := []error{ErrNotFound, ErrValidation, ErrConflict, ErrForbidden, ErrUnauthorized}

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"missing post", NotFound("post", "cv1k2c"), ErrNotFound},
		{"blank content", ValidationFailed("content", "content is required"), ErrValidation},
		{"duplicate username", Conflict("user", "alice"), ErrConflict},
		{"concurrent toggle", Retryable("toggling like", errors.New("database is locked")), ErrConflict},
		{"deleting someone else's post", Forbidden("only the author may delete a post"), ErrForbidden},
		{"anonymous like", Unauthorized("authentication required"), ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("service: %w", tt.err)
			for _, s := range sentinels {
				assert.Equal(t, s == tt.want, errors.Is(wrapped, s), "errors.Is(%v, %v)", tt.err, s)
			}
		})
	}
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "post not found with id abc123", NotFound("post", "abc123").Error())
	assert.Equal(t, "user conflict with id alice", Conflict("user", "alice").Error())
	assert.Contains(t, Retryable("toggling like", nil).Error(), "retry")

	err := ValidationFailed("parentId", "parentId is not a valid post ID")
	assert.Equal(t, "parentId is not a valid post ID", err.Error())
	assert.Equal(t, "parentId", err.Field)
}

func TestRetryable(t *testing.T) {
	cause := errors.New("SQLITE_BUSY")
	err := Retryable("toggling like", cause)

	assert.True(t, IsRetryable(err))
	assert.True(t, IsRetryable(fmt.Errorf("service: %w", err)), "flag must survive wrapping")
	assert.Same(t, cause, err.Cause())

	// The storage cause is for logs; it is not part of the error chain.
	assert.False(t, errors.Is(err, cause))

	assert.False(t, IsRetryable(Conflict("user", "alice")))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
	assert.Nil(t, NotFound("post", "x").Cause())
}
