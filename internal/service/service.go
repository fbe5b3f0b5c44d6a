// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services accept primitives (an acting user ID, content, a post ID), never
// HTTP types, so the same operations back the HTTP API and the karmactl CLI.
// They return apperror values; the handler decides the status code.
//
// KARMA WRITES:
// Every operation that moves a user's points runs inside repository.Store's
// WithinTx. The triggering mutation (post insert, like insert/delete) and the
// ledger's relative increment share that transaction, so either both commit
// or neither does. A transaction aborted by a concurrent writer comes back as
// apperror.Retryable and the whole operation can be repeated by the caller.
package service

import (
	"fmt"
	"time"

	"github.com/sakif/karma-feed/internal/apperror"
)

// Validation and paging constants.
const (
	MaxContentLength = 10000
	DefaultListLimit = 20
	MaxListLimit     = 100
	MaxUsernameLen   = 50
	MaxEmailLen      = 254
	// MaxWindowHours is one year.
	MaxWindowHours = 8760
)

// Option configures optional service dependencies.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces time.Now. Tests use it to place likes exactly on a
// window boundary.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// requireActor rejects anonymous callers before anything touches storage.
func requireActor(actorID string) error {
	if actorID == "" {
		return apperror.Unauthorized("authentication required")
	}
	return nil
}

// clampLimit applies the default for non-positive values and the hard cap.
func clampLimit(limit, def int) int {
	if limit <= 0 {
		limit = def
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit
}

func tooLong(field string, max int) error {
	return apperror.ValidationFailed(field, fmt.Sprintf("%s must be %d characters or less", field, max))
}
