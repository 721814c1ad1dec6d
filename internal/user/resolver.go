package user

import (
	"context"
	"errors"
	"time"

	"expense_tracker/internal/apperror"
	"expense_tracker/internal/auth"
	"expense_tracker/internal/observability"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type TokenValidator interface {
	Validate(token string, now time.Time) (string, error)
}

// Resolver maps a bearer token to the account it was issued for.
type Resolver struct {
	tokens  TokenValidator
	repo    UserRepositoryInterface
	db      *sqlx.DB
	metrics *observability.Metrics
	now     func() time.Time
}

func NewResolver(tokens TokenValidator, repo UserRepositoryInterface, db *sqlx.DB, metrics *observability.Metrics) *Resolver {
	return &Resolver{
		tokens:  tokens,
		repo:    repo,
		db:      db,
		metrics: metrics,
		now:     time.Now,
	}
}

// Resolve returns the user named by token. Every failure, whatever its cause,
// is reported to the caller as apperror.ErrAuthFailure.
func (r *Resolver) Resolve(ctx context.Context, token string) (*User, error) {
	username, err := r.tokens.Validate(token, r.now())
	if err != nil {
		r.reject(failureReason(err), err)
		return nil, apperror.ErrAuthFailure
	}

	user, err := r.repo.GetByUsername(ctx, r.db, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			r.reject("unknown_user", err)
		} else {
			r.reject("lookup_failed", err)
		}
		return nil, apperror.ErrAuthFailure
	}

	return user, nil
}

// Reject records a failure that never reached token validation, such as a missing header.
func (r *Resolver) Reject(reason string) {
	r.reject(reason, nil)
}

func (r *Resolver) reject(reason string, err error) {
	r.metrics.AuthFailuresTotal.WithLabelValues(reason).Inc()
	entry := logrus.WithField("reason", reason)
	if err != nil {
		entry = entry.WithError(err)
	}
	entry.Debug("Rejected bearer token")
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "expired"
	case errors.Is(err, auth.ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, auth.ErrMalformedToken):
		return "malformed"
	default:
		return "invalid"
	}
}
