package middleware

import (
	"context"
	"strings"

	"expense_tracker/internal/apperror"
	"expense_tracker/internal/auth"
	"expense_tracker/internal/user"

	"github.com/gin-gonic/gin"
)

// IdentityResolver maps bearer tokens to accounts.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*user.User, error)
	Reject(reason string)
}

// AuthMiddleware resolves the bearer token and stores the caller's identity in the context.
func AuthMiddleware(resolver IdentityResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			resolver.Reject("missing")
			apperror.Respond(c, apperror.ErrAuthFailure)
			return
		}

		// Extract token from "Bearer <token>"
		scheme, token, found := strings.Cut(strings.TrimSpace(authHeader), " ")
		token = strings.TrimSpace(token)
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			resolver.Reject("bad_scheme")
			apperror.Respond(c, apperror.ErrAuthFailure)
			return
		}

		u, err := resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			apperror.Respond(c, apperror.ErrAuthFailure)
			return
		}

		c.Set(auth.UserIDKey, u.ID)
		c.Set(auth.UsernameKey, u.Username)
		c.Next()
	}
}
