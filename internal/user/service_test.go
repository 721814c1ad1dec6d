package user

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"expense_tracker/internal/apperror"
	"expense_tracker/internal/auth"
	"expense_tracker/internal/config"
	"expense_tracker/internal/db/dbtest"
	"expense_tracker/internal/observability"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) (*UserService, *auth.TokenService) {
	t.Helper()
	conn, _ := dbtest.NewSQLite(t)

	tokens, err := auth.NewTokenService(config.JWTConfig{Secret: "test-secret", Algorithm: "HS256", TTLMinutes: 30})
	require.NoError(t, err)
	vault := auth.NewPasswordVault(config.PasswordConfig{Scheme: config.PasswordSchemeBcrypt, BcryptCost: bcrypt.MinCost})
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	svc := NewUserService(NewUserRepository(), conn, vault, tokens, metrics).(*UserService)
	return svc, tokens
}

func TestRegister_Success(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEqual(t, "password123", user.Password)
	assert.Equal(t, time.UTC, user.CreatedAt.Location())

	stored, err := svc.repo.GetByUsername(ctx, svc.db, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.ID)
	assert.Equal(t, user.Password, stored.Password)
	assert.True(t, user.CreatedAt.Equal(stored.CreatedAt))

	assert.Equal(t, 1.0, testutil.ToFloat64(svc.metrics.RegistrationsTotal.WithLabelValues("success")))
}

func TestRegister_MultiBytePasswordOverBcryptLimit(t *testing.T) {
	svc, _ := newTestService(t)

	// 30 runes, 90 bytes.
	password := strings.Repeat("€", 30)

	user, err := svc.Register(context.Background(), "zoe", "zoe@example.com", password)
	require.Error(t, err)
	assert.Nil(t, user)
	assert.Equal(t, apperror.Validation, apperror.KindOf(err))

	_, err = svc.repo.GetByUsername(context.Background(), svc.db, "zoe")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRegister_DuplicateUsernameOrEmail(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	tests := []struct {
		name     string
		username string
		email    string
	}{
		{"Same username", "alice", "other@example.com"},
		{"Same email", "bob", "alice@example.com"},
		{"Both", "alice", "alice@example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.Register(ctx, tt.username, tt.email, "password123")
			assert.ErrorIs(t, err, apperror.ErrConflict)
			assert.Nil(t, user)
		})
	}
}

func TestRegister_ConcurrentSameUsername(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const attempts = 5
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Register(ctx, "racer", "racer@example.com", "password123")
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, apperror.ErrConflict)
	}
	assert.Equal(t, 1, succeeded)
}

func TestLogin_Success(t *testing.T) {
	svc, tokens := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	resp, err := svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)

	assert.Equal(t, "bearer", resp.TokenType)
	assert.Equal(t, int64(30*60), resp.ExpiresIn)

	subject, err := tokens.Validate(resp.AccessToken, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "alice", subject)
}

func TestLogin_InvalidCredentialsAreIndistinguishable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	_, wrongPassword := svc.Login(ctx, "alice", "wrong-password")
	_, unknownUser := svc.Login(ctx, "nobody", "password123")

	assert.ErrorIs(t, wrongPassword, apperror.ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, apperror.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error())
	assert.Equal(t, 2.0, testutil.ToFloat64(svc.metrics.LoginsTotal.WithLabelValues("invalid_credentials")))
}

func TestLogin_WithoutTokenService(t *testing.T) {
	svc, _ := newTestService(t)
	svc.tokens = nil
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice", "alice@example.com", "password123")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "alice", "password123")
	assert.Equal(t, apperror.Internal, apperror.KindOf(err))
}

func TestGetUserByID_NotFound(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.GetUserByID(context.Background(), 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Nil(t, user)
}
