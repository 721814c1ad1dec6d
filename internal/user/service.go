package user

import (
	"context"
	"errors"
	"time"

	"expense_tracker/internal/apperror"
	"expense_tracker/internal/auth"
	"expense_tracker/internal/db"
	"expense_tracker/internal/observability"
	"expense_tracker/internal/utils"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

type UserServiceInterface interface {
	Register(ctx context.Context, username, email, password string) (*User, error)
	Login(ctx context.Context, username, password string) (*auth.TokenResponse, error)
	GetUserByID(ctx context.Context, id int) (*User, error)
}

type UserService struct {
	repo    UserRepositoryInterface
	db      *sqlx.DB
	vault   *auth.PasswordVault
	tokens  *auth.TokenService
	metrics *observability.Metrics
	now     func() time.Time
}

// NewUserService wires the account operations. tokens may be nil for callers
// that only register accounts; Login then fails with an internal error.
func NewUserService(
	repo UserRepositoryInterface,
	db *sqlx.DB,
	vault *auth.PasswordVault,
	tokens *auth.TokenService,
	metrics *observability.Metrics,
) UserServiceInterface {
	return &UserService{
		repo:    repo,
		db:      db,
		vault:   vault,
		tokens:  tokens,
		metrics: metrics,
		now:     time.Now,
	}
}

// Register creates an account unless the username or the email is already taken.
func (s *UserService) Register(ctx context.Context, username, email, password string) (*User, error) {
	existing, err := s.repo.GetByUsernameOrEmail(ctx, s.db, username, email)
	if err == nil && existing != nil {
		s.metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
		return nil, apperror.ErrConflict
	}
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return nil, apperror.New(apperror.Internal, "failed to check existing user", err)
	}

	hashedPassword, err := s.vault.Hash(password)
	if err != nil {
		// bcrypt limits bytes, binding limits runes.
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, apperror.New(apperror.Validation, "Invalid request: password failed on 'max'", err)
		}
		return nil, apperror.New(apperror.Internal, "failed to hash password", err)
	}

	user := &User{
		Username:  username,
		Email:     email,
		Password:  hashedPassword,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
	}

	err = utils.WithTransaction(ctx, s.db, func(tx *sqlx.Tx) error {
		id, err := s.repo.Create(ctx, tx, user)
		if err != nil {
			return err
		}
		user.ID = id
		return nil
	})
	if err != nil {
		// Lost a race with a concurrent registration of the same name.
		if db.IsUniqueViolation(err) {
			s.metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
			return nil, apperror.ErrConflict
		}
		return nil, apperror.New(apperror.Internal, "failed to create user", err)
	}

	s.metrics.RegistrationsTotal.WithLabelValues("success").Inc()
	return user, nil
}

// Login verifies credentials and issues an access token. Unknown usernames and
// wrong passwords are reported identically.
func (s *UserService) Login(ctx context.Context, username, password string) (*auth.TokenResponse, error) {
	user, err := s.repo.GetByUsername(ctx, s.db, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
			return nil, apperror.ErrInvalidCredentials
		}
		return nil, apperror.New(apperror.Internal, "failed to load user", err)
	}

	if !s.vault.Verify(password, user.Password) {
		s.metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		return nil, apperror.ErrInvalidCredentials
	}

	if s.tokens == nil {
		return nil, apperror.New(apperror.Internal, "token issuing is not configured", nil)
	}

	token, err := s.tokens.Issue(user.Username, s.now())
	if err != nil {
		return nil, apperror.New(apperror.Internal, "failed to issue token", err)
	}

	s.metrics.LoginsTotal.WithLabelValues("success").Inc()
	logrus.WithField("user_id", user.ID).Info("User logged in")

	return &auth.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.tokens.TTL().Seconds()),
	}, nil
}

// GetUserByID retrieves user by ID
func (s *UserService) GetUserByID(ctx context.Context, id int) (*User, error) {
	return s.repo.GetByID(ctx, s.db, id)
}
