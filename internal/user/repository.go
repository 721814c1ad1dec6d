package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

var ErrUserNotFound = errors.New("user not found")

type UserRepository struct{}

type UserRepositoryInterface interface {
	Create(ctx context.Context, q sqlx.ExtContext, user *User) (int, error)
	GetByID(ctx context.Context, q sqlx.ExtContext, id int) (*User, error)
	GetByUsername(ctx context.Context, q sqlx.ExtContext, username string) (*User, error)
	GetByUsernameOrEmail(ctx context.Context, q sqlx.ExtContext, username, email string) (*User, error)
}

func NewUserRepository() UserRepositoryInterface {
	return &UserRepository{}
}

const selectUser = `SELECT id, username, email, password, created_at FROM users`

// Create creates a new user in the database
func (r *UserRepository) Create(ctx context.Context, q sqlx.ExtContext, user *User) (int, error) {
	query := q.Rebind(`
		INSERT INTO users (username, email, password, created_at)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`)

	var id int
	err := sqlx.GetContext(ctx, q, &id, query,
		user.Username,
		user.Email,
		user.Password,
		user.CreatedAt,
	)
	if err != nil {
		return 0, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":  id,
		"username": user.Username,
	}).Info("User created successfully")

	return id, nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, q sqlx.ExtContext, id int) (*User, error) {
	return r.getOne(ctx, q, selectUser+` WHERE id = ?`, id)
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, q sqlx.ExtContext, username string) (*User, error) {
	return r.getOne(ctx, q, selectUser+` WHERE username = ?`, username)
}

// GetByUsernameOrEmail returns any user holding either identifier.
func (r *UserRepository) GetByUsernameOrEmail(ctx context.Context, q sqlx.ExtContext, username, email string) (*User, error) {
	return r.getOne(ctx, q, selectUser+` WHERE username = ? OR email = ? LIMIT 1`, username, email)
}

func (r *UserRepository) getOne(ctx context.Context, q sqlx.ExtContext, query string, args ...interface{}) (*User, error) {
	user := &User{}
	if err := sqlx.GetContext(ctx, q, user, q.Rebind(query), args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		logrus.WithError(err).Error("Failed to query user")
		return nil, err
	}
	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}
