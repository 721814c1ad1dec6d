// Package apperror defines the error kinds returned to the HTTP boundary.
// Kinds collapse detail: an unknown subject and a bad token are both
// AuthFailure, and an expense owned by someone else is NotFound.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

type Kind int

const (
	Internal Kind = iota
	Conflict
	InvalidCredentials
	AuthFailure
	NotFound
	InvalidFilter
	InvalidGroupBy
	Validation
)

func (k Kind) String() string {
	switch k {
	case Conflict:
		return "conflict"
	case InvalidCredentials:
		return "invalid_credentials"
	case AuthFailure:
		return "auth_failure"
	case NotFound:
		return "not_found"
	case InvalidFilter:
		return "invalid_filter"
	case InvalidGroupBy:
		return "invalid_group_by"
	case Validation:
		return "validation"
	default:
		return "internal"
	}
}

type AppError struct {
	Kind    Kind
	Message string
	Err     error
}

var (
	ErrConflict           = &AppError{Kind: Conflict, Message: "Username or email already exists"}
	ErrInvalidCredentials = &AppError{Kind: InvalidCredentials, Message: "Invalid credentials"}
	ErrAuthFailure        = &AppError{Kind: AuthFailure, Message: "Invalid token"}
	ErrNotFound           = &AppError{Kind: NotFound, Message: "Expense not found"}
	ErrInvalidFilter      = &AppError{Kind: InvalidFilter, Message: "Month must be in YYYY-MM format"}
	ErrInvalidGroupBy     = &AppError{Kind: InvalidGroupBy, Message: "Invalid group_by value"}
)

func New(kind Kind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError of the same kind, so errors.Is(err, ErrNotFound)
// holds regardless of message or wrapped cause.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

func (e *AppError) StatusCode() int {
	switch e.Kind {
	case Conflict:
		return http.StatusConflict
	case InvalidCredentials, AuthFailure:
		return http.StatusUnauthorized
	case NotFound:
		return http.StatusNotFound
	case InvalidFilter, InvalidGroupBy, Validation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// KindOf returns Internal for errors that are not AppErrors.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return Internal
}

// FromBinding converts a gin binding failure into a Validation error naming the offending fields.
func FromBinding(err error) *AppError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fmt.Sprintf("%s failed on '%s'", strings.ToLower(fe.Field()), fe.Tag()))
		}
		return New(Validation, "Invalid request: "+strings.Join(fields, ", "), err)
	}
	return New(Validation, "Invalid request body", err)
}

// Respond writes err as a JSON error body and aborts the gin chain.
func Respond(c *gin.Context, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = New(Internal, "Internal server error", err)
	}

	if appErr.Kind == Internal {
		logrus.WithError(err).WithField("path", c.FullPath()).Error("Request failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if appErr.Kind == AuthFailure {
		c.Header("WWW-Authenticate", "Bearer")
	}
	c.AbortWithStatusJSON(appErr.StatusCode(), gin.H{"error": appErr.Message})
}
