package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"expense_tracker/internal/config"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpiredToken     = errors.New("token expired")
)

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"` // seconds
}

// TokenService issues and validates HMAC-signed bearer tokens carrying sub and exp.
type TokenService struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	parser *jwt.Parser
}

func NewTokenService(cfg config.JWTConfig) (*TokenService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	method, ok := jwt.GetSigningMethod(cfg.Algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}

	return &TokenService{
		secret: []byte(cfg.Secret),
		method: method,
		ttl:    cfg.TTL(),
		// Time-based claims are checked in Validate against the caller's clock;
		// the library's own check would reject tokens at exactly exp.
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{method.Alg()}),
			jwt.WithoutClaimsValidation(),
			jwt.WithStrictDecoding(),
		),
	}, nil
}

func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for subject that expires ttl after now.
func (s *TokenService) Issue(subject string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}

	token := jwt.NewWithClaims(s.method, claims)
	return token.SignedString(s.secret)
}

// Validate verifies the signature and expiry of tokenString and returns its subject.
// A token is still valid at exactly its exp second and expired one second later.
func (s *TokenService) Validate(tokenString string, now time.Time) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := s.parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return "", s.classify(tokenString, err)
	}

	if claims.Subject == "" || claims.ExpiresAt == nil {
		return "", ErrMalformedToken
	}

	if now.Unix() > claims.ExpiresAt.Unix() {
		return "", ErrExpiredToken
	}

	return claims.Subject, nil
}

func (s *TokenService) classify(tokenString string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		// Header and claims decode but the signature segment does not: the
		// signature was tampered with rather than the token structure.
		if strings.Count(tokenString, ".") == 2 {
			if _, _, uerr := s.parser.ParseUnverified(tokenString, &jwt.RegisteredClaims{}); uerr == nil {
				return ErrInvalidSignature
			}
		}
		return ErrMalformedToken
	default:
		return ErrMalformedToken
	}
}
