// Package auth implements registration and token-based authentication.
// Credentials are bcrypt-hashed before they reach the store; sessions are
// stateless HS256 JWTs carrying the user's email as subject.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/sentientrolodex/backend/pkg/common/errors"
	"github.com/sentientrolodex/backend/pkg/store"
)

// DefaultTokenTTL matches the original session length of seven days.
const DefaultTokenTTL = 7 * 24 * time.Hour

// Service authenticates users against the relationship store.
type Service struct {
	store    *store.Store
	secret   []byte
	tokenTTL time.Duration
}

// NewService creates an auth service with the given signing secret.
func NewService(s *store.Store, secret string) *Service {
	return &Service{store: s, secret: []byte(secret), tokenTTL: DefaultTokenTTL}
}

// Register creates a user with a hashed credential and returns the new
// user's identifier. Duplicate emails are rejected by the store.
func (s *Service) Register(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: invalid email", apperrors.ErrInvalidInput)
	}
	if password == "" {
		return "", fmt.Errorf("%w: empty password", apperrors.ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return s.store.CreateUser(ctx, email, string(hash))
}

// SignIn verifies the credentials and returns a signed token. Absent user
// and wrong password are indistinguishable to the caller.
func (s *Service) SignIn(ctx context.Context, email, password string) (string, error) {
	user, err := s.store.FindUser(ctx, email)
	if errors.Is(err, apperrors.ErrNotFound) {
		return "", fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
	}
	if err != nil {
		return "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return "", fmt.Errorf("%w: invalid credentials", apperrors.ErrUnauthorized)
	}
	return s.signToken(email, time.Now())
}

func (s *Service) signToken(email string, now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Authenticate verifies a token and resolves the user it belongs to.
// Error kinds: ErrUnauthorized (missing/invalid token), ErrTokenExpired,
// ErrUserNotFound (valid token for a user that no longer exists).
func (s *Service) Authenticate(ctx context.Context, tokenString string) (*store.User, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("%w: not authenticated", apperrors.ErrUnauthorized)
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, fmt.Errorf("%w", apperrors.ErrTokenExpired)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token", apperrors.ErrUnauthorized)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: invalid token", apperrors.ErrUnauthorized)
	}

	user, err := s.store.FindUser(ctx, claims.Subject)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("%w", apperrors.ErrUserNotFound)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
