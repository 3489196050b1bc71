// Package auth is the credential collaborator: account registration with
// bcrypt password hashing, login issuing signed bearer tokens, and token
// verification resolving a caller to a user ID.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/roadmapai/backend/internal/store/sqlite"
)

var ErrInvalidCredentials = errors.New("auth: invalid credentials")

// Service issues and verifies credentials against the user store.
type Service struct {
	store     *sqlite.Store
	secret    []byte
	accessTTL time.Duration
}

func NewService(store *sqlite.Store, secret string, accessTTL time.Duration) *Service {
	return &Service{
		store:     store,
		secret:    []byte(secret),
		accessTTL: accessTTL,
	}
}

// Register creates an account. The password is bcrypt-hashed before it
// touches the store.
func (s *Service) Register(ctx context.Context, email, password, name string) (*sqlite.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("auth: email and password are required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}

	u := &sqlite.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		Name:         strings.TrimSpace(name),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login checks the password and returns a signed access token plus the
// account. Lookup and comparison failures collapse into
// ErrInvalidCredentials so the response never reveals which was wrong.
func (s *Service) Login(ctx context.Context, email, password string) (string, *sqlite.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, sqlite.ErrUserNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("auth: look up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.issueToken(u.ID)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

func (s *Service) issueToken(userID string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(s.accessTTL).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return token, nil
}

// User resolves a verified identity back to its account, for callers that
// need more than the user ID carried in the token.
func (s *Service) User(ctx context.Context, userID string) (*sqlite.User, error) {
	return s.store.GetUserByID(ctx, userID)
}

// Verify resolves a bearer token to the user ID it was issued for.
func (s *Service) Verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidCredentials
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidCredentials
	}
	return sub, nil
}
