package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/gosuda/trainhub/internal/domain"
	"github.com/gosuda/trainhub/internal/tenancy"
)

// Sentinel errors for the auth package.
var (
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrUserAlreadyExists  = errors.New("auth: user already exists")
	ErrUserNotFound       = errors.New("auth: user not found")
)

// argon2id parameters following OWASP recommendations.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // 64 MiB
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// Scoper runs work inside a tenant-scoped unit of work. *tenancy.Manager
// satisfies it.
type Scoper interface {
	Scoped(ctx context.Context, tenantID string, fn func(tenancy.Accessors) error) error
}

// Service provides authentication operations. User lookups always go
// through the tenant's facade, never a shared connection.
type Service struct {
	scoper     Scoper
	jwtSecret  string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewService(scoper Scoper, jwtSecret string, accessTTL, refreshTTL time.Duration) *Service {
	return &Service{
		scoper:     scoper,
		jwtSecret:  jwtSecret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// Register creates a user in tenantID. The password is hashed with argon2id
// before storage.
func (s *Service) Register(ctx context.Context, tenantID, email, password, name, role string) (*domain.User, error) {
	hash, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("auth.Register: %w", err)
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.scoper.Scoped(ctx, tenantID, func(tx tenancy.Accessors) error {
		existing, err := tx.Users().GetByEmail(ctx, email)
		if err == nil && existing != nil {
			return ErrUserAlreadyExists
		}
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return tx.Users().Create(ctx, user)
	})
	if err != nil {
		return nil, fmt.Errorf("auth.Register: %w", err)
	}

	return user, nil
}

// Login validates email/password within tenantID and returns access and
// refresh tokens. Unknown tenants and unknown users look the same to the
// caller.
func (s *Service) Login(ctx context.Context, tenantID, email, password string) (accessToken, refreshToken string, err error) {
	var user *domain.User
	err = s.scoper.Scoped(ctx, tenantID, func(tx tenancy.Accessors) error {
		user, err = tx.Users().GetByEmail(ctx, email)
		return err
	})
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrTenantNotFound) {
		return "", "", fmt.Errorf("auth.Login: %w", ErrInvalidCredentials)
	}
	if err != nil {
		return "", "", fmt.Errorf("auth.Login: %w", err)
	}

	if !verifyPassword(password, user.PasswordHash) {
		return "", "", fmt.Errorf("auth.Login: %w", ErrInvalidCredentials)
	}

	accessToken, err = IssueAccessToken(s.jwtSecret, user.TenantID, user.ID, user.Role, s.accessTTL)
	if err != nil {
		return "", "", fmt.Errorf("auth.Login: %w", err)
	}

	refreshToken, err = IssueRefreshToken(s.jwtSecret, user.TenantID, user.ID, user.Role, s.refreshTTL)
	if err != nil {
		return "", "", fmt.Errorf("auth.Login: %w", err)
	}

	return accessToken, refreshToken, nil
}

// RefreshToken validates a refresh token and issues a new access token with
// the user's current role.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := ValidateToken(s.jwtSecret, refreshToken)
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: %w", err)
	}

	if claims.TokenType != tokenTypeRefresh {
		return "", fmt.Errorf("auth.RefreshToken: %w", ErrInvalidToken)
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: invalid user id: %w", ErrInvalidToken)
	}

	user, err := s.GetUser(ctx, claims.TenantID, userID)
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: %w", ErrUserNotFound)
	}

	newAccess, err := IssueAccessToken(s.jwtSecret, user.TenantID, user.ID, user.Role, s.accessTTL)
	if err != nil {
		return "", fmt.Errorf("auth.RefreshToken: %w", err)
	}

	return newAccess, nil
}

// GetUser returns a user of tenantID by ID.
func (s *Service) GetUser(ctx context.Context, tenantID string, userID uuid.UUID) (*domain.User, error) {
	var user *domain.User
	err := s.scoper.Scoped(ctx, tenantID, func(tx tenancy.Accessors) error {
		var err error
		user, err = tx.Users().GetByID(ctx, userID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("auth.GetUser: %w", err)
	}

	return user, nil
}

// hashPassword generates an argon2id hash with a random salt.
// Format: hex(salt) + "$" + hex(hash)
func hashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return hex.EncodeToString(salt) + "$" + hex.EncodeToString(hash), nil
}

// verifyPassword checks a password against an argon2id hash.
func verifyPassword(password, encoded string) bool {
	saltHex, hashHex, ok := strings.Cut(encoded, "$")
	if !ok || saltHex == "" || hashHex == "" {
		return false
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return false
	}

	expected, err := hex.DecodeString(hashHex)
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	return subtle.ConstantTimeCompare(computed, expected) == 1
}
