package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID           uuid.UUID
	TenantID     string
	Email        string
	PasswordHash string // argon2id
	Name         string
	Role         string // "admin", "coach", or "viewer"
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserRepository is bound to a single tenant when it is constructed.
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	List(ctx context.Context) ([]*User, error)
}
