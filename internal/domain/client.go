package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Client is a person coached by the tenant's staff.
type Client struct {
	ID        uuid.UUID
	TenantID  string
	CoachID   *uuid.UUID // nullable
	Name      string
	Email     string
	Notes     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewClient creates a Client with validated required fields.
func NewClient(tenantID, name, email string, coachID *uuid.UUID) (*Client, error) {
	if tenantID == "" {
		return nil, errors.New("client: tenant ID is required")
	}
	if name == "" {
		return nil, errors.New("client: name is required")
	}
	now := time.Now()
	return &Client{
		ID:        uuid.New(),
		TenantID:  tenantID,
		CoachID:   coachID,
		Name:      name,
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

type ClientRepository interface {
	Create(ctx context.Context, c *Client) error
	GetByID(ctx context.Context, id uuid.UUID) (*Client, error)
	Update(ctx context.Context, c *Client) error
	List(ctx context.Context, limit, offset int) ([]*Client, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
