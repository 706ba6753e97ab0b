package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gosuda/trainhub/internal/domain"
)

type ClientRepo struct {
	db       DBTX
	tenantID string
}

func NewClientRepo(db DBTX, tenantID string) *ClientRepo {
	return &ClientRepo{db: db, tenantID: tenantID}
}

func (r *ClientRepo) Create(ctx context.Context, c *domain.Client) error {
	if c.TenantID != r.tenantID {
		return fmt.Errorf("clientRepo.Create: %w", domain.ErrForbidden)
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO clients (id, tenant_id, coach_id, name, email, notes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, r.tenantID, c.CoachID, c.Name, nilIfEmpty(c.Email), nilIfEmpty(c.Notes),
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("clientRepo.Create: %w", err)
	}

	return nil
}

func (r *ClientRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Client, error) {
	c, err := scanClient(r.db.QueryRow(ctx,
		`SELECT id, tenant_id, coach_id, name, email, notes, created_at, updated_at
		 FROM clients WHERE tenant_id = $1 AND id = $2`,
		r.tenantID, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("clientRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("clientRepo.GetByID: %w", err)
	}

	return c, nil
}

func (r *ClientRepo) Update(ctx context.Context, c *domain.Client) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE clients SET coach_id = $1, name = $2, email = $3, notes = $4, updated_at = now()
		 WHERE tenant_id = $5 AND id = $6`,
		c.CoachID, c.Name, nilIfEmpty(c.Email), nilIfEmpty(c.Notes),
		r.tenantID, c.ID,
	)
	if err != nil {
		return fmt.Errorf("clientRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("clientRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *ClientRepo) List(ctx context.Context, limit, offset int) ([]*domain.Client, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, tenant_id, coach_id, name, email, notes, created_at, updated_at
		 FROM clients WHERE tenant_id = $1
		 ORDER BY created_at, id
		 LIMIT $2 OFFSET $3`,
		r.tenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("clientRepo.List: %w", err)
	}
	defer rows.Close()

	var clients []*domain.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, fmt.Errorf("clientRepo.List: scan: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clientRepo.List: rows: %w", err)
	}

	return clients, nil
}

func (r *ClientRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM clients WHERE tenant_id = $1 AND id = $2`,
		r.tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("clientRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("clientRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func scanClient(row pgx.Row) (*domain.Client, error) {
	var c domain.Client
	var email, notes *string

	err := row.Scan(&c.ID, &c.TenantID, &c.CoachID, &c.Name, &email, &notes, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Email = derefStr(email)
	c.Notes = derefStr(notes)

	return &c, nil
}
