package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gosuda/trainhub/internal/domain"
)

// UserRepo is bound to one tenant. Every statement filters on that tenant in
// addition to whatever the database enforces for the session.
type UserRepo struct {
	db       DBTX
	tenantID string
}

func NewUserRepo(db DBTX, tenantID string) *UserRepo {
	return &UserRepo{db: db, tenantID: tenantID}
}

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.TenantID != r.tenantID {
		return fmt.Errorf("userRepo.Create: %w", domain.ErrForbidden)
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO users (id, tenant_id, email, password_hash, name, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, r.tenantID, u.Email, nilIfEmpty(u.PasswordHash),
		u.Name, u.Role, u.CreatedAt, u.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("userRepo.Create: %w", domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("userRepo.Create: %w", err)
	}

	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT id, tenant_id, email, password_hash, name, role, created_at, updated_at
		 FROM users WHERE tenant_id = $1 AND id = $2`,
		r.tenantID, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("userRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetByID: %w", err)
	}

	return u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	u, err := scanUser(r.db.QueryRow(ctx,
		`SELECT id, tenant_id, email, password_hash, name, role, created_at, updated_at
		 FROM users WHERE tenant_id = $1 AND email = $2`,
		r.tenantID, email,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("userRepo.GetByEmail: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("userRepo.GetByEmail: %w", err)
	}

	return u, nil
}

func (r *UserRepo) Update(ctx context.Context, u *domain.User) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET email = $1, password_hash = $2, name = $3, role = $4, updated_at = now()
		 WHERE tenant_id = $5 AND id = $6`,
		u.Email, nilIfEmpty(u.PasswordHash), u.Name, u.Role,
		r.tenantID, u.ID,
	)
	if err != nil {
		return fmt.Errorf("userRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("userRepo.Update: %w", domain.ErrNotFound)
	}

	return nil
}

func (r *UserRepo) List(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, tenant_id, email, password_hash, name, role, created_at, updated_at
		 FROM users WHERE tenant_id = $1 ORDER BY created_at, id
		 LIMIT 500`,
		r.tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("userRepo.List: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("userRepo.List: scan: %w", err)
		}
		users = append(users, u)
	}
	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("userRepo.List: rows: %w", err)
	}

	return users, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	var passwordHash *string

	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &passwordHash, &u.Name, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = derefStr(passwordHash)

	return &u, nil
}
