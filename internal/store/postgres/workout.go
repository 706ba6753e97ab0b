package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gosuda/trainhub/internal/domain"
)

type WorkoutRepo struct {
	db       DBTX
	tenantID string
}

func NewWorkoutRepo(db DBTX, tenantID string) *WorkoutRepo {
	return &WorkoutRepo{db: db, tenantID: tenantID}
}

func (r *WorkoutRepo) Create(ctx context.Context, w *domain.Workout) error {
	if w.TenantID != r.tenantID {
		return fmt.Errorf("workoutRepo.Create: %w", domain.ErrForbidden)
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO workouts (id, tenant_id, client_id, title, status, scheduled_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.ID, r.tenantID, w.ClientID, w.Title, string(w.Status), w.ScheduledAt,
		w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("workoutRepo.Create: %w", err)
	}

	return nil
}

func (r *WorkoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Workout, error) {
	w, err := scanWorkout(r.db.QueryRow(ctx,
		`SELECT id, tenant_id, client_id, title, status, scheduled_at, created_at, updated_at
		 FROM workouts WHERE tenant_id = $1 AND id = $2`,
		r.tenantID, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("workoutRepo.GetByID: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("workoutRepo.GetByID: %w", err)
	}

	return w, nil
}

func (r *WorkoutRepo) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*domain.Workout, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, tenant_id, client_id, title, status, scheduled_at, created_at, updated_at
		 FROM workouts WHERE tenant_id = $1 AND client_id = $2
		 ORDER BY scheduled_at`,
		r.tenantID, clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("workoutRepo.ListByClient: %w", err)
	}
	defer rows.Close()

	var workouts []*domain.Workout
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			return nil, fmt.Errorf("workoutRepo.ListByClient: scan: %w", err)
		}
		workouts = append(workouts, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workoutRepo.ListByClient: rows: %w", err)
	}

	return workouts, nil
}

// UpdateStatus applies a status change only if the transition is valid for
// the stored status.
func (r *WorkoutRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.WorkoutStatus) error {
	var current string
	err := r.db.QueryRow(ctx,
		`SELECT status FROM workouts WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
		r.tenantID, id,
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("workoutRepo.UpdateStatus: %w", domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("workoutRepo.UpdateStatus: %w", err)
	}

	if !domain.WorkoutStatus(current).ValidTransition(status) {
		return fmt.Errorf("workoutRepo.UpdateStatus: %s -> %s: %w", current, status, domain.ErrInvalidTransition)
	}

	_, err = r.db.Exec(ctx,
		`UPDATE workouts SET status = $1, updated_at = now() WHERE tenant_id = $2 AND id = $3`,
		string(status), r.tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("workoutRepo.UpdateStatus: %w", err)
	}

	return nil
}

func (r *WorkoutRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM workouts WHERE tenant_id = $1 AND id = $2`,
		r.tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("workoutRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("workoutRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}

func scanWorkout(row pgx.Row) (*domain.Workout, error) {
	var w domain.Workout
	var status string

	err := row.Scan(&w.ID, &w.TenantID, &w.ClientID, &w.Title, &status, &w.ScheduledAt, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	w.Status = domain.WorkoutStatus(status)

	return &w, nil
}
