package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/gosuda/trainhub/internal/domain"
)

type ExerciseRepo struct {
	db       DBTX
	tenantID string
}

func NewExerciseRepo(db DBTX, tenantID string) *ExerciseRepo {
	return &ExerciseRepo{db: db, tenantID: tenantID}
}

func (r *ExerciseRepo) Create(ctx context.Context, e *domain.Exercise) error {
	if e.TenantID != r.tenantID {
		return fmt.Errorf("exerciseRepo.Create: %w", domain.ErrForbidden)
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO exercises (id, tenant_id, workout_id, name, sets, reps, position, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, r.tenantID, e.WorkoutID, e.Name, e.Sets, e.Reps, e.Position, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("exerciseRepo.Create: %w", err)
	}

	return nil
}

func (r *ExerciseRepo) ListByWorkout(ctx context.Context, workoutID uuid.UUID) ([]*domain.Exercise, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, tenant_id, workout_id, name, sets, reps, position, created_at
		 FROM exercises WHERE tenant_id = $1 AND workout_id = $2
		 ORDER BY position, created_at`,
		r.tenantID, workoutID,
	)
	if err != nil {
		return nil, fmt.Errorf("exerciseRepo.ListByWorkout: %w", err)
	}
	defer rows.Close()

	var exercises []*domain.Exercise
	for rows.Next() {
		var e domain.Exercise
		if err := rows.Scan(&e.ID, &e.TenantID, &e.WorkoutID, &e.Name, &e.Sets, &e.Reps, &e.Position, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("exerciseRepo.ListByWorkout: scan: %w", err)
		}
		exercises = append(exercises, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("exerciseRepo.ListByWorkout: rows: %w", err)
	}

	return exercises, nil
}

func (r *ExerciseRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM exercises WHERE tenant_id = $1 AND id = $2`,
		r.tenantID, id,
	)
	if err != nil {
		return fmt.Errorf("exerciseRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("exerciseRepo.Delete: %w", domain.ErrNotFound)
	}

	return nil
}
