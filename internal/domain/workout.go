package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

type WorkoutStatus string

const (
	WorkoutStatusPlanned    WorkoutStatus = "planned"
	WorkoutStatusInProgress WorkoutStatus = "in_progress"
	WorkoutStatusCompleted  WorkoutStatus = "completed"
	WorkoutStatusSkipped    WorkoutStatus = "skipped"
)

// ValidTransition checks if a workout status transition is allowed.
// Allowed: planned->in_progress, planned->skipped, in_progress->completed.
func (s WorkoutStatus) ValidTransition(to WorkoutStatus) bool {
	switch s {
	case WorkoutStatusPlanned:
		return to == WorkoutStatusInProgress || to == WorkoutStatusSkipped
	case WorkoutStatusInProgress:
		return to == WorkoutStatusCompleted
	default:
		return false
	}
}

var ErrInvalidTransition = errors.New("workout: invalid status transition")

type Workout struct {
	ID          uuid.UUID
	TenantID    string
	ClientID    uuid.UUID
	Title       string
	Status      WorkoutStatus
	ScheduledAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Exercise is a single movement prescribed inside a workout.
type Exercise struct {
	ID        uuid.UUID
	TenantID  string
	WorkoutID uuid.UUID
	Name      string
	Sets      int
	Reps      int
	Position  int
	CreatedAt time.Time
}

type WorkoutRepository interface {
	Create(ctx context.Context, w *Workout) error
	GetByID(ctx context.Context, id uuid.UUID) (*Workout, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*Workout, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status WorkoutStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type ExerciseRepository interface {
	Create(ctx context.Context, e *Exercise) error
	ListByWorkout(ctx context.Context, workoutID uuid.UUID) ([]*Exercise, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
