package v1_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	v1 "github.com/gosuda/trainhub/internal/api/v1"
	"github.com/gosuda/trainhub/internal/domain"
	"github.com/gosuda/trainhub/internal/server/middleware"
)

// ---------------------------------------------------------------------------
// POST /workouts
// ---------------------------------------------------------------------------

func TestCreateWorkout(t *testing.T) {
	t.Parallel()

	clientID := uuid.New()

	t.Run("workout_and_exercises_in_one_transaction", func(t *testing.T) {
		t.Parallel()

		var (
			workout   *domain.Workout
			exercises []*domain.Exercise
		)
		scope := &mockScope{
			tenantID: "org-a",
			clients: &mockClientRepo{
				getByIDFunc: func(_ context.Context, id uuid.UUID) (*domain.Client, error) {
					return &domain.Client{ID: id, TenantID: "org-a"}, nil
				},
			},
			workouts: &mockWorkoutRepo{
				createFunc: func(_ context.Context, w *domain.Workout) error {
					workout = w
					return nil
				},
			},
			exercises: &mockExerciseRepo{
				createFunc: func(_ context.Context, e *domain.Exercise) error {
					exercises = append(exercises, e)
					return nil
				},
			},
		}

		_, api := humatest.New(t)
		v1.RegisterWorkoutRoutes(api)

		resp := api.PostCtx(scopedCtx(scope, middleware.RoleCoach), "/workouts", map[string]any{
			"client_id":    clientID.String(),
			"title":        "Leg day",
			"scheduled_at": time.Date(2026, 10, 20, 7, 0, 0, 0, time.UTC).Format(time.RFC3339),
			"exercises": []map[string]any{
				{"name": "Squat", "sets": 5, "reps": 5},
				{"name": "Lunge", "sets": 3, "reps": 10},
			},
		})

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, 1, scope.transactions)
		require.NotNil(t, workout)
		assert.Equal(t, "org-a", workout.TenantID)
		assert.Equal(t, clientID, workout.ClientID)
		assert.Equal(t, domain.WorkoutStatusPlanned, workout.Status)

		require.Len(t, exercises, 2)
		for i, e := range exercises {
			assert.Equal(t, workout.ID, e.WorkoutID)
			assert.Equal(t, "org-a", e.TenantID)
			assert.Equal(t, i, e.Position)
		}

		var body struct {
			Workout   domain.Workout     `json:"workout"`
			Exercises []*domain.Exercise `json:"exercises"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, workout.ID, body.Workout.ID)
		assert.Len(t, body.Exercises, 2)
	})

	t.Run("unknown_client", func(t *testing.T) {
		t.Parallel()

		scope := &mockScope{
			tenantID: "org-a",
			clients: &mockClientRepo{
				getByIDFunc: func(context.Context, uuid.UUID) (*domain.Client, error) {
					return nil, fmt.Errorf("clientRepo.GetByID: %w", domain.ErrNotFound)
				},
			},
			workouts: &mockWorkoutRepo{
				createFunc: func(context.Context, *domain.Workout) error {
					t.Fatal("workout must not be created for an unknown client")
					return nil
				},
			},
		}

		_, api := humatest.New(t)
		v1.RegisterWorkoutRoutes(api)

		resp := api.PostCtx(scopedCtx(scope, middleware.RoleCoach), "/workouts", map[string]any{
			"client_id":    clientID.String(),
			"title":        "Leg day",
			"scheduled_at": time.Now().UTC().Format(time.RFC3339),
		})

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// GET /workouts/{id}
// ---------------------------------------------------------------------------

func TestGetWorkout(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	scope := &mockScope{
		tenantID: "org-a",
		workouts: &mockWorkoutRepo{
			getByIDFunc: func(_ context.Context, got uuid.UUID) (*domain.Workout, error) {
				return &domain.Workout{ID: got, TenantID: "org-a", Title: "Push"}, nil
			},
		},
		exercises: &mockExerciseRepo{
			listByWorkoutFunc: func(_ context.Context, workoutID uuid.UUID) ([]*domain.Exercise, error) {
				assert.Equal(t, id, workoutID)
				return []*domain.Exercise{{ID: uuid.New(), WorkoutID: workoutID, Name: "Bench"}}, nil
			},
		},
	}

	_, api := humatest.New(t)
	v1.RegisterWorkoutRoutes(api)

	resp := api.GetCtx(scopedCtx(scope, middleware.RoleViewer), "/workouts/"+id.String())

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "Bench")
}

// ---------------------------------------------------------------------------
// PATCH /workouts/{id}/status
// ---------------------------------------------------------------------------

func TestUpdateWorkoutStatus(t *testing.T) {
	t.Parallel()

	t.Run("valid_transition", func(t *testing.T) {
		t.Parallel()

		id := uuid.New()
		status := domain.WorkoutStatusPlanned
		scope := &mockScope{
			tenantID: "org-a",
			workouts: &mockWorkoutRepo{
				updateStatusFunc: func(_ context.Context, _ uuid.UUID, to domain.WorkoutStatus) error {
					status = to
					return nil
				},
				getByIDFunc: func(_ context.Context, got uuid.UUID) (*domain.Workout, error) {
					return &domain.Workout{ID: got, TenantID: "org-a", Status: status}, nil
				},
			},
		}

		_, api := humatest.New(t)
		v1.RegisterWorkoutRoutes(api)

		resp := api.PatchCtx(scopedCtx(scope, middleware.RoleCoach), "/workouts/"+id.String()+"/status", map[string]any{
			"status": "in_progress",
		})

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, domain.WorkoutStatusInProgress, status)
		assert.Equal(t, 1, scope.transactions)
	})

	t.Run("invalid_transition", func(t *testing.T) {
		t.Parallel()

		scope := &mockScope{
			tenantID: "org-a",
			workouts: &mockWorkoutRepo{
				updateStatusFunc: func(context.Context, uuid.UUID, domain.WorkoutStatus) error {
					return fmt.Errorf("workoutRepo.UpdateStatus: completed -> planned: %w", domain.ErrInvalidTransition)
				},
			},
		}

		_, api := humatest.New(t)
		v1.RegisterWorkoutRoutes(api)

		resp := api.PatchCtx(scopedCtx(scope, middleware.RoleCoach), "/workouts/"+uuid.New().String()+"/status", map[string]any{
			"status": "planned",
		})

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})

	t.Run("unknown_status_rejected_by_schema", func(t *testing.T) {
		t.Parallel()

		_, api := humatest.New(t)
		v1.RegisterWorkoutRoutes(api)

		resp := api.PatchCtx(scopedCtx(&mockScope{tenantID: "org-a"}, middleware.RoleCoach), "/workouts/"+uuid.New().String()+"/status", map[string]any{
			"status": "teleported",
		})

		assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	})
}

// ---------------------------------------------------------------------------
// GET /clients/{id}/workouts
// ---------------------------------------------------------------------------

func TestListClientWorkouts(t *testing.T) {
	t.Parallel()

	clientID := uuid.New()
	scope := &mockScope{
		tenantID: "org-a",
		workouts: &mockWorkoutRepo{
			listByClientFunc: func(_ context.Context, got uuid.UUID) ([]*domain.Workout, error) {
				assert.Equal(t, clientID, got)
				return []*domain.Workout{{ID: uuid.New(), ClientID: got}}, nil
			},
		},
	}

	_, api := humatest.New(t)
	v1.RegisterWorkoutRoutes(api)

	resp := api.GetCtx(scopedCtx(scope, middleware.RoleViewer), "/clients/"+clientID.String()+"/workouts")

	require.Equal(t, http.StatusOK, resp.Code)
}
