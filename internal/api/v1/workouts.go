package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/trainhub/internal/domain"
	"github.com/gosuda/trainhub/internal/tenancy"
)

type ExerciseSpec struct {
	Name string `json:"name" minLength:"1" maxLength:"255" doc:"Exercise name"`
	Sets int    `json:"sets" minimum:"1" maximum:"100" doc:"Number of sets"`
	Reps int    `json:"reps" minimum:"1" maximum:"1000" doc:"Repetitions per set"`
}

type CreateWorkoutInput struct {
	Body struct {
		ClientID    uuid.UUID      `json:"client_id" doc:"Client the workout is for"`
		Title       string         `json:"title" minLength:"1" maxLength:"255" doc:"Workout title"`
		ScheduledAt time.Time      `json:"scheduled_at" doc:"Planned start"`
		Exercises   []ExerciseSpec `json:"exercises,omitempty" maxItems:"100" doc:"Prescribed exercises in order"`
	}
}

// WorkoutDetail is a workout with its exercises.
type WorkoutDetail struct {
	Workout   *domain.Workout    `json:"workout"`
	Exercises []*domain.Exercise `json:"exercises"`
}

type CreateWorkoutOutput struct {
	Body *WorkoutDetail
}

type ListClientWorkoutsInput struct {
	ClientID uuid.UUID `path:"id" doc:"Client ID"`
}

type ListClientWorkoutsOutput struct {
	Body []*domain.Workout
}

type GetWorkoutInput struct {
	ID uuid.UUID `path:"id" doc:"Workout ID"`
}

type GetWorkoutOutput struct {
	Body *WorkoutDetail
}

type UpdateWorkoutStatusInput struct {
	ID   uuid.UUID `path:"id" doc:"Workout ID"`
	Body struct {
		Status string `json:"status" enum:"planned,in_progress,completed,skipped" doc:"Target status"`
	}
}

type UpdateWorkoutStatusOutput struct {
	Body *domain.Workout
}

type DeleteWorkoutInput struct {
	ID uuid.UUID `path:"id" doc:"Workout ID"`
}

func RegisterWorkoutRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "create-workout",
		Method:      http.MethodPost,
		Path:        "/workouts",
		Summary:     "Create a workout with its exercises",
		Tags:        []string{"Workouts"},
	}, func(ctx context.Context, input *CreateWorkoutInput) (*CreateWorkoutOutput, error) {
		scope, err := scopeFrom(ctx)
		if err != nil {
			return nil, err
		}

		now := time.Now()
		w := &domain.Workout{
			ID:          uuid.New(),
			TenantID:    scope.TenantID(),
			ClientID:    input.Body.ClientID,
			Title:       input.Body.Title,
			Status:      domain.WorkoutStatusPlanned,
			ScheduledAt: input.Body.ScheduledAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		detail := &WorkoutDetail{Workout: w, Exercises: make([]*domain.Exercise, 0, len(input.Body.Exercises))}

		err = scope.Transaction(ctx, func(tx tenancy.Accessors) error {
			if _, err := tx.Clients().GetByID(ctx, w.ClientID); err != nil {
				return err
			}
			if err := tx.Workouts().Create(ctx, w); err != nil {
				return err
			}
			for i, ex := range input.Body.Exercises {
				e := &domain.Exercise{
					ID:        uuid.New(),
					TenantID:  w.TenantID,
					WorkoutID: w.ID,
					Name:      ex.Name,
					Sets:      ex.Sets,
					Reps:      ex.Reps,
					Position:  i,
					CreatedAt: now,
				}
				if err := tx.Exercises().Create(ctx, e); err != nil {
					return err
				}
				detail.Exercises = append(detail.Exercises, e)
			}
			return nil
		})
		if err != nil {
			return nil, apiError(ctx, "create-workout", err)
		}

		return &CreateWorkoutOutput{Body: detail}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-client-workouts",
		Method:      http.MethodGet,
		Path:        "/clients/{id}/workouts",
		Summary:     "List a client's workouts",
		Tags:        []string{"Workouts"},
	}, func(ctx context.Context, input *ListClientWorkoutsInput) (*ListClientWorkoutsOutput, error) {
		scope, err := scopeFrom(ctx)
		if err != nil {
			return nil, err
		}

		workouts, err := scope.Workouts().ListByClient(ctx, input.ClientID)
		if err != nil {
			return nil, apiError(ctx, "list-client-workouts", err)
		}

		return &ListClientWorkoutsOutput{Body: workouts}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-workout",
		Method:      http.MethodGet,
		Path:        "/workouts/{id}",
		Summary:     "Get a workout and its exercises",
		Tags:        []string{"Workouts"},
	}, func(ctx context.Context, input *GetWorkoutInput) (*GetWorkoutOutput, error) {
		scope, err := scopeFrom(ctx)
		if err != nil {
			return nil, err
		}

		w, err := scope.Workouts().GetByID(ctx, input.ID)
		if err != nil {
			return nil, apiError(ctx, "get-workout", err)
		}
		exercises, err := scope.Exercises().ListByWorkout(ctx, w.ID)
		if err != nil {
			return nil, apiError(ctx, "get-workout", err)
		}

		return &GetWorkoutOutput{Body: &WorkoutDetail{Workout: w, Exercises: exercises}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-workout-status",
		Method:      http.MethodPatch,
		Path:        "/workouts/{id}/status",
		Summary:     "Move a workout to a new status",
		Tags:        []string{"Workouts"},
	}, func(ctx context.Context, input *UpdateWorkoutStatusInput) (*UpdateWorkoutStatusOutput, error) {
		scope, err := scopeFrom(ctx)
		if err != nil {
			return nil, err
		}

		var w *domain.Workout
		err = scope.Transaction(ctx, func(tx tenancy.Accessors) error {
			if err := tx.Workouts().UpdateStatus(ctx, input.ID, domain.WorkoutStatus(input.Body.Status)); err != nil {
				return err
			}
			var err error
			w, err = tx.Workouts().GetByID(ctx, input.ID)
			return err
		})
		if err != nil {
			return nil, apiError(ctx, "update-workout-status", err)
		}

		return &UpdateWorkoutStatusOutput{Body: w}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-workout",
		Method:        http.MethodDelete,
		Path:          "/workouts/{id}",
		Summary:       "Delete a workout",
		Tags:          []string{"Workouts"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DeleteWorkoutInput) (*struct{}, error) {
		scope, err := scopeFrom(ctx)
		if err != nil {
			return nil, err
		}

		if err := scope.Workouts().Delete(ctx, input.ID); err != nil {
			return nil, apiError(ctx, "delete-workout", err)
		}

		return nil, nil
	})
}
