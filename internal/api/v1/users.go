package v1

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/trainhub/internal/auth"
	"github.com/gosuda/trainhub/internal/domain"
	"github.com/gosuda/trainhub/internal/server/middleware"
)

// UserView is a User without its password hash.
type UserView struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func userView(u *domain.User) *UserView {
	return &UserView{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, CreatedAt: u.CreatedAt}
}

type GetMeInput struct{}

type GetMeOutput struct {
	Body *UserView
}

type ListUsersInput struct{}

type ListUsersOutput struct {
	Body []*UserView
}

type CreateUserInput struct {
	Body struct {
		Email    string `json:"email" minLength:"3" maxLength:"255" doc:"User email"`
		Password string `json:"password" minLength:"8" maxLength:"128" doc:"Initial password"` //nolint:gosec // G117: credential DTO
		Name     string `json:"name" minLength:"1" maxLength:"255" doc:"Display name"`
		Role     string `json:"role" enum:"admin,coach,viewer" doc:"Role within the tenant"`
	}
}

type CreateUserOutput struct {
	Body *UserView
}

func RegisterUserRoutes(api huma.API, registrar UserRegistrar) {
	huma.Register(api, huma.Operation{
		OperationID: "get-me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Get the authenticated user",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, _ *GetMeInput) (*GetMeOutput, error) {
		userID, ok := middleware.UserIDFromContext(ctx)
		if !ok {
			return nil, huma.Error401Unauthorized("authentication required")
		}
		scope, err := scopeFrom(ctx)
		if err != nil {
			return nil, err
		}

		u, err := scope.Users().GetByID(ctx, userID)
		if err != nil {
			return nil, apiError(ctx, "get-me", err)
		}

		return &GetMeOutput{Body: userView(u)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users of the tenant",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, _ *ListUsersInput) (*ListUsersOutput, error) {
		if role, _ := middleware.RoleFromContext(ctx); role != middleware.RoleAdmin {
			return nil, huma.Error403Forbidden("admin role required")
		}
		scope, err := scopeFrom(ctx)
		if err != nil {
			return nil, err
		}

		users, err := scope.Users().List(ctx)
		if err != nil {
			return nil, apiError(ctx, "list-users", err)
		}

		out := make([]*UserView, 0, len(users))
		for _, u := range users {
			out = append(out, userView(u))
		}
		return &ListUsersOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-user",
		Method:      http.MethodPost,
		Path:        "/users",
		Summary:     "Create a user in the tenant",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, input *CreateUserInput) (*CreateUserOutput, error) {
		if role, _ := middleware.RoleFromContext(ctx); role != middleware.RoleAdmin {
			return nil, huma.Error403Forbidden("admin role required")
		}
		tenantID, ok := middleware.TenantIDFromContext(ctx)
		if !ok {
			return nil, huma.Error403Forbidden("access denied")
		}

		u, err := registrar.Register(ctx, tenantID, input.Body.Email, input.Body.Password, input.Body.Name, input.Body.Role)
		if err != nil {
			if errors.Is(err, auth.ErrUserAlreadyExists) {
				return nil, huma.Error409Conflict("user already exists")
			}
			return nil, apiError(ctx, "create-user", err)
		}

		return &CreateUserOutput{Body: userView(u)}, nil
	})
}
