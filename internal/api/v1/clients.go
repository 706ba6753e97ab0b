package v1

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/gosuda/trainhub/internal/domain"
	"github.com/gosuda/trainhub/internal/tenancy"
)

type CreateClientInput struct {
	Body struct {
		Name    string     `json:"name" minLength:"1" maxLength:"255" doc:"Client name"`
		Email   string     `json:"email,omitempty" maxLength:"255" doc:"Client email"`
		Notes   string     `json:"notes,omitempty" doc:"Coach notes"`
		CoachID *uuid.UUID `json:"coach_id,omitempty" doc:"Assigned coach user ID"`
	}
}

type CreateClientOutput struct {
	Body *domain.Client
}

type ListClientsInput struct {
	Limit  int `query:"limit" minimum:"1" maximum:"200" default:"50" doc:"Max results"`
	Offset int `query:"offset" minimum:"0" default:"0" doc:"Offset for pagination"`
}

type ListClientsOutput struct {
	Body []*domain.Client
}

type GetClientInput struct {
	ID uuid.UUID `path:"id" doc:"Client ID"`
}

type GetClientOutput struct {
	Body *domain.Client
}

type UpdateClientInput struct {
	ID   uuid.UUID `path:"id" doc:"Client ID"`
	Body struct {
		Name    string     `json:"name,omitempty" maxLength:"255" doc:"Client name"`
		Email   string     `json:"email,omitempty" maxLength:"255" doc:"Client email"`
		Notes   string     `json:"notes,omitempty" doc:"Coach notes"`
		CoachID *uuid.UUID `json:"coach_id,omitempty" doc:"Assigned coach user ID"`
	}
}

type UpdateClientOutput struct {
	Body *domain.Client
}

type DeleteClientInput struct {
	ID uuid.UUID `path:"id" doc:"Client ID"`
}

// RegisterClientRoutes mounts client CRUD. Every handler goes through the
// request's tenant scope; none of them take a tenant identifier.
func RegisterClientRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "create-client",
		Method:      http.MethodPost,
		Path:        "/clients",
		Summary:     "Create a client",
		Tags:        []string{"Clients"},
	}, func(ctx context.Context, input *CreateClientInput) (*CreateClientOutput, error) {
		scope, err := scopeFrom(ctx)
		if err != nil {
			return nil, err
		}

		c, err := domain.NewClient(scope.TenantID(), input.Body.Name, input.Body.Email, input.Body.CoachID)
		if err != nil {
			return nil, huma.Error400BadRequest(err.Error())
		}
		c.Notes = input.Body.Notes

		err = scope.Transaction(ctx, func(tx tenancy.Accessors) error {
			if err := checkCoach(ctx, tx, c.CoachID); err != nil {
				return err
			}
			return tx.Clients().Create(ctx, c)
		})
		if err != nil {
			return nil, apiError(ctx, "create-client", err)
		}

		return &CreateClientOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-clients",
		Method:      http.MethodGet,
		Path:        "/clients",
		Summary:     "List clients",
		Tags:        []string{"Clients"},
	}, func(ctx context.Context, input *ListClientsInput) (*ListClientsOutput, error) {
		scope, err := scopeFrom(ctx)
		if err != nil {
			return nil, err
		}

		clients, err := scope.Clients().List(ctx, input.Limit, input.Offset)
		if err != nil {
			return nil, apiError(ctx, "list-clients", err)
		}

		return &ListClientsOutput{Body: clients}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-client",
		Method:      http.MethodGet,
		Path:        "/clients/{id}",
		Summary:     "Get a client by ID",
		Tags:        []string{"Clients"},
	}, func(ctx context.Context, input *GetClientInput) (*GetClientOutput, error) {
		scope, err := scopeFrom(ctx)
		if err != nil {
			return nil, err
		}

		c, err := scope.Clients().GetByID(ctx, input.ID)
		if err != nil {
			return nil, apiError(ctx, "get-client", err)
		}

		return &GetClientOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-client",
		Method:      http.MethodPut,
		Path:        "/clients/{id}",
		Summary:     "Update a client",
		Tags:        []string{"Clients"},
	}, func(ctx context.Context, input *UpdateClientInput) (*UpdateClientOutput, error) {
		scope, err := scopeFrom(ctx)
		if err != nil {
			return nil, err
		}

		var c *domain.Client
		err = scope.Transaction(ctx, func(tx tenancy.Accessors) error {
			var err error
			c, err = tx.Clients().GetByID(ctx, input.ID)
			if err != nil {
				return err
			}

			if input.Body.Name != "" {
				c.Name = input.Body.Name
			}
			if input.Body.Email != "" {
				c.Email = input.Body.Email
			}
			if input.Body.Notes != "" {
				c.Notes = input.Body.Notes
			}
			if input.Body.CoachID != nil {
				if err := checkCoach(ctx, tx, input.Body.CoachID); err != nil {
					return err
				}
				c.CoachID = input.Body.CoachID
			}

			return tx.Clients().Update(ctx, c)
		})
		if err != nil {
			return nil, apiError(ctx, "update-client", err)
		}

		return &UpdateClientOutput{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-client",
		Method:        http.MethodDelete,
		Path:          "/clients/{id}",
		Summary:       "Delete a client",
		Tags:          []string{"Clients"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DeleteClientInput) (*struct{}, error) {
		scope, err := scopeFrom(ctx)
		if err != nil {
			return nil, err
		}

		if err := scope.Clients().Delete(ctx, input.ID); err != nil {
			return nil, apiError(ctx, "delete-client", err)
		}

		return nil, nil
	})
}

// checkCoach resolves the coach through the tenant's own user accessor.
// Foreign keys are checked without row-level security, so a user id from
// another tenant must be rejected here rather than by the insert.
func checkCoach(ctx context.Context, tx tenancy.Accessors, coachID *uuid.UUID) error {
	if coachID == nil {
		return nil
	}
	_, err := tx.Users().GetByID(ctx, *coachID)
	return err
}
