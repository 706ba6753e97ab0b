package server

import (
	"github.com/danielgtaylor/huma/v2"

	v1 "github.com/gosuda/trainhub/internal/api/v1"
)

func registerAuthRoutes(api huma.API, deps Deps) {
	v1.RegisterAuthRoutes(api, deps.Platform, deps.Auth)
}

func registerTenantRoutes(api huma.API, deps Deps) {
	v1.RegisterUserRoutes(api, deps.Auth)
	v1.RegisterClientRoutes(api)
	v1.RegisterWorkoutRoutes(api)
}

func registerPlatformRoutes(api huma.API, deps Deps) {
	v1.RegisterPlatformRoutes(api, deps.Platform, deps.Manager)
}
