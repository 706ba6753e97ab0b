package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound     = errors.New("domain: not found")
	ErrConflict     = errors.New("domain: conflict")
	ErrUnauthorized = errors.New("domain: unauthorized")
	ErrForbidden    = errors.New("domain: forbidden")
)

// Tenant isolation errors. All of them are surfaced to callers; none are
// retried by the isolation layer itself.
var (
	ErrTenantNotFound           = errors.New("tenancy: tenant not found")
	ErrTenantContextMismatch    = errors.New("tenancy: tenant context mismatch")
	ErrUnsafeQueryRejected      = errors.New("tenancy: unsafe query rejected")
	ErrCrossTenantNotAllowed    = errors.New("tenancy: cross-tenant access not allowed")
	ErrConnectionCreationFailed = errors.New("tenancy: connection creation failed")
	ErrFacadeClosed             = errors.New("tenancy: facade closed")
)

// IsAccessDenied reports whether err is an isolation failure that the HTTP
// boundary must render as a generic "access denied".
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrTenantContextMismatch) ||
		errors.Is(err, ErrCrossTenantNotAllowed) ||
		errors.Is(err, ErrFacadeClosed)
}

// IsInvalidRequest reports whether err should be rendered as a generic
// "invalid request".
func IsInvalidRequest(err error) bool {
	return errors.Is(err, ErrTenantNotFound) || errors.Is(err, ErrUnsafeQueryRejected)
}
