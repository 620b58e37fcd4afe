package httpErrors

import (
	"net/http"

	dErrors "bedrock/pkg/domain-errors"
)

// StatusPageExpired mirrors the 419 status some frameworks use for transport
// integrity failures (expired CSRF-style tokens). It is not registered in
// net/http so it is defined here.
const StatusPageExpired = 419

// ToHTTPStatus maps a domain error code to the HTTP status the API surfaces.
func ToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound, dErrors.CodeTenantNotFound:
		return http.StatusNotFound
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodePermissionDenied,
		dErrors.CodeEscalationForbidden, dErrors.CodeSelfDeletionForbidden:
		return http.StatusForbidden
	case dErrors.CodeValidation, dErrors.CodeTenantInactive, dErrors.CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput, dErrors.CodeContextAlreadyActive:
		return http.StatusBadRequest
	case dErrors.CodeConflict:
		return http.StatusConflict
	case dErrors.CodePageExpired:
		return StatusPageExpired
	case dErrors.CodeConnectionTimeout, dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromError resolves any error to the (status, code) pair the HTTP layer writes.
func FromError(err error) (int, string) {
	code := dErrors.CodeOf(err)
	return ToHTTPStatus(code), string(code)
}
