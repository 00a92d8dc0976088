package httpadapter

import (
	"context"
	"errors"
	"net/http"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
)

// mapErrorToHTTPStatus checks the outermost stage first: a vector store
// failure stays 502 even when it wraps a transient or open-circuit cause.
func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrRetrievalFailure):
		return http.StatusBadGateway
	case domain.IsKind(err, domain.ErrCollaboratorUnavailable):
		return http.StatusServiceUnavailable
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
