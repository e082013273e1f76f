package httpadapter

import (
	"net/http"

	"github.com/tenderops/bidding-qa/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrSchemaValidation),
		domain.IsKind(err, domain.ErrBusinessRule):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrSQLTimeout):
		return http.StatusGatewayTimeout
	case domain.IsKind(err, domain.ErrLLMUnavailable),
		domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
