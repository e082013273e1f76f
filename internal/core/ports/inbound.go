package ports

import (
	"context"

	"github.com/tenderops/bidding-qa/internal/core/domain"
)

// QueryService is the inbound contract for one full question/answer
// cycle.
type QueryService interface {
	Ask(ctx context.Context, query domain.Query) (*domain.Answer, error)
}
