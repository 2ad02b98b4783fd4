package repository

import (
	"context"

	"grid-agent-service/internal/domain/model"
)

// UsageLogRepository records per-call provider usage and serves the
// aggregation behind GET /api/usage/{userId}. Implementations must be
// safe for concurrent use by independent job goroutines.
type UsageLogRepository interface {
	Save(ctx context.Context, rec *model.APIUsage) error
	Totals(ctx context.Context, userID string) (model.UsageTotals, error)
	ByProvider(ctx context.Context, userID string) ([]model.ProviderUsage, error)
}
