package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"grid-agent-service/internal/domain/model"
	"grid-agent-service/internal/domain/ports/repository"
)

// Compile-time check
var _ UsageUseCase = (*usageUC)(nil)

type UsageUseCase interface {
	Summary(ctx context.Context, userID string) (model.UsageTotals, []model.ProviderUsage, error)
}

type usageUC struct {
	usage repository.UsageLogRepository
	log   *zerolog.Logger
}

func NewUsageUseCase(usage repository.UsageLogRepository, logger *zerolog.Logger) *usageUC {
	return &usageUC{usage: usage, log: logger}
}

func (u *usageUC) Summary(ctx context.Context, userID string) (model.UsageTotals, []model.ProviderUsage, error) {
	totals, err := u.usage.Totals(ctx, userID)
	if err != nil {
		return model.UsageTotals{}, nil, err
	}
	byProvider, err := u.usage.ByProvider(ctx, userID)
	if err != nil {
		return model.UsageTotals{}, nil, err
	}
	return totals, byProvider, nil
}
