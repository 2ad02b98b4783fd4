package memory

import (
	"context"
	"sync"
	"time"

	"grid-agent-service/internal/domain/model"
	"grid-agent-service/internal/domain/ports/repository"
)

var _ repository.UsageLogRepository = (*UsageRepo)(nil)

// UsageRepo is an in-memory usage log used when no database is
// configured, and in tests. Records are lost on restart.
type UsageRepo struct {
	mu   sync.Mutex
	seq  int64
	recs []model.APIUsage
}

func NewUsageRepo() *UsageRepo {
	return &UsageRepo{}
}

func (r *UsageRepo) Save(ctx context.Context, rec *model.APIUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	rec.ID = r.seq
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	r.recs = append(r.recs, *rec)
	return nil
}

func (r *UsageRepo) Totals(ctx context.Context, userID string) (model.UsageTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var t model.UsageTotals
	for i := range r.recs {
		if r.recs[i].UserID != userID {
			continue
		}
		t.TotalCalls++
		t.TotalTokens += int64(r.recs[i].TokensUsed)
		t.TotalCost += r.recs[i].EstimatedCost
	}
	return t, nil
}

func (r *UsageRepo) ByProvider(ctx context.Context, userID string) ([]model.ProviderUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	agg := make(map[string]*model.ProviderUsage)
	var order []string
	for i := range r.recs {
		rec := &r.recs[i]
		if rec.UserID != userID {
			continue
		}
		p, ok := agg[rec.Provider]
		if !ok {
			p = &model.ProviderUsage{Provider: rec.Provider}
			agg[rec.Provider] = p
			order = append(order, rec.Provider)
		}
		p.Calls++
		p.Tokens += int64(rec.TokensUsed)
		p.Cost += rec.EstimatedCost
	}
	out := make([]model.ProviderUsage, 0, len(order))
	for _, name := range order {
		out = append(out, *agg[name])
	}
	return out, nil
}
