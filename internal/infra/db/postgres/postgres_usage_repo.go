package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"

	"grid-agent-service/internal/domain"
	"grid-agent-service/internal/domain/model"
	"grid-agent-service/internal/domain/ports/repository"
)

var _ repository.UsageLogRepository = (*UsageRepo)(nil)

// UsageRepo persists per-call usage records in Postgres.
type UsageRepo struct {
	pool *pgxpool.Pool
}

func NewUsageRepo(pool *pgxpool.Pool) *UsageRepo {
	return &UsageRepo{pool: pool}
}

func (r *UsageRepo) Save(ctx context.Context, rec *model.APIUsage) error {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	const q = `
INSERT INTO api_usage (user_id, job_id, provider, model, tokens_used, estimated_cost, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`
	err := r.pool.QueryRow(ctx, q,
		rec.UserID, rec.JobID, rec.Provider, rec.Model,
		rec.TokensUsed, rec.EstimatedCost, createdAt,
	).Scan(&rec.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return fmt.Errorf("%w: %s (%s)", domain.ErrOperationFailed, pgErr.Message, pgErr.Code)
		}
		return err
	}
	return nil
}

func (r *UsageRepo) Totals(ctx context.Context, userID string) (model.UsageTotals, error) {
	const q = `
SELECT COUNT(*), COALESCE(SUM(tokens_used), 0), COALESCE(SUM(estimated_cost), 0)
FROM api_usage
WHERE user_id = $1`
	var t model.UsageTotals
	err := r.pool.QueryRow(ctx, q, userID).Scan(&t.TotalCalls, &t.TotalTokens, &t.TotalCost)
	if err != nil {
		return model.UsageTotals{}, err
	}
	return t, nil
}

func (r *UsageRepo) ByProvider(ctx context.Context, userID string) ([]model.ProviderUsage, error) {
	const q = `
SELECT provider, COUNT(*), COALESCE(SUM(tokens_used), 0), COALESCE(SUM(estimated_cost), 0)
FROM api_usage
WHERE user_id = $1
GROUP BY provider
ORDER BY provider`
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ProviderUsage
	for rows.Next() {
		var p model.ProviderUsage
		if err := rows.Scan(&p.Provider, &p.Calls, &p.Tokens, &p.Cost); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
