package cache

import (
	"context"
	"time"

	"github.com/mirjar261-hash/ProyectoFull-sub003/internal/domain"
)

type SummaryCache interface {
	Get(ctx context.Context, key string) (*domain.CashCutSummary, bool, error)
	Set(ctx context.Context, key string, value *domain.CashCutSummary, ttl time.Duration) error
}

type NoopSummaryCache struct{}

func (NoopSummaryCache) Get(_ context.Context, _ string) (*domain.CashCutSummary, bool, error) {
	return nil, false, nil
}

func (NoopSummaryCache) Set(_ context.Context, _ string, _ *domain.CashCutSummary, _ time.Duration) error {
	return nil
}
