package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/medmarket/medmarket-backend/pkg/logger"
)

type staleCartPurger interface {
	DeleteStale(ctx context.Context, before time.Time) (int64, error)
}

// CartRetentionJobParams configure the stale cart purge.
type CartRetentionJobParams struct {
	Logger    *logger.Logger
	Carts     staleCartPurger
	Retention time.Duration
}

// NewCartRetentionJob deletes carts untouched for longer than Retention.
func NewCartRetentionJob(params CartRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Retention <= 0 {
		return nil, fmt.Errorf("cart retention must be positive")
	}
	return &cartRetentionJob{
		logg:      params.Logger,
		carts:     params.Carts,
		retention: params.Retention,
		now:       time.Now,
	}, nil
}

type cartRetentionJob struct {
	logg      *logger.Logger
	carts     staleCartPurger
	retention time.Duration
	now       func() time.Time
}

func (j *cartRetentionJob) Name() string { return "cart-retention" }

func (j *cartRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.carts.DeleteStale(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("delete stale carts: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{"deleted": deleted, "cutoff": cutoff}), "cron.cart_retention.complete")
	return nil
}
