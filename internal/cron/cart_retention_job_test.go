package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medmarket/medmarket-backend/internal/cart"
	"github.com/medmarket/medmarket-backend/pkg/db/dbtest"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"github.com/medmarket/medmarket-backend/pkg/logger"
)

func TestCartRetentionJobPurgesOnlyStaleCarts(t *testing.T) {
	conn := dbtest.Open(t)
	repo := cart.NewRepository(conn)
	ctx := context.Background()

	staleUser, freshUser := uuid.New(), uuid.New()
	for _, user := range []uuid.UUID{staleUser, freshUser} {
		_, err := repo.ReplaceLines(ctx, user, []models.CartLine{{ProductID: uuid.New(), Quantity: 2}})
		require.NoError(t, err)
	}
	old := time.Now().UTC().Add(-60 * 24 * time.Hour)
	require.NoError(t, conn.Model(&models.Cart{}).Where("user_id = ?", staleUser).UpdateColumn("updated_at", old).Error)

	job, err := NewCartRetentionJob(CartRetentionJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test"}),
		Carts:     repo,
		Retention: 30 * 24 * time.Hour,
	})
	require.NoError(t, err)
	require.NoError(t, job.Run(ctx))

	staleCount, err := repo.CountLines(ctx, staleUser)
	require.NoError(t, err)
	freshCount, err := repo.CountLines(ctx, freshUser)
	require.NoError(t, err)
	assert.Zero(t, staleCount)
	assert.Equal(t, 1, freshCount)
}
