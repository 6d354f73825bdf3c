package cart

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	product "github.com/medmarket/medmarket-backend/internal/products"
	"github.com/medmarket/medmarket-backend/pkg/db"
	"github.com/medmarket/medmarket-backend/pkg/db/dbtest"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"github.com/medmarket/medmarket-backend/pkg/enums"
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/medmarket/medmarket-backend/pkg/pricing"
)

type cartFixture struct {
	conn *gorm.DB
	repo *Repository
	svc  Service
}

func newCartFixture(t *testing.T) cartFixture {
	t.Helper()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo, db.NewFromGorm(conn), product.NewRepository(conn))
	require.NoError(t, err)
	return cartFixture{conn: conn, repo: repo, svc: svc}
}

func (f cartFixture) product(t *testing.T, name string, price string, stock int, mutate func(*models.Product)) models.Product {
	t.Helper()
	p := models.Product{
		Name:          name,
		Slug:          uuid.NewString(),
		SKU:           name,
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      true,
	}
	if mutate != nil {
		mutate(&p)
	}
	require.NoError(t, f.conn.Omit("Category", "DiscountTiers").Create(&p).Error)
	return p
}

func (f cartFixture) tiers(t *testing.T, productID uuid.UUID) {
	t.Helper()
	tiers := []models.ProductDiscountTier{
		{ProductID: productID, MinQuantity: 10, MaxQuantity: pricing.UpTo(49), DiscountPercentage: decimal.NewFromInt(10), DiscountedPrice: decimal.RequireFromString("193.50")},
		{ProductID: productID, MinQuantity: 50, MaxQuantity: pricing.Unbounded(), DiscountPercentage: decimal.NewFromInt(20), DiscountedPrice: decimal.RequireFromString("172.00")},
	}
	require.NoError(t, f.conn.Create(&tiers).Error)
}

func customer() Actor {
	return Actor{UserID: uuid.New(), Role: enums.UserRoleCustomer}
}

func TestCartAddItemPricesWithTiers(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	gloves := f.product(t, "Gloves", "215.00", 500, nil)
	f.tiers(t, gloves.ID)
	actor := customer()

	view, err := f.svc.AddItem(ctx, actor, gloves.ID, 5)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("1075.00")))
	assert.False(t, view.Lines[0].DiscountActive)
	require.NotNil(t, view.Lines[0].NextTier)
	assert.Equal(t, 5, view.Lines[0].NextTier.UnitsNeeded)

	view, err = f.svc.AddItem(ctx, actor, gloves.ID, 20)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	line := view.Lines[0]
	assert.Equal(t, 25, line.Quantity)
	assert.True(t, line.UnitPrice.Equal(decimal.RequireFromString("193.50")))
	assert.True(t, line.LineTotal.Equal(decimal.RequireFromString("4837.50")))
	assert.True(t, view.Savings.Equal(decimal.RequireFromString("537.50")))
	assert.NotEqual(t, uuid.Nil, line.ID)

	view, err = f.svc.UpdateItem(ctx, actor, gloves.ID, 60)
	require.NoError(t, err)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("10320.00")))
}

func TestCartEmptyTotalsZero(t *testing.T) {
	f := newCartFixture(t)
	view, err := f.svc.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.Equal(t, "0.00", view.Total.StringFixed(2))
	assert.Nil(t, view.UpdatedAt)
}

func TestCartRejectsInvalidQuantityAndMissingProducts(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	actor := customer()
	gloves := f.product(t, "Gloves", "10", 5, nil)
	hidden := f.product(t, "Hidden", "10", 5, func(p *models.Product) { p.IsActive = false })

	_, err := f.svc.AddItem(ctx, actor, gloves.ID, 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidArgument))

	_, err = f.svc.AddItem(ctx, actor, uuid.New(), 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.AddItem(ctx, actor, hidden.ID, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.svc.AddItem(ctx, actor, gloves.ID, 6)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))

	view, err := f.svc.Get(ctx, actor.UserID)
	require.NoError(t, err)
	assert.Empty(t, view.Lines, "failed mutations must not persist")
}

func TestCartRestrictedProductsNeedDoctor(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	rx := f.product(t, "Rx", "10", 5, func(p *models.Product) { p.RequiresApproval = true })

	_, err := f.svc.AddItem(ctx, customer(), rx.ID, 1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = f.svc.AddItem(ctx, Actor{UserID: uuid.New(), Role: enums.UserRoleDoctor}, rx.ID, 1)
	require.NoError(t, err)
}

func TestCartRemoveClearAndUnavailableLines(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	actor := customer()
	a := f.product(t, "A", "2.50", 10, nil)
	b := f.product(t, "B", "4.00", 10, nil)

	_, err := f.svc.AddItem(ctx, actor, a.ID, 2)
	require.NoError(t, err)
	view, err := f.svc.AddItem(ctx, actor, b.ID, 1)
	require.NoError(t, err)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("9")))
	assert.Equal(t, 3, view.ItemCount)

	require.NoError(t, f.conn.Model(&models.Product{}).Where("id = ?", b.ID).Update("is_active", false).Error)
	snap, err := f.svc.Snapshot(ctx, actor.UserID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{b.ID}, snap.Unavailable)
	view = snap.View()
	require.Len(t, view.Lines, 2)
	assert.False(t, view.Lines[1].Available)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("5")))

	view, err = f.svc.RemoveItem(ctx, actor.UserID, a.ID)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)

	count, err := f.repo.CountLines(ctx, actor.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	view, err = f.svc.Clear(ctx, actor.UserID)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
}

func TestRepositoryDeleteStale(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	actor := customer()
	a := f.product(t, "A", "1", 10, nil)
	_, err := f.svc.AddItem(ctx, actor, a.ID, 1)
	require.NoError(t, err)

	removed, err := f.repo.DeleteStale(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, removed)

	removed, err = f.repo.DeleteStale(ctx, time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	count, err := f.repo.CountLines(ctx, actor.UserID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(nil, nil, nil)
	require.Error(t, err)
}
