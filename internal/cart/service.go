package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"github.com/medmarket/medmarket-backend/pkg/enums"
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/medmarket/medmarket-backend/pkg/pricing"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

// Service exposes cart reads and mutations. Every result is priced against
// the current catalog.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*View, error)
	AddItem(ctx context.Context, actor Actor, productID uuid.UUID, quantity int) (*View, error)
	UpdateItem(ctx context.Context, actor Actor, productID uuid.UUID, quantity int) (*View, error)
	RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*View, error)
	Clear(ctx context.Context, userID uuid.UUID) (*View, error)
	Snapshot(ctx context.Context, userID uuid.UUID) (*Snapshot, error)
}

// Actor identifies the shopper mutating the cart.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

type service struct {
	repo     *Repository
	tx       txRunner
	products productLoader
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo *Repository, tx txRunner, products productLoader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	return &service{repo: repo, tx: tx, products: products}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*View, error) {
	snap, err := s.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	return snap.View(), nil
}

func (s *service) AddItem(ctx context.Context, actor Actor, productID uuid.UUID, quantity int) (*View, error) {
	return s.apply(ctx, actor, AddItem(productID, quantity))
}

func (s *service) UpdateItem(ctx context.Context, actor Actor, productID uuid.UUID, quantity int) (*View, error) {
	return s.apply(ctx, actor, SetQuantity(productID, quantity))
}

func (s *service) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*View, error) {
	return s.apply(ctx, Actor{UserID: userID}, RemoveItem(productID))
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) (*View, error) {
	return s.apply(ctx, Actor{UserID: userID}, Clear())
}

// apply loads the persisted state, reduces the action, checks the touched
// product against the catalog and writes the new lines in one transaction.
func (s *service) apply(ctx context.Context, actor Actor, action Action) (*View, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := loadState(ctx, repo, actor.UserID)
		if err != nil {
			return err
		}
		next, err := Reduce(current, action)
		if err != nil {
			return err
		}
		if action.Kind == ActionAddItem || action.Kind == ActionSetQuantity {
			line, _ := next.Find(action.ProductID)
			if err := s.checkPurchasable(ctx, actor, line); err != nil {
				return err
			}
		}

		rows := make([]models.CartLine, 0, len(next.Lines))
		for _, l := range next.Lines {
			rows = append(rows, models.CartLine{ProductID: l.ProductID, Quantity: l.Quantity})
		}
		if _, err := repo.ReplaceLines(ctx, actor.UserID, rows); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, actor.UserID)
}

func (s *service) checkPurchasable(ctx context.Context, actor Actor, line Line) error {
	found, err := s.products.FindByIDs(ctx, []uuid.UUID{line.ProductID})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	product, ok := found[line.ProductID]
	if !ok || !product.IsActive {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if product.RequiresApproval && actor.Role != enums.UserRoleDoctor && actor.Role != enums.UserRoleAdmin {
		return pkgerrors.New(pkgerrors.CodeForbidden, "product is restricted to verified doctors")
	}
	if line.Quantity > product.StockQuantity {
		return pkgerrors.Newf(pkgerrors.CodeConflict, "only %d units in stock", product.StockQuantity).
			WithDetails(map[string]any{"product_id": product.ID, "available": product.StockQuantity})
	}
	return nil
}

func (s *service) Snapshot(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	snap := &Snapshot{lineIDs: map[uuid.UUID]uuid.UUID{}}

	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if cart == nil {
		snap.Quote, _ = pricing.QuoteCart(nil)
		return snap, nil
	}
	snap.UpdatedAt = &cart.UpdatedAt

	ids := make([]uuid.UUID, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		ids = append(ids, l.ProductID)
		snap.lineIDs[l.ProductID] = l.ID
		snap.order = append(snap.order, Line{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart products")
	}

	var priceable []pricing.Line
	var kept []models.Product
	for _, l := range cart.Lines {
		product, ok := products[l.ProductID]
		if !ok || !product.IsActive {
			snap.Unavailable = append(snap.Unavailable, l.ProductID)
			continue
		}
		priceable = append(priceable, pricing.Line{
			ProductID: product.ID,
			Quantity:  l.Quantity,
			BasePrice: product.Price,
			Tiers:     product.PricingTiers(),
		})
		kept = append(kept, product)
	}

	quote, err := pricing.QuoteCart(priceable)
	if err != nil {
		return nil, err
	}
	snap.Quote = quote
	for i, lq := range quote.Lines {
		snap.Lines = append(snap.Lines, PricedLine{
			LineID:  snap.lineIDs[lq.ProductID],
			Product: kept[i],
			Quote:   lq,
		})
	}
	return snap, nil
}

func loadState(ctx context.Context, repo *Repository, userID uuid.UUID) (State, error) {
	cart, err := repo.FindByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return State{}, nil
	}
	if err != nil {
		return State{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	state := State{Lines: make([]Line, 0, len(cart.Lines))}
	for _, l := range cart.Lines {
		state.Lines = append(state.Lines, Line{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return state, nil
}
