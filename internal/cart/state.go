package cart

import (
	"slices"

	"github.com/google/uuid"
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/medmarket/medmarket-backend/pkg/pricing"
)

// MaxLineQuantity caps the quantity of a single cart line.
const MaxLineQuantity = 100000

// Line is one product in the cart state. Prices are never held here.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// State is the ordered set of cart lines, at most one per product.
type State struct {
	Lines []Line
}

// ActionKind names a cart mutation.
type ActionKind string

const (
	ActionAddItem     ActionKind = "add_item"
	ActionSetQuantity ActionKind = "set_quantity"
	ActionRemoveItem  ActionKind = "remove_item"
	ActionClear       ActionKind = "clear"
)

// Action is a single cart mutation fed to Reduce.
type Action struct {
	Kind      ActionKind
	ProductID uuid.UUID
	Quantity  int
}

func AddItem(productID uuid.UUID, quantity int) Action {
	return Action{Kind: ActionAddItem, ProductID: productID, Quantity: quantity}
}

func SetQuantity(productID uuid.UUID, quantity int) Action {
	return Action{Kind: ActionSetQuantity, ProductID: productID, Quantity: quantity}
}

func RemoveItem(productID uuid.UUID) Action {
	return Action{Kind: ActionRemoveItem, ProductID: productID}
}

func Clear() Action {
	return Action{Kind: ActionClear}
}

// Find returns the line for productID.
func (s State) Find(productID uuid.UUID) (Line, bool) {
	idx := s.index(productID)
	if idx < 0 {
		return Line{}, false
	}
	return s.Lines[idx], true
}

func (s State) index(productID uuid.UUID) int {
	return slices.IndexFunc(s.Lines, func(l Line) bool { return l.ProductID == productID })
}

// Reduce applies action to state and returns the next state. The input state
// is never modified. Adding a product already in the cart increments its
// quantity; removing a missing product is a no-op.
func Reduce(state State, action Action) (State, error) {
	next := State{Lines: slices.Clone(state.Lines)}

	switch action.Kind {
	case ActionAddItem:
		if err := checkAction(action); err != nil {
			return state, err
		}
		if idx := next.index(action.ProductID); idx >= 0 {
			if next.Lines[idx].Quantity > MaxLineQuantity-action.Quantity {
				return state, errLineTooLarge
			}
			next.Lines[idx].Quantity += action.Quantity
			return next, nil
		}
		next.Lines = append(next.Lines, Line{ProductID: action.ProductID, Quantity: action.Quantity})
		return next, nil

	case ActionSetQuantity:
		if err := checkAction(action); err != nil {
			return state, err
		}
		idx := next.index(action.ProductID)
		if idx < 0 {
			return state, pkgerrors.New(pkgerrors.CodeNotFound, "product is not in the cart")
		}
		next.Lines[idx].Quantity = action.Quantity
		return next, nil

	case ActionRemoveItem:
		if idx := next.index(action.ProductID); idx >= 0 {
			next.Lines = slices.Delete(next.Lines, idx, idx+1)
		}
		return next, nil

	case ActionClear:
		return State{}, nil
	}
	return state, pkgerrors.Newf(pkgerrors.CodeInvalidArgument, "unknown cart action %q", action.Kind)
}

var errLineTooLarge = pkgerrors.Newf(pkgerrors.CodeInvalidArgument, "quantity exceeds %d units per line", MaxLineQuantity)

func checkAction(action Action) error {
	if action.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeInvalidArgument, "product_id is required")
	}
	if action.Quantity < 1 {
		return pricing.ErrInvalidQuantity
	}
	if action.Quantity > MaxLineQuantity {
		return errLineTooLarge
	}
	return nil
}
