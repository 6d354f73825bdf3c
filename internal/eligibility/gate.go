// Package eligibility decides whether an account may proceed to payment.
// Any failure to determine eligibility blocks checkout.
package eligibility

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/medmarket/medmarket-backend/pkg/enums"
)

type Reason string

const (
	ReasonNone             Reason = "NONE"
	ReasonNotAuthenticated Reason = "NOT_AUTHENTICATED"
	ReasonApprovalPending  Reason = "APPROVAL_PENDING"
	ReasonApprovalRejected Reason = "APPROVAL_REJECTED"
	ReasonAccountInactive  Reason = "ACCOUNT_INACTIVE"
	ReasonCartEmpty        Reason = "CART_EMPTY"
	ReasonUndetermined     Reason = "UNDETERMINED"
)

var reasonMessages = map[Reason]string{
	ReasonNone:             "",
	ReasonNotAuthenticated: "sign in to complete your purchase",
	ReasonApprovalPending:  "your account is awaiting approval; checkout is available once it is approved",
	ReasonApprovalRejected: "your registration was not approved; contact support to proceed",
	ReasonAccountInactive:  "this account has been deactivated",
	ReasonCartEmpty:        "your cart is empty",
	ReasonUndetermined:     "we could not confirm your eligibility right now; please try again",
}

// Message is the blocking text shown for reason.
func (r Reason) Message() string {
	return reasonMessages[r]
}

// blocking reports whether r is a known reason to refuse checkout.
func (r Reason) blocking() bool {
	_, ok := reasonMessages[r]
	return ok && r != ReasonNone
}

// Decision is the resolved outcome of one eligibility check.
type Decision struct {
	Eligible bool   `json:"eligible"`
	Reason   Reason `json:"reason"`
	Message  string `json:"message,omitempty"`
}

func eligible() Decision {
	return Decision{Eligible: true, Reason: ReasonNone}
}

func ineligible(reason Reason) Decision {
	return Decision{Reason: reason, Message: reason.Message()}
}

// Account is the slice of user state the gate needs.
type Account struct {
	Active   bool
	Approval enums.ApprovalStatus
}

// AccountLookup returns (nil, nil) when the account does not exist.
type AccountLookup interface {
	LookupAccount(ctx context.Context, userID uuid.UUID) (*Account, error)
}

// CartCounter reports how many lines the user's cart holds.
type CartCounter interface {
	CountLines(ctx context.Context, userID uuid.UUID) (int, error)
}

// Evaluate applies the rules in order. userID is uuid.Nil for anonymous callers.
func Evaluate(ctx context.Context, userID uuid.UUID, accounts AccountLookup, cartLines int) Decision {
	if userID == uuid.Nil {
		return ineligible(ReasonNotAuthenticated)
	}
	if accounts == nil {
		return ineligible(ReasonUndetermined)
	}
	account, err := accounts.LookupAccount(ctx, userID)
	if err != nil {
		return ineligible(ReasonUndetermined)
	}
	if account == nil {
		return ineligible(ReasonNotAuthenticated)
	}
	if !account.Active {
		return ineligible(ReasonAccountInactive)
	}
	switch account.Approval {
	case enums.ApprovalStatusPending:
		return ineligible(ReasonApprovalPending)
	case enums.ApprovalStatusRejected:
		return ineligible(ReasonApprovalRejected)
	case enums.ApprovalStatusApproved, enums.ApprovalStatusNotRequired:
	default:
		return ineligible(ReasonUndetermined)
	}
	if cartLines <= 0 {
		return ineligible(ReasonCartEmpty)
	}
	return eligible()
}

// State tracks a single checkout attempt.
type State string

const (
	StateUnknown    State = "UNKNOWN"
	StateEligible   State = "ELIGIBLE"
	StateIneligible State = "INELIGIBLE"
)

var ErrAlreadyResolved = errors.New("eligibility already resolved for this attempt")

// Attempt starts UNKNOWN and resolves exactly once.
type Attempt struct {
	state    State
	decision Decision
}

func NewAttempt() *Attempt {
	return &Attempt{state: StateUnknown}
}

func (a *Attempt) State() State {
	return a.state
}

// Decision reports false while the attempt is still UNKNOWN.
func (a *Attempt) Decision() (Decision, bool) {
	if a.state == StateUnknown {
		return Decision{}, false
	}
	return a.decision, true
}

func (a *Attempt) Resolve(d Decision) error {
	if a.state != StateUnknown {
		return ErrAlreadyResolved
	}
	switch {
	case d.Eligible && d.Reason != ReasonNone && d.Reason != "":
		return fmt.Errorf("eligible decision carries reason %s", d.Reason)
	case d.Eligible:
		d = eligible()
	case !d.Reason.blocking():
		d = ineligible(ReasonUndetermined)
	default:
		d = ineligible(d.Reason)
	}
	a.decision = d
	if d.Eligible {
		a.state = StateEligible
	} else {
		a.state = StateIneligible
	}
	return nil
}

// Gate wires the lookups used by Check.
type Gate struct {
	accounts AccountLookup
	carts    CartCounter
}

func NewGate(accounts AccountLookup, carts CartCounter) (*Gate, error) {
	if accounts == nil {
		return nil, fmt.Errorf("account lookup required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart counter required")
	}
	return &Gate{accounts: accounts, carts: carts}, nil
}

// Check runs one attempt for userID against the persisted cart.
func (g *Gate) Check(ctx context.Context, userID uuid.UUID) Decision {
	attempt := NewAttempt()
	lines := 0
	if userID != uuid.Nil {
		n, err := g.carts.CountLines(ctx, userID)
		if err != nil {
			_ = attempt.Resolve(ineligible(ReasonUndetermined))
			d, _ := attempt.Decision()
			return d
		}
		lines = n
	}
	_ = attempt.Resolve(Evaluate(ctx, userID, g.accounts, lines))
	d, _ := attempt.Decision()
	return d
}
