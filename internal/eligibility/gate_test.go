package eligibility

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"github.com/medmarket/medmarket-backend/pkg/enums"
	"gorm.io/gorm"
)

type stubAccounts struct {
	account *Account
	err     error
	calls   int
}

func (s *stubAccounts) LookupAccount(context.Context, uuid.UUID) (*Account, error) {
	s.calls++
	return s.account, s.err
}

type stubCarts struct {
	lines int
	err   error
}

func (s stubCarts) CountLines(context.Context, uuid.UUID) (int, error) {
	return s.lines, s.err
}

func TestEvaluateRules(t *testing.T) {
	t.Parallel()

	user := uuid.New()
	cases := []struct {
		name    string
		userID  uuid.UUID
		lookup  *stubAccounts
		lines   int
		want    Reason
		allowed bool
	}{
		{name: "anonymous with items", userID: uuid.Nil, lookup: &stubAccounts{}, lines: 3, want: ReasonNotAuthenticated},
		{name: "lookup failure fails closed", userID: user, lookup: &stubAccounts{err: errors.New("timeout")}, lines: 3, want: ReasonUndetermined},
		{name: "account missing", userID: user, lookup: &stubAccounts{}, lines: 3, want: ReasonNotAuthenticated},
		{name: "inactive", userID: user, lookup: &stubAccounts{account: &Account{Active: false, Approval: enums.ApprovalStatusApproved}}, lines: 3, want: ReasonAccountInactive},
		{name: "pending doctor", userID: user, lookup: &stubAccounts{account: &Account{Active: true, Approval: enums.ApprovalStatusPending}}, lines: 3, want: ReasonApprovalPending},
		{name: "rejected doctor", userID: user, lookup: &stubAccounts{account: &Account{Active: true, Approval: enums.ApprovalStatusRejected}}, lines: 3, want: ReasonApprovalRejected},
		{name: "unknown approval value", userID: user, lookup: &stubAccounts{account: &Account{Active: true, Approval: "mystery"}}, lines: 3, want: ReasonUndetermined},
		{name: "empty cart", userID: user, lookup: &stubAccounts{account: &Account{Active: true, Approval: enums.ApprovalStatusApproved}}, lines: 0, want: ReasonCartEmpty},
		{name: "approved doctor", userID: user, lookup: &stubAccounts{account: &Account{Active: true, Approval: enums.ApprovalStatusApproved}}, lines: 1, want: ReasonNone, allowed: true},
		{name: "customer", userID: user, lookup: &stubAccounts{account: &Account{Active: true, Approval: enums.ApprovalStatusNotRequired}}, lines: 2, want: ReasonNone, allowed: true},
	}

	for _, tc := range cases {
		got := Evaluate(context.Background(), tc.userID, tc.lookup, tc.lines)
		if got.Eligible != tc.allowed || got.Reason != tc.want {
			t.Fatalf("%s: expected eligible=%v reason=%s, got %+v", tc.name, tc.allowed, tc.want, got)
		}
		if !got.Eligible && got.Message == "" {
			t.Fatalf("%s: blocked decisions need a message", tc.name)
		}
	}
}

func TestEvaluateAnonymousSkipsLookup(t *testing.T) {
	t.Parallel()

	lookup := &stubAccounts{account: &Account{Active: true, Approval: enums.ApprovalStatusApproved}}
	Evaluate(context.Background(), uuid.Nil, lookup, 5)
	if lookup.calls != 0 {
		t.Fatalf("anonymous evaluation should not hit the account lookup")
	}
}

func TestEvaluateNilLookupFailsClosed(t *testing.T) {
	t.Parallel()

	if got := Evaluate(context.Background(), uuid.New(), nil, 1); got.Eligible || got.Reason != ReasonUndetermined {
		t.Fatalf("expected UNDETERMINED, got %+v", got)
	}
}

func TestAttemptResolvesOnce(t *testing.T) {
	t.Parallel()

	a := NewAttempt()
	if a.State() != StateUnknown {
		t.Fatalf("expected UNKNOWN, got %s", a.State())
	}
	if _, ok := a.Decision(); ok {
		t.Fatal("unknown attempt must not expose a decision")
	}
	if err := a.Resolve(Decision{Reason: ReasonApprovalPending}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if a.State() != StateIneligible {
		t.Fatalf("expected INELIGIBLE, got %s", a.State())
	}
	if err := a.Resolve(eligible()); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
	d, _ := a.Decision()
	if d.Reason != ReasonApprovalPending {
		t.Fatalf("decision changed after second resolve: %+v", d)
	}
}

func TestAttemptIneligibleWithoutReasonBecomesUndetermined(t *testing.T) {
	t.Parallel()

	a := NewAttempt()
	if err := a.Resolve(Decision{}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	d, _ := a.Decision()
	if d.Eligible || d.Reason != ReasonUndetermined {
		t.Fatalf("expected UNDETERMINED, got %+v", d)
	}
	for _, reason := range []Reason{"", ReasonNone, "SOMETHING_ELSE"} {
		a := NewAttempt()
		if err := a.Resolve(Decision{Reason: reason}); err != nil {
			t.Fatalf("resolve %q: %v", reason, err)
		}
		d, _ := a.Decision()
		if d.Reason != ReasonUndetermined || d.Message != ReasonUndetermined.Message() {
			t.Fatalf("reason %q: expected UNDETERMINED with message, got %+v", reason, d)
		}
	}

	a = NewAttempt()
	if err := a.Resolve(Decision{Reason: ReasonCartEmpty}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if d, _ := a.Decision(); d.Message != ReasonCartEmpty.Message() {
		t.Fatalf("expected message keyed by reason, got %+v", d)
	}
	if err := NewAttempt().Resolve(Decision{Eligible: true, Reason: ReasonCartEmpty}); err == nil {
		t.Fatal("eligible decision with a reason should be rejected")
	}
}

func TestGateCheck(t *testing.T) {
	t.Parallel()

	approved := &stubAccounts{account: &Account{Active: true, Approval: enums.ApprovalStatusApproved}}

	gate, err := NewGate(approved, stubCarts{lines: 2})
	if err != nil {
		t.Fatalf("new gate: %v", err)
	}
	if d := gate.Check(context.Background(), uuid.New()); !d.Eligible {
		t.Fatalf("expected eligible, got %+v", d)
	}

	gate, _ = NewGate(approved, stubCarts{err: errors.New("db down")})
	if d := gate.Check(context.Background(), uuid.New()); d.Eligible || d.Reason != ReasonUndetermined {
		t.Fatalf("cart failure must fail closed, got %+v", d)
	}

	gate, _ = NewGate(approved, stubCarts{lines: 0})
	if d := gate.Check(context.Background(), uuid.New()); d.Reason != ReasonCartEmpty {
		t.Fatalf("expected CART_EMPTY, got %+v", d)
	}

	if _, err := NewGate(nil, stubCarts{}); err == nil {
		t.Fatal("expected constructor to require account lookup")
	}
}

type stubUsers struct {
	user *models.User
	err  error
}

func (s stubUsers) FindByID(context.Context, uuid.UUID) (*models.User, error) {
	return s.user, s.err
}

func TestUserAccountsLookup(t *testing.T) {
	t.Parallel()

	acc, err := NewUserAccounts(stubUsers{err: gorm.ErrRecordNotFound}).LookupAccount(context.Background(), uuid.New())
	if err != nil || acc != nil {
		t.Fatalf("missing user should map to (nil, nil), got %v %v", acc, err)
	}

	if _, err := NewUserAccounts(stubUsers{err: errors.New("boom")}).LookupAccount(context.Background(), uuid.New()); err == nil {
		t.Fatal("expected lookup error to propagate")
	}

	acc, err = NewUserAccounts(stubUsers{user: &models.User{IsActive: true, ApprovalStatus: enums.ApprovalStatusPending}}).LookupAccount(context.Background(), uuid.New())
	if err != nil || !acc.Active || acc.Approval != enums.ApprovalStatusPending {
		t.Fatalf("unexpected account %+v %v", acc, err)
	}
}
