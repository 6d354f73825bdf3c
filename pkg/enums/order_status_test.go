package enums

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPendingPayment, OrderStatusPaid, true},
		{OrderStatusPendingPayment, OrderStatusShipped, false},
		{OrderStatusPaymentFailed, OrderStatusPaid, true},
		{OrderStatusPaid, OrderStatusProcessing, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusDelivered, OrderStatusCancelled, false},
		{OrderStatusExpired, OrderStatusPaid, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.want, got)
		}
	}
	if !OrderStatusDelivered.IsTerminal() || OrderStatusPaid.IsTerminal() {
		t.Fatal("unexpected terminal classification")
	}
}

func TestParseEnums(t *testing.T) {
	if _, err := ParseUserRole("doctor"); err != nil {
		t.Fatalf("parse doctor: %v", err)
	}
	if _, err := ParseUserRole("vendor"); err == nil {
		t.Fatal("expected vendor to be rejected")
	}
	if status, err := ParseApprovalStatus("pending"); err != nil || status != ApprovalStatusPending {
		t.Fatalf("parse pending: %v %v", status, err)
	}
	if ApprovalDecisionReject.Status() != ApprovalStatusRejected {
		t.Fatal("reject should resolve to rejected")
	}
	if !UserRoleDoctor.RequiresApproval() || UserRoleCustomer.RequiresApproval() {
		t.Fatal("only doctors require approval")
	}
}
