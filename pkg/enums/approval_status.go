package enums

import "fmt"

// ApprovalStatus maps to the approval_status enum in Postgres.
type ApprovalStatus string

const (
	ApprovalStatusNotRequired ApprovalStatus = "not_required"
	ApprovalStatusPending     ApprovalStatus = "pending"
	ApprovalStatusApproved    ApprovalStatus = "approved"
	ApprovalStatusRejected    ApprovalStatus = "rejected"
)

var validApprovalStatuses = []ApprovalStatus{
	ApprovalStatusNotRequired,
	ApprovalStatusPending,
	ApprovalStatusApproved,
	ApprovalStatusRejected,
}

// String implements fmt.Stringer.
func (a ApprovalStatus) String() string {
	return string(a)
}

// IsValid reports whether the value matches the canonical approval_status enum.
func (a ApprovalStatus) IsValid() bool {
	for _, candidate := range validApprovalStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseApprovalStatus converts raw input into ApprovalStatus.
func ParseApprovalStatus(value string) (ApprovalStatus, error) {
	for _, candidate := range validApprovalStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid approval status %q", value)
}

// ApprovalDecision is the admin verdict on a pending registration.
type ApprovalDecision string

const (
	ApprovalDecisionApprove ApprovalDecision = "approve"
	ApprovalDecisionReject  ApprovalDecision = "reject"
)

// IsValid reports whether the decision is supported.
func (d ApprovalDecision) IsValid() bool {
	return d == ApprovalDecisionApprove || d == ApprovalDecisionReject
}

// Status returns the approval status a decision resolves to.
func (d ApprovalDecision) Status() ApprovalStatus {
	if d == ApprovalDecisionApprove {
		return ApprovalStatusApproved
	}
	return ApprovalStatusRejected
}
