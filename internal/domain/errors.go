package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError reports a missing or malformed field on caller input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError reports a referenced entity that does not exist
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// ImbalancedSplitError reports splits that violate the zero-sum invariant
type ImbalancedSplitError struct {
	Sum decimal.Decimal
}

func (e *ImbalancedSplitError) Error() string {
	return fmt.Sprintf("splits do not balance: sum is %s, expected 0", e.Sum.StringFixed(2))
}

// ZeroSplitError reports a split with a zero amount, which carries no
// economic meaning and indicates an upstream bug
type ZeroSplitError struct {
	Index int
}

func (e *ZeroSplitError) Error() string {
	return fmt.Sprintf("split %d has zero amount", e.Index)
}

// ReconciliationMismatchError reports a statement whose computed difference
// exceeds the tolerance. The difference is carried for display.
type ReconciliationMismatchError struct {
	StatementID string
	Difference  decimal.Decimal
}

func (e *ReconciliationMismatchError) Error() string {
	return fmt.Sprintf("statement %s does not reconcile: difference is %s", e.StatementID, e.Difference.StringFixed(2))
}

// StateError reports an operation applied in an illegal statement state
type StateError struct {
	StatementID string
	Status      StatementStatus
	Operation   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot %s statement %s in status %s", e.Operation, e.StatementID, e.Status)
}
