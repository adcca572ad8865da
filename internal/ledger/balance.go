// Package ledger enforces double-entry invariants on transaction splits.
package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/Edmaione/Terrain-Financials-sub001/internal/domain"
)

// AssertBalanced validates a transaction's splits before persistence.
// It fails if any split amount is zero, or if the split amounts do not sum
// to exactly zero. Sums use exact decimal arithmetic, never float equality.
func AssertBalanced(splits []domain.Split) error {
	sum := decimal.Zero
	for i, split := range splits {
		if split.Amount.IsZero() {
			return &domain.ZeroSplitError{Index: i}
		}
		sum = sum.Add(split.Amount)
	}

	if !sum.IsZero() {
		return &domain.ImbalancedSplitError{Sum: sum}
	}
	return nil
}
