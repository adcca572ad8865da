// Package normalize converts raw statement values into the ledger's internal
// sign convention: negative = money out, positive = money in. Each value must
// pass through exactly once; re-application inverts credit card signs again.
package normalize

import (
	"github.com/shopspring/decimal"

	"github.com/Edmaione/Terrain-Financials-sub001/internal/domain"
)

// Amount converts a raw statement amount for the given account type.
// Credit card statements report charges as positive, so their sign is
// inverted. Every other account type already matches the convention.
func Amount(raw decimal.Decimal, accountType domain.AccountType) decimal.Decimal {
	if accountType == domain.CreditCard {
		return raw.Neg()
	}
	return raw
}

// Balance applies the same inversion rule to statement-reported balances.
// A credit card statement reports the owed amount as positive; the ledger
// stores it as a negative liability.
func Balance(raw decimal.Decimal, accountType domain.AccountType) decimal.Decimal {
	if accountType == domain.CreditCard {
		return raw.Neg()
	}
	return raw
}
