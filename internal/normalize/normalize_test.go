package normalize

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Edmaione/Terrain-Financials-sub001/internal/domain"
)

func TestAmount_CreditCardInverts(t *testing.T) {
	charge := decimal.NewFromFloat(42.50)

	got := Amount(charge, domain.CreditCard)

	assert.True(t, got.Equal(decimal.NewFromFloat(-42.50)), "credit card charges become outflows")
}

func TestAmount_CheckingPassesThrough(t *testing.T) {
	for _, accountType := range []domain.AccountType{domain.Checking, domain.Savings, domain.Loan, domain.Investment} {
		raw := decimal.NewFromFloat(-19.99)
		assert.True(t, Amount(raw, accountType).Equal(raw), "type %s should not change sign", accountType)
	}
}

func TestAmount_DoubleApplicationInverts(t *testing.T) {
	raw := decimal.NewFromFloat(100)

	once := Amount(raw, domain.CreditCard)
	twice := Amount(once, domain.CreditCard)

	assert.True(t, twice.Equal(raw), "applying twice undoes the inversion, which is why callers must apply exactly once")
}

func TestAmount_ZeroUnchanged(t *testing.T) {
	assert.True(t, Amount(decimal.Zero, domain.CreditCard).Equal(decimal.Zero))
}

func TestBalance_MatchesAmountRule(t *testing.T) {
	reported := decimal.NewFromFloat(1250.00)

	assert.True(t, Balance(reported, domain.CreditCard).Equal(decimal.NewFromFloat(-1250.00)))
	assert.True(t, Balance(reported, domain.Checking).Equal(reported))
}
