package domain

import "time"

// AccountType classifies ledger accounts
type AccountType string

const (
	Checking   AccountType = "checking"
	Savings    AccountType = "savings"
	CreditCard AccountType = "credit_card"
	Loan       AccountType = "loan"
	Investment AccountType = "investment"
)

// Account represents a bank or card account owned by the ledger
type Account struct {
	ID            string      `json:"id" db:"id"`
	Name          string      `json:"name" db:"name"`
	Institution   string      `json:"institution" db:"institution"`
	Type          AccountType `json:"type" db:"type"`
	AccountNumber string      `json:"account_number,omitempty" db:"account_number"`
	Last4         string      `json:"last4,omitempty" db:"last4"`
	Active        bool        `json:"active" db:"active"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" db:"updated_at"`
}

// ValidType reports whether t is one of the known account types
func ValidType(t AccountType) bool {
	switch t {
	case Checking, Savings, CreditCard, Loan, Investment:
		return true
	}
	return false
}
