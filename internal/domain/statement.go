package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatementStatus is the reconciliation state of a bank statement
type StatementStatus string

const (
	StatementPending    StatementStatus = "pending"
	StatementInProgress StatementStatus = "in_progress"
	StatementReconciled StatementStatus = "reconciled"
	StatementCanceled   StatementStatus = "canceled"
)

// MatchMethod records how a transaction was cleared against a statement
type MatchMethod string

const (
	MatchAuto   MatchMethod = "auto"
	MatchManual MatchMethod = "manual"
)

// BankStatement represents one statement period for an account. Balances are
// stored in the internal sign convention (credit card balances negative).
type BankStatement struct {
	ID               string          `json:"id" db:"id"`
	AccountID        string          `json:"account_id" db:"account_id"`
	PeriodStart      time.Time       `json:"period_start" db:"period_start"`
	PeriodEnd        time.Time       `json:"period_end" db:"period_end"`
	BeginningBalance decimal.Decimal `json:"beginning_balance" db:"beginning_balance"`
	EndingBalance    decimal.Decimal `json:"ending_balance" db:"ending_balance"`
	Status           StatementStatus `json:"status" db:"status"`
	Unmatched        []ExtractedRow  `json:"unmatched_transactions,omitempty" db:"unmatched_transactions"`
	ExtractedData    []ExtractedRow  `json:"extracted_data,omitempty" db:"extracted_data"`
	ReconciledAt     *time.Time      `json:"reconciled_at,omitempty" db:"reconciled_at"`
	CanceledAt       *time.Time      `json:"canceled_at,omitempty" db:"canceled_at"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at" db:"updated_at"`
}

// StatementTransaction marks a ledger transaction as cleared against a
// statement. Membership here is the sole source of truth for "cleared".
type StatementTransaction struct {
	StatementID   string      `json:"statement_id" db:"statement_id"`
	TransactionID string      `json:"transaction_id" db:"transaction_id"`
	MatchMethod   MatchMethod `json:"match_method" db:"match_method"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// ExtractedRow is one line item captured from a bank statement, already
// sign-normalized to the internal convention.
type ExtractedRow struct {
	Date        time.Time       `json:"date"`
	Payee       string          `json:"payee,omitempty"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// ClearedTransaction pairs a ledger transaction with its cleared flag for a
// given statement.
type ClearedTransaction struct {
	Transaction
	IsCleared bool `json:"is_cleared"`
}

// ReconciliationSummary is the computed state of a statement reconciliation
type ReconciliationSummary struct {
	Statement        *BankStatement       `json:"statement"`
	Account          *Account             `json:"account"`
	Transactions     []ClearedTransaction `json:"transactions"`
	BeginningBalance decimal.Decimal      `json:"beginning_balance"`
	ClearedTotal     decimal.Decimal      `json:"cleared_total"`
	EndingComputed   decimal.Decimal      `json:"ending_balance_computed"`
	EndingReported   decimal.Decimal      `json:"ending_balance_reported"`
	Difference       decimal.Decimal      `json:"difference"`
}

// MatchResult reports the outcome of matching extracted rows
type MatchResult struct {
	Matched   int            `json:"matched"`
	Created   int            `json:"created"`
	Unmatched []ExtractedRow `json:"unmatched"`
}
