package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionSource identifies the origin system of a transaction
type TransactionSource string

const (
	SourceManual       TransactionSource = "manual"
	SourceCSV          TransactionSource = "csv"
	SourcePDFStatement TransactionSource = "pdf_statement"
	SourceRelay        TransactionSource = "relay"
)

// ReconciliationStatus tracks how far a transaction is through reconciliation
type ReconciliationStatus string

const (
	Unreconciled ReconciliationStatus = "unreconciled"
	Cleared      ReconciliationStatus = "cleared"
	Reconciled   ReconciliationStatus = "reconciled"
)

// ReviewStatus tracks manual review of an imported transaction
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
)

// Transaction represents a ledger transaction. Amount follows the internal
// sign convention: negative = money out, positive = money in.
type Transaction struct {
	ID                   string               `json:"id" db:"id"`
	AccountID            string               `json:"account_id" db:"account_id"`
	Date                 time.Time            `json:"date" db:"date"`
	Payee                string               `json:"payee" db:"payee"`
	Description          string               `json:"description" db:"description"`
	Amount               decimal.Decimal      `json:"amount" db:"amount"`
	CategoryID           *string              `json:"category_id,omitempty" db:"category_id"`
	SubcategoryID        *string              `json:"subcategory_id,omitempty" db:"subcategory_id"`
	Source               TransactionSource    `json:"source" db:"source"`
	SourceID             string               `json:"source_id,omitempty" db:"source_id"`
	SourceHash           string               `json:"source_hash" db:"source_hash"`
	ReviewStatus         ReviewStatus         `json:"review_status" db:"review_status"`
	ReconciliationStatus ReconciliationStatus `json:"reconciliation_status" db:"reconciliation_status"`
	Splits               []Split              `json:"splits,omitempty"`
	CreatedAt            time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at" db:"updated_at"`
}

// Split is one leg of a split transaction. For any transaction with splits,
// the split amounts sum to exactly zero and no split amount is zero.
type Split struct {
	ID            string          `json:"id" db:"id"`
	TransactionID string          `json:"transaction_id" db:"transaction_id"`
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	CategoryID    *string         `json:"category_id,omitempty" db:"category_id"`
	Memo          string          `json:"memo,omitempty" db:"memo"`
}
