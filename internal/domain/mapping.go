package domain

import "time"

// DetectionMethod names the strategy that produced an account suggestion
type DetectionMethod string

const (
	DetectByMapping     DetectionMethod = "mapping_table"
	DetectByHeader      DetectionMethod = "header_match"
	DetectByInstitution DetectionMethod = "institution_match"
	DetectNone          DetectionMethod = "none"
)

// Detection is the outcome of account detection for an import file.
// MappingID is set when a stored mapping produced the suggestion.
type Detection struct {
	SuggestedAccountID string          `json:"suggested_account_id,omitempty"`
	Method             DetectionMethod `json:"method"`
	Confidence         float64         `json:"confidence"`
	MappingID          *string         `json:"mapping_id,omitempty"`
}

// AccountImportMapping is a learned association from an import layout to an
// account. Created or reinforced when a user confirms a detected account for
// a header signature; consulted before any heuristic detection.
type AccountImportMapping struct {
	ID                   string    `json:"id" db:"id"`
	AccountID            string    `json:"account_id" db:"account_id"`
	HeaderSignature      string    `json:"header_signature" db:"header_signature"`
	Institution          *string   `json:"institution,omitempty" db:"institution"`
	StatementAccountName *string   `json:"statement_account_name,omitempty" db:"statement_account_name"`
	AccountNumber        *string   `json:"account_number,omitempty" db:"account_number"`
	Last4                *string   `json:"last4,omitempty" db:"last4"`
	Confidence           float64   `json:"confidence" db:"confidence"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// ImportAttempt is the audit record of one file's detected layout.
// MappingID links the stored mapping the detection resolved through, when
// there was one; Mapping is the resolved column layout (field role to
// source column name) so later lookups for the same fingerprint can reuse
// it.
type ImportAttempt struct {
	ID                string            `json:"id" db:"id"`
	ImportID          string            `json:"import_id" db:"import_id"`
	AccountID         string            `json:"account_id" db:"account_id"`
	HeaderFingerprint string            `json:"header_fingerprint" db:"header_fingerprint"`
	MappingID         *string           `json:"mapping_id,omitempty" db:"mapping_id"`
	Mapping           map[string]string `json:"mapping" db:"mapping"`
	Method            DetectionMethod   `json:"method" db:"method"`
	Filename          string            `json:"filename,omitempty" db:"filename"`
	CreatedAt         time.Time         `json:"created_at" db:"created_at"`
}
