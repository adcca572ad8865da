package repository

import (
	"database/sql"
	"encoding/json"

	"github.com/Edmaione/Terrain-Financials-sub001/internal/domain"
	"github.com/Edmaione/Terrain-Financials-sub001/pkg/logger"
)

type MappingRepository interface {
	List() ([]domain.AccountImportMapping, error)
	GetBySignature(headerSignature string) ([]domain.AccountImportMapping, error)
	Upsert(mapping *domain.AccountImportMapping) error
	CreateAttempt(attempt *domain.ImportAttempt) error
}

type mappingRepository struct {
	db *sql.DB
}

func NewMappingRepository(db *sql.DB) MappingRepository {
	return &mappingRepository{db: db}
}

const mappingColumns = `
	id, account_id, header_signature, institution, statement_account_name,
	account_number, last4, confidence, created_at, updated_at
`

func (r *mappingRepository) List() ([]domain.AccountImportMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM account_import_mappings ORDER BY confidence DESC, id`

	rows, err := r.db.Query(query)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to query mappings")
		return nil, err
	}
	defer rows.Close()

	return collectMappings(rows)
}

func (r *mappingRepository) GetBySignature(headerSignature string) ([]domain.AccountImportMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM account_import_mappings WHERE header_signature = $1 ORDER BY confidence DESC, id`

	rows, err := r.db.Query(query, headerSignature)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to query mappings")
		return nil, err
	}
	defer rows.Close()

	return collectMappings(rows)
}

// Upsert creates a mapping or reinforces an existing one for the same
// (header_signature, account_id) pair by bumping its confidence weight.
func (r *mappingRepository) Upsert(mapping *domain.AccountImportMapping) error {
	query := `
		INSERT INTO account_import_mappings (
			id, account_id, header_signature, institution,
			statement_account_name, account_number, last4, confidence
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (header_signature, account_id) DO UPDATE
		SET confidence = LEAST(account_import_mappings.confidence + 0.05, 1.0),
			updated_at = now()
		RETURNING id, confidence, created_at, updated_at
	`

	err := r.db.QueryRow(
		query,
		mapping.ID,
		mapping.AccountID,
		mapping.HeaderSignature,
		mapping.Institution,
		mapping.StatementAccountName,
		mapping.AccountNumber,
		mapping.Last4,
		mapping.Confidence,
	).Scan(&mapping.ID, &mapping.Confidence, &mapping.CreatedAt, &mapping.UpdatedAt)

	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to upsert mapping")
		return err
	}

	return nil
}

func (r *mappingRepository) CreateAttempt(attempt *domain.ImportAttempt) error {
	mapping, err := json.Marshal(attempt.Mapping)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to marshal attempt mapping")
		return err
	}

	query := `
		INSERT INTO import_attempts (
			id, import_id, account_id, header_fingerprint, mapping_id, mapping, method, filename
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err = r.db.QueryRow(
		query,
		attempt.ID,
		attempt.ImportID,
		attempt.AccountID,
		attempt.HeaderFingerprint,
		attempt.MappingID,
		mapping,
		attempt.Method,
		attempt.Filename,
	).Scan(&attempt.CreatedAt)

	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to create import attempt")
		return err
	}

	return nil
}

func collectMappings(rows *sql.Rows) ([]domain.AccountImportMapping, error) {
	var mappings []domain.AccountImportMapping
	for rows.Next() {
		var m domain.AccountImportMapping
		err := rows.Scan(
			&m.ID,
			&m.AccountID,
			&m.HeaderSignature,
			&m.Institution,
			&m.StatementAccountName,
			&m.AccountNumber,
			&m.Last4,
			&m.Confidence,
			&m.CreatedAt,
			&m.UpdatedAt,
		)
		if err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan mapping")
			continue
		}
		mappings = append(mappings, m)
	}
	return mappings, rows.Err()
}
