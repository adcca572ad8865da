package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"github.com/Edmaione/Terrain-Financials-sub001/internal/domain"
	"github.com/Edmaione/Terrain-Financials-sub001/pkg/logger"
)

type StatementRepository interface {
	Create(stmt *domain.BankStatement) error
	GetByID(id string) (*domain.BankStatement, error)
	SetStatus(id string, status domain.StatementStatus, at time.Time) error
	SaveUnmatched(id string, rows []domain.ExtractedRow) error
	SaveExtracted(id string, rows []domain.ExtractedRow) error
	UpsertClearings(statementID string, transactionIDs []string, method domain.MatchMethod) error
	DeleteClearings(statementID string, transactionIDs []string) error
	GetClearedIDs(statementID string) (map[string]bool, error)
	ClearedElsewhere(accountID, excludeStatementID string) (map[string]bool, error)
	MarkReconciled(statementID string, at time.Time) error
}

type statementRepository struct {
	db *sql.DB
}

func NewStatementRepository(db *sql.DB) StatementRepository {
	return &statementRepository{db: db}
}

func (r *statementRepository) Create(stmt *domain.BankStatement) error {
	extracted, err := json.Marshal(stmt.ExtractedData)
	if err != nil {
		return err
	}
	unmatched, err := json.Marshal(stmt.Unmatched)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO bank_statements (
			id, account_id, period_start, period_end,
			beginning_balance, ending_balance, status,
			unmatched_transactions, extracted_data
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`

	err = r.db.QueryRow(
		query,
		stmt.ID,
		stmt.AccountID,
		stmt.PeriodStart,
		stmt.PeriodEnd,
		stmt.BeginningBalance,
		stmt.EndingBalance,
		stmt.Status,
		unmatched,
		extracted,
	).Scan(&stmt.CreatedAt, &stmt.UpdatedAt)

	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to create bank statement")
		return err
	}

	return nil
}

func (r *statementRepository) GetByID(id string) (*domain.BankStatement, error) {
	query := `
		SELECT id, account_id, period_start, period_end,
			   beginning_balance, ending_balance, status,
			   unmatched_transactions, extracted_data,
			   reconciled_at, canceled_at, created_at, updated_at
		FROM bank_statements
		WHERE id = $1
	`

	var stmt domain.BankStatement
	var unmatched, extracted []byte
	err := r.db.QueryRow(query, id).Scan(
		&stmt.ID,
		&stmt.AccountID,
		&stmt.PeriodStart,
		&stmt.PeriodEnd,
		&stmt.BeginningBalance,
		&stmt.EndingBalance,
		&stmt.Status,
		&unmatched,
		&extracted,
		&stmt.ReconciledAt,
		&stmt.CanceledAt,
		&stmt.CreatedAt,
		&stmt.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Entity: "statement", ID: id}
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to get bank statement")
		return nil, err
	}

	if len(unmatched) > 0 {
		if err := json.Unmarshal(unmatched, &stmt.Unmatched); err != nil {
			logger.GetLogger().WithError(err).WithField("statement_id", id).Warn("Failed to decode unmatched rows")
		}
	}
	if len(extracted) > 0 {
		if err := json.Unmarshal(extracted, &stmt.ExtractedData); err != nil {
			logger.GetLogger().WithError(err).WithField("statement_id", id).Warn("Failed to decode extracted rows")
		}
	}

	return &stmt, nil
}

func (r *statementRepository) SetStatus(id string, status domain.StatementStatus, at time.Time) error {
	query := `
		UPDATE bank_statements
		SET status = $2,
			canceled_at = CASE WHEN $2 = 'canceled' THEN $3 ELSE canceled_at END,
			updated_at = now()
		WHERE id = $1
	`

	result, err := r.db.Exec(query, id, status, at)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to update statement status")
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Entity: "statement", ID: id}
	}

	return nil
}

func (r *statementRepository) SaveUnmatched(id string, rows []domain.ExtractedRow) error {
	return r.saveRows(id, "unmatched_transactions", rows)
}

func (r *statementRepository) SaveExtracted(id string, rows []domain.ExtractedRow) error {
	return r.saveRows(id, "extracted_data", rows)
}

func (r *statementRepository) saveRows(id, column string, rows []domain.ExtractedRow) error {
	if rows == nil {
		rows = []domain.ExtractedRow{}
	}
	payload, err := json.Marshal(rows)
	if err != nil {
		return err
	}

	// column is one of two fixed names, never caller input
	query := `UPDATE bank_statements SET ` + column + ` = $2, updated_at = now() WHERE id = $1`
	result, err := r.db.Exec(query, id, payload)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("statement_id", id).Error("Failed to save statement rows")
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Entity: "statement", ID: id}
	}

	return nil
}

// UpsertClearings marks transactions cleared against a statement. The
// unique (statement_id, transaction_id) constraint makes re-clearing a
// no-op, so the operation is idempotent under races and re-runs.
func (r *statementRepository) UpsertClearings(statementID string, transactionIDs []string, method domain.MatchMethod) error {
	if len(transactionIDs) == 0 {
		return nil
	}

	dbTx, err := r.db.Begin()
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to begin transaction")
		return err
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`
		INSERT INTO statement_transactions (statement_id, transaction_id, match_method)
		VALUES ($1, $2, $3)
		ON CONFLICT (statement_id, transaction_id) DO NOTHING
	`)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to prepare statement")
		return err
	}
	defer stmt.Close()

	for _, txID := range transactionIDs {
		if _, err := stmt.Exec(statementID, txID, method); err != nil {
			logger.GetLogger().WithError(err).WithField("transaction_id", txID).Error("Failed to insert clearing")
			return err
		}
	}

	_, err = dbTx.Exec(`
		UPDATE transactions
		SET reconciliation_status = 'cleared', updated_at = now()
		WHERE id = ANY($1) AND reconciliation_status = 'unreconciled'
	`, pq.Array(transactionIDs))
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to mark transactions cleared")
		return err
	}

	return dbTx.Commit()
}

// DeleteClearings removes clearing records; deleting means "uncleared".
func (r *statementRepository) DeleteClearings(statementID string, transactionIDs []string) error {
	if len(transactionIDs) == 0 {
		return nil
	}

	dbTx, err := r.db.Begin()
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to begin transaction")
		return err
	}
	defer dbTx.Rollback()

	_, err = dbTx.Exec(`
		DELETE FROM statement_transactions
		WHERE statement_id = $1 AND transaction_id = ANY($2)
	`, statementID, pq.Array(transactionIDs))
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to delete clearings")
		return err
	}

	// A transaction stays cleared if another statement still claims it.
	_, err = dbTx.Exec(`
		UPDATE transactions
		SET reconciliation_status = 'unreconciled', updated_at = now()
		WHERE id = ANY($1)
		  AND reconciliation_status = 'cleared'
		  AND NOT EXISTS (
			SELECT 1 FROM statement_transactions st WHERE st.transaction_id = transactions.id
		  )
	`, pq.Array(transactionIDs))
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to unmark transactions")
		return err
	}

	return dbTx.Commit()
}

func (r *statementRepository) GetClearedIDs(statementID string) (map[string]bool, error) {
	rows, err := r.db.Query(`
		SELECT transaction_id FROM statement_transactions WHERE statement_id = $1
	`, statementID)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to query clearings")
		return nil, err
	}
	defer rows.Close()

	cleared := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan clearing")
			continue
		}
		cleared[id] = true
	}

	return cleared, rows.Err()
}

// ClearedElsewhere returns ids of the account's transactions cleared on any
// statement other than the given one. Those must never be matched again.
func (r *statementRepository) ClearedElsewhere(accountID, excludeStatementID string) (map[string]bool, error) {
	rows, err := r.db.Query(`
		SELECT st.transaction_id
		FROM statement_transactions st
		JOIN transactions t ON t.id = st.transaction_id
		WHERE t.account_id = $1 AND st.statement_id <> $2
	`, accountID, excludeStatementID)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to query clearings")
		return nil, err
	}
	defer rows.Close()

	cleared := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan clearing")
			continue
		}
		cleared[id] = true
	}

	return cleared, rows.Err()
}

// MarkReconciled flips the statement to reconciled and stamps every cleared
// transaction in one database transaction: both commit or neither does.
func (r *statementRepository) MarkReconciled(statementID string, at time.Time) error {
	dbTx, err := r.db.Begin()
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to begin transaction")
		return err
	}
	defer dbTx.Rollback()

	result, err := dbTx.Exec(`
		UPDATE bank_statements
		SET status = 'reconciled', reconciled_at = $2, updated_at = now()
		WHERE id = $1 AND status <> 'canceled'
	`, statementID, at)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to mark statement reconciled")
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return &domain.NotFoundError{Entity: "statement", ID: statementID}
	}

	_, err = dbTx.Exec(`
		UPDATE transactions
		SET reconciliation_status = 'reconciled', updated_at = $2
		WHERE id IN (
			SELECT transaction_id FROM statement_transactions WHERE statement_id = $1
		)
	`, statementID, at)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to mark transactions reconciled")
		return err
	}

	if err := dbTx.Commit(); err != nil {
		logger.GetLogger().WithError(err).Error("Failed to commit reconciliation")
		return err
	}

	return nil
}
