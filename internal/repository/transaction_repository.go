package repository

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/Edmaione/Terrain-Financials-sub001/internal/domain"
	"github.com/Edmaione/Terrain-Financials-sub001/pkg/logger"
)

type TransactionRepository interface {
	Create(tx *domain.Transaction) error
	GetByID(id string) (*domain.Transaction, error)
	GetByIDs(ids []string) ([]domain.Transaction, error)
	GetByAccountAndDateRange(accountID string, start, end time.Time) ([]domain.Transaction, error)
	GetByAccountAndSource(accountID string, source domain.TransactionSource) ([]domain.Transaction, error)
	ApplyPlan(inserts, updates []domain.Transaction) error
	Approve(id string) error
}

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

const transactionColumns = `
	id, account_id, date, payee, description, amount,
	category_id, subcategory_id, source, source_id, source_hash,
	review_status, reconciliation_status, created_at, updated_at
`

func (r *transactionRepository) Create(tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			id, account_id, date, payee, description, amount,
			category_id, subcategory_id, source, source_id, source_hash,
			review_status, reconciliation_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(
		query,
		tx.ID,
		tx.AccountID,
		tx.Date,
		tx.Payee,
		tx.Description,
		tx.Amount,
		tx.CategoryID,
		tx.SubcategoryID,
		tx.Source,
		tx.SourceID,
		tx.SourceHash,
		tx.ReviewStatus,
		tx.ReconciliationStatus,
	).Scan(&tx.CreatedAt, &tx.UpdatedAt)

	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to create transaction")
		return err
	}

	if len(tx.Splits) > 0 {
		if err := r.insertSplits(tx.ID, tx.Splits); err != nil {
			return err
		}
	}

	return nil
}

func (r *transactionRepository) insertSplits(transactionID string, splits []domain.Split) error {
	dbTx, err := r.db.Begin()
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to begin transaction")
		return err
	}
	defer dbTx.Rollback()

	stmt, err := dbTx.Prepare(`
		INSERT INTO splits (id, transaction_id, amount, category_id, memo)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to prepare statement")
		return err
	}
	defer stmt.Close()

	for _, split := range splits {
		if _, err := stmt.Exec(split.ID, transactionID, split.Amount, split.CategoryID, split.Memo); err != nil {
			logger.GetLogger().WithError(err).WithField("transaction_id", transactionID).Error("Failed to insert split")
			return err
		}
	}

	return dbTx.Commit()
}

func (r *transactionRepository) GetByID(id string) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	var tx domain.Transaction
	err := scanTransaction(r.db.QueryRow(query, id), &tx)
	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Entity: "transaction", ID: id}
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to get transaction")
		return nil, err
	}

	return &tx, nil
}

func (r *transactionRepository) GetByIDs(ids []string) ([]domain.Transaction, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = ANY($1) ORDER BY date, id`
	rows, err := r.db.Query(query, pq.Array(ids))
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to query transactions")
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func (r *transactionRepository) GetByAccountAndDateRange(accountID string, start, end time.Time) ([]domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1 AND date >= $2 AND date <= $3
		ORDER BY date, id
	`

	rows, err := r.db.Query(query, accountID, start, end)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to query transactions")
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func (r *transactionRepository) GetByAccountAndSource(accountID string, source domain.TransactionSource) ([]domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1 AND source = $2
		ORDER BY date, id
	`

	rows, err := r.db.Query(query, accountID, source)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to query transactions")
		return nil, err
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// ApplyPlan persists an idempotency plan in one database transaction:
// inserts for unseen records, updates carrying the matched existing ids.
// Re-imports never touch review or reconciliation state.
func (r *transactionRepository) ApplyPlan(inserts, updates []domain.Transaction) error {
	if len(inserts) == 0 && len(updates) == 0 {
		return nil
	}

	dbTx, err := r.db.Begin()
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to begin transaction")
		return err
	}
	defer dbTx.Rollback()

	insertStmt, err := dbTx.Prepare(`
		INSERT INTO transactions (
			id, account_id, date, payee, description, amount,
			category_id, subcategory_id, source, source_id, source_hash,
			review_status, reconciliation_status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to prepare insert statement")
		return err
	}
	defer insertStmt.Close()

	for _, tx := range inserts {
		_, err := insertStmt.Exec(
			tx.ID, tx.AccountID, tx.Date, tx.Payee, tx.Description, tx.Amount,
			tx.CategoryID, tx.SubcategoryID, tx.Source, tx.SourceID, tx.SourceHash,
			tx.ReviewStatus, tx.ReconciliationStatus,
		)
		if err != nil {
			logger.GetLogger().WithError(err).WithField("source_hash", tx.SourceHash).Error("Failed to insert transaction")
			return err
		}
	}

	updateStmt, err := dbTx.Prepare(`
		UPDATE transactions
		SET date = $2, payee = $3, description = $4, amount = $5,
			source_id = $6, source_hash = $7, updated_at = now()
		WHERE id = $1
	`)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to prepare update statement")
		return err
	}
	defer updateStmt.Close()

	auditStmt, err := dbTx.Prepare(`
		INSERT INTO transaction_audit (id, transaction_id, action, detail)
		VALUES ($1, $2, $3, $4)
	`)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to prepare audit statement")
		return err
	}
	defer auditStmt.Close()

	for _, tx := range updates {
		_, err := updateStmt.Exec(tx.ID, tx.Date, tx.Payee, tx.Description, tx.Amount, tx.SourceID, tx.SourceHash)
		if err != nil {
			logger.GetLogger().WithError(err).WithField("id", tx.ID).Error("Failed to update transaction")
			return err
		}
		if _, err := auditStmt.Exec(uuid.New().String(), tx.ID, "reimport_update", tx.SourceHash); err != nil {
			logger.GetLogger().WithError(err).WithField("id", tx.ID).Error("Failed to record audit entry")
			return err
		}
	}

	if err := dbTx.Commit(); err != nil {
		logger.GetLogger().WithError(err).Error("Failed to commit transaction")
		return err
	}

	return nil
}

// Approve moves a transaction out of pending review and records the action.
// Approving an already approved transaction is a no-op.
func (r *transactionRepository) Approve(id string) error {
	dbTx, err := r.db.Begin()
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to begin transaction")
		return err
	}
	defer dbTx.Rollback()

	var status domain.ReviewStatus
	err = dbTx.QueryRow(`SELECT review_status FROM transactions WHERE id = $1`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return &domain.NotFoundError{Entity: "transaction", ID: id}
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to get transaction")
		return err
	}
	if status == domain.ReviewApproved {
		return nil
	}

	_, err = dbTx.Exec(`UPDATE transactions SET review_status = $2, updated_at = now() WHERE id = $1`, id, domain.ReviewApproved)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("id", id).Error("Failed to update review status")
		return err
	}

	_, err = dbTx.Exec(
		`INSERT INTO review_actions (id, transaction_id, action) VALUES ($1, $2, $3)`,
		uuid.New().String(), id, "approve",
	)
	if err != nil {
		logger.GetLogger().WithError(err).WithField("id", id).Error("Failed to record review action")
		return err
	}

	return dbTx.Commit()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner, tx *domain.Transaction) error {
	return row.Scan(
		&tx.ID,
		&tx.AccountID,
		&tx.Date,
		&tx.Payee,
		&tx.Description,
		&tx.Amount,
		&tx.CategoryID,
		&tx.SubcategoryID,
		&tx.Source,
		&tx.SourceID,
		&tx.SourceHash,
		&tx.ReviewStatus,
		&tx.ReconciliationStatus,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
}

func collectTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	var transactions []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := scanTransaction(rows, &tx); err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan transaction")
			continue
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}
