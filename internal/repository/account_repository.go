package repository

import (
	"database/sql"

	"github.com/Edmaione/Terrain-Financials-sub001/internal/domain"
	"github.com/Edmaione/Terrain-Financials-sub001/pkg/logger"
)

type AccountRepository interface {
	Create(account *domain.Account) error
	GetByID(id string) (*domain.Account, error)
	List() ([]domain.Account, error)
}

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) Create(account *domain.Account) error {
	query := `
		INSERT INTO accounts (id, name, institution, type, account_number, last4, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(
		query,
		account.ID,
		account.Name,
		account.Institution,
		account.Type,
		account.AccountNumber,
		account.Last4,
		account.Active,
	).Scan(&account.CreatedAt, &account.UpdatedAt)

	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to create account")
		return err
	}

	return nil
}

func (r *accountRepository) GetByID(id string) (*domain.Account, error) {
	query := `
		SELECT id, name, institution, type, account_number, last4, active, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`

	var account domain.Account
	err := r.db.QueryRow(query, id).Scan(
		&account.ID,
		&account.Name,
		&account.Institution,
		&account.Type,
		&account.AccountNumber,
		&account.Last4,
		&account.Active,
		&account.CreatedAt,
		&account.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, &domain.NotFoundError{Entity: "account", ID: id}
	}
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to get account")
		return nil, err
	}

	return &account, nil
}

func (r *accountRepository) List() ([]domain.Account, error) {
	query := `
		SELECT id, name, institution, type, account_number, last4, active, created_at, updated_at
		FROM accounts
		ORDER BY updated_at DESC, id
	`

	rows, err := r.db.Query(query)
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to query accounts")
		return nil, err
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var account domain.Account
		err := rows.Scan(
			&account.ID,
			&account.Name,
			&account.Institution,
			&account.Type,
			&account.AccountNumber,
			&account.Last4,
			&account.Active,
			&account.CreatedAt,
			&account.UpdatedAt,
		)
		if err != nil {
			logger.GetLogger().WithError(err).Error("Failed to scan account")
			continue
		}
		accounts = append(accounts, account)
	}

	return accounts, rows.Err()
}
