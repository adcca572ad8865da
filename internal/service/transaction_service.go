package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/Edmaione/Terrain-Financials-sub001/internal/domain"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/importer"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/ledger"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/repository"
)

type TransactionService interface {
	Create(tx *domain.Transaction) error
	GetByID(id string) (*domain.Transaction, error)
	GetByAccountAndDateRange(accountID string, start, end time.Time) ([]domain.Transaction, error)
	Approve(id string) error
}

type transactionService struct {
	repo        repository.TransactionRepository
	accountRepo repository.AccountRepository
}

func NewTransactionService(repo repository.TransactionRepository, accountRepo repository.AccountRepository) TransactionService {
	return &transactionService{repo: repo, accountRepo: accountRepo}
}

func (s *transactionService) Create(tx *domain.Transaction) error {
	if err := s.validate(tx); err != nil {
		return err
	}

	// The split-balance gate runs before any split-bearing transaction is
	// persisted.
	if len(tx.Splits) > 0 {
		if err := ledger.AssertBalanced(tx.Splits); err != nil {
			return err
		}
	}

	if _, err := s.accountRepo.GetByID(tx.AccountID); err != nil {
		return err
	}

	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	for i := range tx.Splits {
		if tx.Splits[i].ID == "" {
			tx.Splits[i].ID = uuid.New().String()
		}
		tx.Splits[i].TransactionID = tx.ID
	}
	if tx.Source == "" {
		tx.Source = domain.SourceManual
	}
	if tx.ReviewStatus == "" {
		tx.ReviewStatus = domain.ReviewPending
	}
	if tx.ReconciliationStatus == "" {
		tx.ReconciliationStatus = domain.Unreconciled
	}
	if tx.SourceHash == "" {
		tx.SourceHash = importer.SourceHash(*tx)
	}

	return s.repo.Create(tx)
}

func (s *transactionService) GetByID(id string) (*domain.Transaction, error) {
	if id == "" {
		return nil, &domain.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	return s.repo.GetByID(id)
}

func (s *transactionService) GetByAccountAndDateRange(accountID string, start, end time.Time) ([]domain.Transaction, error) {
	if accountID == "" {
		return nil, &domain.ValidationError{Field: "account_id", Reason: "must not be empty"}
	}
	if start.After(end) {
		return nil, &domain.ValidationError{Field: "start_date", Reason: "must not be after end_date"}
	}
	return s.repo.GetByAccountAndDateRange(accountID, start, end)
}

func (s *transactionService) Approve(id string) error {
	if id == "" {
		return &domain.ValidationError{Field: "id", Reason: "must not be empty"}
	}
	return s.repo.Approve(id)
}

func (s *transactionService) validate(tx *domain.Transaction) error {
	if tx.AccountID == "" {
		return &domain.ValidationError{Field: "account_id", Reason: "is required"}
	}
	if tx.Date.IsZero() {
		return &domain.ValidationError{Field: "date", Reason: "is required"}
	}
	if tx.Amount.IsZero() && len(tx.Splits) == 0 {
		return &domain.ValidationError{Field: "amount", Reason: "must be non-zero"}
	}
	return nil
}
