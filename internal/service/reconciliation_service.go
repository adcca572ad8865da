package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Edmaione/Terrain-Financials-sub001/internal/domain"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/importer"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/matcher"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/normalize"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/repository"
	"github.com/Edmaione/Terrain-Financials-sub001/pkg/logger"
)

// ReconcileTolerance is the largest absolute difference at which a
// statement still reconciles: half a cent, absorbing float accumulation in
// statement-reported balances.
var ReconcileTolerance = decimal.RequireFromString("0.005")

// ClearAction selects what Clear does with the given transaction ids
type ClearAction string

const (
	ActionClear   ClearAction = "clear"
	ActionUnclear ClearAction = "unclear"
)

type ReconciliationService interface {
	CreateStatement(accountID string, periodStart, periodEnd time.Time, beginningBalance, endingBalance decimal.Decimal, extracted []domain.ExtractedRow) (*domain.BankStatement, error)
	Clear(statementID string, transactionIDs []string, action ClearAction) error
	MatchExtracted(statementID string, rows []domain.ExtractedRow, createMissing bool) (*domain.MatchResult, error)
	AutoMatch(statementID string) (int, error)
	Summarize(statementID string) (*domain.ReconciliationSummary, error)
	Reconcile(statementID string) (*domain.ReconciliationSummary, error)
	Cancel(statementID string) error
}

type reconciliationService struct {
	accountRepo repository.AccountRepository
	txRepo      repository.TransactionRepository
	stmtRepo    repository.StatementRepository
	engine      *matcher.Engine

	// Mutating operations are serialized per statement; operations on
	// different statements run independently.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewReconciliationService(
	accountRepo repository.AccountRepository,
	txRepo repository.TransactionRepository,
	stmtRepo repository.StatementRepository,
	dateToleranceDays int,
) ReconciliationService {
	return &reconciliationService{
		accountRepo: accountRepo,
		txRepo:      txRepo,
		stmtRepo:    stmtRepo,
		engine:      matcher.NewEngine(dateToleranceDays),
		locks:       make(map[string]*sync.Mutex),
	}
}

func (s *reconciliationService) lock(statementID string) func() {
	s.mu.Lock()
	l, ok := s.locks[statementID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[statementID] = l
	}
	s.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// CreateStatement stores a new statement period. Reported balances pass
// through balance sign normalization here, once, so everything downstream
// sees the internal convention.
func (s *reconciliationService) CreateStatement(accountID string, periodStart, periodEnd time.Time, beginningBalance, endingBalance decimal.Decimal, extracted []domain.ExtractedRow) (*domain.BankStatement, error) {
	if periodStart.After(periodEnd) {
		return nil, &domain.ValidationError{Field: "period_start", Reason: "must not be after period_end"}
	}

	account, err := s.accountRepo.GetByID(accountID)
	if err != nil {
		return nil, err
	}

	stmt := &domain.BankStatement{
		ID:               uuid.New().String(),
		AccountID:        account.ID,
		PeriodStart:      periodStart,
		PeriodEnd:        periodEnd,
		BeginningBalance: normalize.Balance(beginningBalance, account.Type),
		EndingBalance:    normalize.Balance(endingBalance, account.Type),
		Status:           domain.StatementPending,
		ExtractedData:    extracted,
	}

	if err := s.stmtRepo.Create(stmt); err != nil {
		return nil, fmt.Errorf("failed to create statement: %w", err)
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"statement_id": stmt.ID,
		"account_id":   account.ID,
	}).Info("Statement created")

	return stmt, nil
}

// Clear upserts or deletes clearing records for the given transactions.
// Clearing anything on a pending statement advances it to in_progress.
func (s *reconciliationService) Clear(statementID string, transactionIDs []string, action ClearAction) error {
	if len(transactionIDs) == 0 {
		return &domain.ValidationError{Field: "transaction_ids", Reason: "must not be empty"}
	}
	if action != ActionClear && action != ActionUnclear {
		return &domain.ValidationError{Field: "action", Reason: "must be clear or unclear"}
	}

	unlock := s.lock(statementID)
	defer unlock()

	stmt, err := s.stmtRepo.GetByID(statementID)
	if err != nil {
		return err
	}
	if err := mutable(stmt, string(action)); err != nil {
		return err
	}

	if action == ActionClear {
		if err := s.stmtRepo.UpsertClearings(statementID, transactionIDs, domain.MatchManual); err != nil {
			return err
		}
	} else {
		if err := s.stmtRepo.DeleteClearings(statementID, transactionIDs); err != nil {
			return err
		}
	}

	if stmt.Status == domain.StatementPending {
		if err := s.stmtRepo.SetStatus(statementID, domain.StatementInProgress, time.Now().UTC()); err != nil {
			return err
		}
	}

	return nil
}

// MatchExtracted pairs extracted statement rows (already sign-normalized)
// against ledger transactions on the statement's account. Unmatched rows
// either become new pdf_statement transactions (createMissing) or join the
// statement's unmatched residue. Re-running with the same rows yields the
// same counts and no duplicate clearing records.
func (s *reconciliationService) MatchExtracted(statementID string, rows []domain.ExtractedRow, createMissing bool) (*domain.MatchResult, error) {
	unlock := s.lock(statementID)
	defer unlock()

	stmt, err := s.stmtRepo.GetByID(statementID)
	if err != nil {
		return nil, err
	}
	if err := mutable(stmt, "match"); err != nil {
		return nil, err
	}

	ctx, err := s.loadMatchContext(stmt)
	if err != nil {
		return nil, err
	}

	result := &domain.MatchResult{Unmatched: make([]domain.ExtractedRow, 0)}
	var toClear []string

	for _, row := range rows {
		idx := s.engine.FindMatch(row, ctx.candidates, ctx.clearedHere, ctx.clearedElsewhere)
		if idx >= 0 {
			tx := ctx.candidates[idx]
			ctx.consume(idx)
			result.Matched++
			if !ctx.clearedHere[tx.ID] {
				toClear = append(toClear, tx.ID)
			}
			continue
		}

		if !createMissing {
			result.Unmatched = append(result.Unmatched, row)
			continue
		}

		created, err := s.createFromRow(stmt.AccountID, row)
		if err != nil {
			return nil, err
		}
		toClear = append(toClear, created.ID)
		result.Created++
	}

	if err := s.stmtRepo.UpsertClearings(statementID, toClear, domain.MatchAuto); err != nil {
		return nil, err
	}
	if err := s.stmtRepo.SaveUnmatched(statementID, result.Unmatched); err != nil {
		return nil, err
	}
	if err := s.stmtRepo.SaveExtracted(statementID, rows); err != nil {
		return nil, err
	}

	if stmt.Status == domain.StatementPending && (len(toClear) > 0 || result.Matched > 0) {
		if err := s.stmtRepo.SetStatus(statementID, domain.StatementInProgress, time.Now().UTC()); err != nil {
			return nil, err
		}
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"statement_id": statementID,
		"matched":      result.Matched,
		"created":      result.Created,
		"unmatched":    len(result.Unmatched),
	}).Info("Extracted rows matched")

	return result, nil
}

// AutoMatch retries the statement's unmatched residue against ledger
// transactions that have appeared since, returning the count newly
// matched.
func (s *reconciliationService) AutoMatch(statementID string) (int, error) {
	unlock := s.lock(statementID)
	defer unlock()

	stmt, err := s.stmtRepo.GetByID(statementID)
	if err != nil {
		return 0, err
	}
	if err := mutable(stmt, "auto-match"); err != nil {
		return 0, err
	}

	if len(stmt.Unmatched) == 0 {
		return 0, nil
	}

	ctx, err := s.loadMatchContext(stmt)
	if err != nil {
		return 0, err
	}

	var toClear []string
	remaining := make([]domain.ExtractedRow, 0, len(stmt.Unmatched))

	for _, row := range stmt.Unmatched {
		idx := s.engine.FindMatch(row, ctx.candidates, ctx.clearedHere, ctx.clearedElsewhere)
		if idx < 0 || ctx.clearedHere[ctx.candidates[idx].ID] {
			remaining = append(remaining, row)
			continue
		}
		toClear = append(toClear, ctx.candidates[idx].ID)
		ctx.consume(idx)
	}

	if len(toClear) > 0 {
		if err := s.stmtRepo.UpsertClearings(statementID, toClear, domain.MatchAuto); err != nil {
			return 0, err
		}
		if err := s.stmtRepo.SaveUnmatched(statementID, remaining); err != nil {
			return 0, err
		}
		if stmt.Status == domain.StatementPending {
			if err := s.stmtRepo.SetStatus(statementID, domain.StatementInProgress, time.Now().UTC()); err != nil {
				return 0, err
			}
		}
	}

	return len(toClear), nil
}

// Summarize computes the reconciliation state of a statement. A missing
// statement yields (nil, nil): "not found" is an answer here, not a fault.
func (s *reconciliationService) Summarize(statementID string) (*domain.ReconciliationSummary, error) {
	stmt, err := s.stmtRepo.GetByID(statementID)
	if err != nil {
		var notFound *domain.NotFoundError
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}

	account, err := s.accountRepo.GetByID(stmt.AccountID)
	if err != nil {
		return nil, err
	}

	clearedIDs, err := s.stmtRepo.GetClearedIDs(statementID)
	if err != nil {
		return nil, err
	}

	inPeriod, err := s.txRepo.GetByAccountAndDateRange(stmt.AccountID, stmt.PeriodStart, stmt.PeriodEnd)
	if err != nil {
		return nil, err
	}

	// Cleared transactions can sit just outside the period window; they
	// still count toward the cleared total.
	transactions := make([]domain.ClearedTransaction, 0, len(inPeriod))
	seen := make(map[string]bool, len(inPeriod))
	for _, tx := range inPeriod {
		transactions = append(transactions, domain.ClearedTransaction{Transaction: tx, IsCleared: clearedIDs[tx.ID]})
		seen[tx.ID] = true
	}

	var missing []string
	for id := range clearedIDs {
		if !seen[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		outside, err := s.txRepo.GetByIDs(missing)
		if err != nil {
			return nil, err
		}
		for _, tx := range outside {
			transactions = append(transactions, domain.ClearedTransaction{Transaction: tx, IsCleared: true})
		}
	}

	clearedTotal := decimal.Zero
	for _, tx := range transactions {
		if tx.IsCleared {
			clearedTotal = clearedTotal.Add(tx.Amount)
		}
	}

	endingComputed := stmt.BeginningBalance.Add(clearedTotal)

	return &domain.ReconciliationSummary{
		Statement:        stmt,
		Account:          account,
		Transactions:     transactions,
		BeginningBalance: stmt.BeginningBalance,
		ClearedTotal:     clearedTotal,
		EndingComputed:   endingComputed,
		EndingReported:   stmt.EndingBalance,
		Difference:       stmt.EndingBalance.Sub(endingComputed),
	}, nil
}

// Reconcile finalizes a statement. The difference must be within the
// half-cent tolerance; on success the statement flips to reconciled and
// every cleared transaction is stamped in the same database transaction.
// A mismatch reports the computed difference and mutates nothing.
func (s *reconciliationService) Reconcile(statementID string) (*domain.ReconciliationSummary, error) {
	unlock := s.lock(statementID)
	defer unlock()

	summary, err := s.Summarize(statementID)
	if err != nil {
		return nil, err
	}
	if summary == nil {
		return nil, &domain.NotFoundError{Entity: "statement", ID: statementID}
	}
	if err := mutable(summary.Statement, "reconcile"); err != nil {
		return nil, err
	}

	if summary.Difference.Abs().GreaterThan(ReconcileTolerance) {
		logger.GetLogger().WithFields(map[string]interface{}{
			"statement_id": statementID,
			"difference":   summary.Difference.StringFixed(2),
		}).Warn("Reconciliation mismatch")
		return nil, &domain.ReconciliationMismatchError{StatementID: statementID, Difference: summary.Difference}
	}

	now := time.Now().UTC()

	// A statement with nothing to clear can balance while still pending;
	// walk it through in_progress so the status history stays ordered.
	if summary.Statement.Status == domain.StatementPending {
		if err := s.stmtRepo.SetStatus(statementID, domain.StatementInProgress, now); err != nil {
			return nil, err
		}
		summary.Statement.Status = domain.StatementInProgress
	}

	if err := s.stmtRepo.MarkReconciled(statementID, now); err != nil {
		return nil, err
	}

	summary.Statement.Status = domain.StatementReconciled
	summary.Statement.ReconciledAt = &now
	for i := range summary.Transactions {
		if summary.Transactions[i].IsCleared {
			summary.Transactions[i].ReconciliationStatus = domain.Reconciled
		}
	}

	logger.GetLogger().WithField("statement_id", statementID).Info("Statement reconciled")

	return summary, nil
}

// Cancel is terminal and only reachable from pending or in_progress.
func (s *reconciliationService) Cancel(statementID string) error {
	unlock := s.lock(statementID)
	defer unlock()

	stmt, err := s.stmtRepo.GetByID(statementID)
	if err != nil {
		return err
	}
	if stmt.Status != domain.StatementPending && stmt.Status != domain.StatementInProgress {
		return &domain.StateError{StatementID: statementID, Status: stmt.Status, Operation: "cancel"}
	}

	return s.stmtRepo.SetStatus(statementID, domain.StatementCanceled, time.Now().UTC())
}

type matchContext struct {
	candidates       []domain.Transaction
	clearedHere      map[string]bool
	clearedElsewhere map[string]bool
}

// consume removes a matched candidate so one ledger transaction cannot
// absorb two extracted rows in the same run.
func (c *matchContext) consume(idx int) {
	c.candidates = append(c.candidates[:idx], c.candidates[idx+1:]...)
}

func (s *reconciliationService) loadMatchContext(stmt *domain.BankStatement) (*matchContext, error) {
	// The candidate window extends past the period by the date tolerance
	// so rows posted near the boundary still match.
	pad := time.Duration(s.engine.ToleranceDays()) * 24 * time.Hour
	candidates, err := s.txRepo.GetByAccountAndDateRange(stmt.AccountID, stmt.PeriodStart.Add(-pad), stmt.PeriodEnd.Add(pad))
	if err != nil {
		return nil, err
	}

	clearedHere, err := s.stmtRepo.GetClearedIDs(stmt.ID)
	if err != nil {
		return nil, err
	}
	clearedElsewhere, err := s.stmtRepo.ClearedElsewhere(stmt.AccountID, stmt.ID)
	if err != nil {
		return nil, err
	}

	return &matchContext{
		candidates:       candidates,
		clearedHere:      clearedHere,
		clearedElsewhere: clearedElsewhere,
	}, nil
}

func (s *reconciliationService) createFromRow(accountID string, row domain.ExtractedRow) (*domain.Transaction, error) {
	tx := &domain.Transaction{
		ID:                   uuid.New().String(),
		AccountID:            accountID,
		Date:                 row.Date,
		Payee:                row.Payee,
		Description:          row.Description,
		Amount:               row.Amount,
		Source:               domain.SourcePDFStatement,
		ReviewStatus:         domain.ReviewPending,
		ReconciliationStatus: domain.Unreconciled,
	}
	tx.SourceHash = importer.SourceHash(*tx)

	if err := s.txRepo.Create(tx); err != nil {
		return nil, fmt.Errorf("failed to create transaction from statement row: %w", err)
	}
	return tx, nil
}

// mutable guards the statement state machine: reconciled and canceled
// statements accept no further mutation.
func mutable(stmt *domain.BankStatement, operation string) error {
	if stmt.Status == domain.StatementReconciled || stmt.Status == domain.StatementCanceled {
		return &domain.StateError{StatementID: stmt.ID, Status: stmt.Status, Operation: operation}
	}
	return nil
}
