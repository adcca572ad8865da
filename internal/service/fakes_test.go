package service

import (
	"sort"
	"sync"
	"time"

	"github.com/Edmaione/Terrain-Financials-sub001/internal/domain"
)

// memStore is a shared in-memory backing store for the fake repositories so
// cross-repository behavior (clearing records, statuses) stays consistent
// within a test.
type memStore struct {
	mu           sync.Mutex
	accounts     map[string]domain.Account
	transactions map[string]domain.Transaction
	statements   map[string]domain.BankStatement
	clearings    map[string]map[string]domain.MatchMethod // statement id -> tx id
	mappings     map[string]domain.AccountImportMapping
	attempts     []domain.ImportAttempt
	reviews      map[string][]string // tx id -> recorded review actions

	// statusLog records each statement's status transitions in order.
	statusLog map[string][]domain.StatementStatus
}

func newMemStore() *memStore {
	return &memStore{
		accounts:     make(map[string]domain.Account),
		transactions: make(map[string]domain.Transaction),
		statements:   make(map[string]domain.BankStatement),
		clearings:    make(map[string]map[string]domain.MatchMethod),
		mappings:     make(map[string]domain.AccountImportMapping),
		reviews:      make(map[string][]string),
		statusLog:    make(map[string][]domain.StatementStatus),
	}
}

type fakeAccountRepo struct{ store *memStore }

func (r *fakeAccountRepo) Create(account *domain.Account) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.accounts[account.ID] = *account
	return nil
}

func (r *fakeAccountRepo) GetByID(id string) (*domain.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	account, ok := r.store.accounts[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "account", ID: id}
	}
	return &account, nil
}

func (r *fakeAccountRepo) List() ([]domain.Account, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	accounts := make([]domain.Account, 0, len(r.store.accounts))
	for _, a := range r.store.accounts {
		accounts = append(accounts, a)
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

type fakeTransactionRepo struct{ store *memStore }

func (r *fakeTransactionRepo) Create(tx *domain.Transaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.transactions[tx.ID] = *tx
	return nil
}

func (r *fakeTransactionRepo) GetByID(id string) (*domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tx, ok := r.store.transactions[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "transaction", ID: id}
	}
	return &tx, nil
}

func (r *fakeTransactionRepo) GetByIDs(ids []string) ([]domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var txs []domain.Transaction
	for _, id := range ids {
		if tx, ok := r.store.transactions[id]; ok {
			txs = append(txs, tx)
		}
	}
	sortTxs(txs)
	return txs, nil
}

func (r *fakeTransactionRepo) GetByAccountAndDateRange(accountID string, start, end time.Time) ([]domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var txs []domain.Transaction
	for _, tx := range r.store.transactions {
		if tx.AccountID == accountID && !tx.Date.Before(start) && !tx.Date.After(end) {
			txs = append(txs, tx)
		}
	}
	sortTxs(txs)
	return txs, nil
}

func (r *fakeTransactionRepo) GetByAccountAndSource(accountID string, source domain.TransactionSource) ([]domain.Transaction, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var txs []domain.Transaction
	for _, tx := range r.store.transactions {
		if tx.AccountID == accountID && tx.Source == source {
			txs = append(txs, tx)
		}
	}
	sortTxs(txs)
	return txs, nil
}

func (r *fakeTransactionRepo) ApplyPlan(inserts, updates []domain.Transaction) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, tx := range inserts {
		if _, exists := r.store.transactions[tx.ID]; !exists {
			r.store.transactions[tx.ID] = tx
		}
	}
	for _, tx := range updates {
		existing, ok := r.store.transactions[tx.ID]
		if !ok {
			continue
		}
		existing.Date = tx.Date
		existing.Payee = tx.Payee
		existing.Description = tx.Description
		existing.Amount = tx.Amount
		existing.SourceID = tx.SourceID
		existing.SourceHash = tx.SourceHash
		r.store.transactions[tx.ID] = existing
	}
	return nil
}

func (r *fakeTransactionRepo) Approve(id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	tx, ok := r.store.transactions[id]
	if !ok {
		return &domain.NotFoundError{Entity: "transaction", ID: id}
	}
	if tx.ReviewStatus == domain.ReviewApproved {
		return nil
	}
	tx.ReviewStatus = domain.ReviewApproved
	r.store.transactions[id] = tx
	r.store.reviews[id] = append(r.store.reviews[id], "approve")
	return nil
}

func sortTxs(txs []domain.Transaction) {
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Date.Equal(txs[j].Date) {
			return txs[i].Date.Before(txs[j].Date)
		}
		return txs[i].ID < txs[j].ID
	})
}

type fakeStatementRepo struct{ store *memStore }

func (r *fakeStatementRepo) Create(stmt *domain.BankStatement) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stmt.CreatedAt = time.Now().UTC()
	stmt.UpdatedAt = stmt.CreatedAt
	r.store.statements[stmt.ID] = *stmt
	return nil
}

func (r *fakeStatementRepo) GetByID(id string) (*domain.BankStatement, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stmt, ok := r.store.statements[id]
	if !ok {
		return nil, &domain.NotFoundError{Entity: "statement", ID: id}
	}
	return &stmt, nil
}

func (r *fakeStatementRepo) SetStatus(id string, status domain.StatementStatus, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stmt, ok := r.store.statements[id]
	if !ok {
		return &domain.NotFoundError{Entity: "statement", ID: id}
	}
	stmt.Status = status
	if status == domain.StatementCanceled {
		stmt.CanceledAt = &at
	}
	stmt.UpdatedAt = at
	r.store.statements[id] = stmt
	r.store.statusLog[id] = append(r.store.statusLog[id], status)
	return nil
}

func (r *fakeStatementRepo) SaveUnmatched(id string, rows []domain.ExtractedRow) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stmt, ok := r.store.statements[id]
	if !ok {
		return &domain.NotFoundError{Entity: "statement", ID: id}
	}
	stmt.Unmatched = rows
	r.store.statements[id] = stmt
	return nil
}

func (r *fakeStatementRepo) SaveExtracted(id string, rows []domain.ExtractedRow) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stmt, ok := r.store.statements[id]
	if !ok {
		return &domain.NotFoundError{Entity: "statement", ID: id}
	}
	stmt.ExtractedData = rows
	r.store.statements[id] = stmt
	return nil
}

func (r *fakeStatementRepo) UpsertClearings(statementID string, transactionIDs []string, method domain.MatchMethod) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cleared := r.store.clearings[statementID]
	if cleared == nil {
		cleared = make(map[string]domain.MatchMethod)
		r.store.clearings[statementID] = cleared
	}
	for _, id := range transactionIDs {
		if _, exists := cleared[id]; !exists {
			cleared[id] = method
		}
		if tx, ok := r.store.transactions[id]; ok && tx.ReconciliationStatus == domain.Unreconciled {
			tx.ReconciliationStatus = domain.Cleared
			r.store.transactions[id] = tx
		}
	}
	return nil
}

func (r *fakeStatementRepo) DeleteClearings(statementID string, transactionIDs []string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	cleared := r.store.clearings[statementID]
	for _, id := range transactionIDs {
		delete(cleared, id)
		stillCleared := false
		for otherID, others := range r.store.clearings {
			if otherID != statementID && others[id] != "" {
				stillCleared = true
			}
		}
		if tx, ok := r.store.transactions[id]; ok && !stillCleared && tx.ReconciliationStatus == domain.Cleared {
			tx.ReconciliationStatus = domain.Unreconciled
			r.store.transactions[id] = tx
		}
	}
	return nil
}

func (r *fakeStatementRepo) GetClearedIDs(statementID string) (map[string]bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ids := make(map[string]bool)
	for id := range r.store.clearings[statementID] {
		ids[id] = true
	}
	return ids, nil
}

func (r *fakeStatementRepo) ClearedElsewhere(accountID, excludeStatementID string) (map[string]bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	ids := make(map[string]bool)
	for stmtID, cleared := range r.store.clearings {
		if stmtID == excludeStatementID {
			continue
		}
		stmt, ok := r.store.statements[stmtID]
		if !ok || stmt.AccountID != accountID {
			continue
		}
		for id := range cleared {
			ids[id] = true
		}
	}
	return ids, nil
}

func (r *fakeStatementRepo) MarkReconciled(statementID string, at time.Time) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stmt, ok := r.store.statements[statementID]
	if !ok || stmt.Status == domain.StatementCanceled {
		return &domain.NotFoundError{Entity: "statement", ID: statementID}
	}
	stmt.Status = domain.StatementReconciled
	stmt.ReconciledAt = &at
	r.store.statements[statementID] = stmt
	r.store.statusLog[statementID] = append(r.store.statusLog[statementID], domain.StatementReconciled)
	for id := range r.store.clearings[statementID] {
		if tx, ok := r.store.transactions[id]; ok {
			tx.ReconciliationStatus = domain.Reconciled
			r.store.transactions[id] = tx
		}
	}
	return nil
}

type fakeMappingRepo struct{ store *memStore }

func (r *fakeMappingRepo) List() ([]domain.AccountImportMapping, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	mappings := make([]domain.AccountImportMapping, 0, len(r.store.mappings))
	for _, m := range r.store.mappings {
		mappings = append(mappings, m)
	}
	sort.Slice(mappings, func(i, j int) bool { return mappings[i].ID < mappings[j].ID })
	return mappings, nil
}

func (r *fakeMappingRepo) GetBySignature(headerSignature string) ([]domain.AccountImportMapping, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var mappings []domain.AccountImportMapping
	for _, m := range r.store.mappings {
		if m.HeaderSignature == headerSignature {
			mappings = append(mappings, m)
		}
	}
	return mappings, nil
}

func (r *fakeMappingRepo) Upsert(mapping *domain.AccountImportMapping) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, m := range r.store.mappings {
		if m.HeaderSignature == mapping.HeaderSignature && m.AccountID == mapping.AccountID {
			m.Confidence = m.Confidence + 0.05
			if m.Confidence > 1.0 {
				m.Confidence = 1.0
			}
			m.UpdatedAt = time.Now().UTC()
			r.store.mappings[m.ID] = m
			*mapping = m
			return nil
		}
	}
	mapping.CreatedAt = time.Now().UTC()
	mapping.UpdatedAt = mapping.CreatedAt
	r.store.mappings[mapping.ID] = *mapping
	return nil
}

func (r *fakeMappingRepo) CreateAttempt(attempt *domain.ImportAttempt) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	attempt.CreatedAt = time.Now().UTC()
	r.store.attempts = append(r.store.attempts, *attempt)
	return nil
}
