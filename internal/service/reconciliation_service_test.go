package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Edmaione/Terrain-Financials-sub001/internal/domain"
)

type reconFixture struct {
	store   *memStore
	service ReconciliationService
}

func newReconFixture(t *testing.T) *reconFixture {
	t.Helper()
	store := newMemStore()
	return &reconFixture{
		store: store,
		service: NewReconciliationService(
			&fakeAccountRepo{store: store},
			&fakeTransactionRepo{store: store},
			&fakeStatementRepo{store: store},
			3,
		),
	}
}

func (f *reconFixture) addAccount(id string, accountType domain.AccountType) {
	f.store.accounts[id] = domain.Account{ID: id, Name: id, Type: accountType, Active: true}
}

func (f *reconFixture) addTx(id, accountID string, date time.Time, amount string) {
	f.store.transactions[id] = domain.Transaction{
		ID:                   id,
		AccountID:            accountID,
		Date:                 date,
		Amount:               decimal.RequireFromString(amount),
		Source:               domain.SourceCSV,
		ReconciliationStatus: domain.Unreconciled,
	}
}

func statementDay(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func (f *reconFixture) createStatement(t *testing.T, beginning, ending string) *domain.BankStatement {
	t.Helper()
	stmt, err := f.service.CreateStatement(
		"acct-1", statementDay(1), statementDay(30),
		decimal.RequireFromString(beginning), decimal.RequireFromString(ending), nil,
	)
	require.NoError(t, err)
	return stmt
}

func TestCreateStatement_Pending(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)

	stmt := f.createStatement(t, "1000.00", "1200.00")

	assert.Equal(t, domain.StatementPending, stmt.Status)
	assert.True(t, stmt.BeginningBalance.Equal(decimal.RequireFromString("1000.00")))
	assert.True(t, stmt.EndingBalance.Equal(decimal.RequireFromString("1200.00")))
}

func TestCreateStatement_CreditCardBalancesNormalized(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.CreditCard)

	stmt := f.createStatement(t, "500.00", "650.00")

	assert.True(t, stmt.BeginningBalance.Equal(decimal.RequireFromString("-500.00")))
	assert.True(t, stmt.EndingBalance.Equal(decimal.RequireFromString("-650.00")))
}

func TestCreateStatement_InvalidPeriod(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)

	_, err := f.service.CreateStatement("acct-1", statementDay(30), statementDay(1), decimal.Zero, decimal.Zero, nil)

	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCreateStatement_UnknownAccount(t *testing.T) {
	f := newReconFixture(t)

	_, err := f.service.CreateStatement("nope", statementDay(1), statementDay(30), decimal.Zero, decimal.Zero, nil)

	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestClear_AdvancesPendingToInProgress(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)
	f.addTx("tx-1", "acct-1", statementDay(5), "-45.10")
	stmt := f.createStatement(t, "1000.00", "954.90")

	require.NoError(t, f.service.Clear(stmt.ID, []string{"tx-1"}, ActionClear))

	assert.Equal(t, domain.StatementInProgress, f.store.statements[stmt.ID].Status)
	assert.Equal(t, domain.Cleared, f.store.transactions["tx-1"].ReconciliationStatus)
}

func TestClear_UnclearReverts(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)
	f.addTx("tx-1", "acct-1", statementDay(5), "-45.10")
	stmt := f.createStatement(t, "1000.00", "954.90")

	require.NoError(t, f.service.Clear(stmt.ID, []string{"tx-1"}, ActionClear))
	require.NoError(t, f.service.Clear(stmt.ID, []string{"tx-1"}, ActionUnclear))

	assert.Equal(t, domain.Unreconciled, f.store.transactions["tx-1"].ReconciliationStatus)
	cleared, _ := (&fakeStatementRepo{store: f.store}).GetClearedIDs(stmt.ID)
	assert.Empty(t, cleared)
}

func TestClear_Validation(t *testing.T) {
	f := newReconFixture(t)

	var verr *domain.ValidationError
	assert.ErrorAs(t, f.service.Clear("stmt-1", nil, ActionClear), &verr)
	assert.ErrorAs(t, f.service.Clear("stmt-1", []string{"tx-1"}, "bogus"), &verr)
}

func TestClear_RejectedOnReconciledStatement(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)
	stmt := f.createStatement(t, "1000.00", "1000.00")

	_, err := f.service.Reconcile(stmt.ID)
	require.NoError(t, err)

	var stateErr *domain.StateError
	assert.ErrorAs(t, f.service.Clear(stmt.ID, []string{"tx-1"}, ActionClear), &stateErr)
}

func TestSummarize_MissingStatementIsNilNil(t *testing.T) {
	f := newReconFixture(t)

	summary, err := f.service.Summarize("missing")

	assert.NoError(t, err)
	assert.Nil(t, summary)
}

func TestSummarize_Totals(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)
	f.addTx("tx-1", "acct-1", statementDay(5), "300.00")
	f.addTx("tx-2", "acct-1", statementDay(10), "-100.00")
	f.addTx("tx-3", "acct-1", statementDay(12), "-55.00") // stays uncleared
	stmt := f.createStatement(t, "1000.00", "1200.00")

	require.NoError(t, f.service.Clear(stmt.ID, []string{"tx-1", "tx-2"}, ActionClear))

	summary, err := f.service.Summarize(stmt.ID)
	require.NoError(t, err)

	assert.True(t, summary.ClearedTotal.Equal(decimal.RequireFromString("200.00")))
	assert.True(t, summary.EndingComputed.Equal(decimal.RequireFromString("1200.00")))
	assert.True(t, summary.Difference.IsZero())
	assert.Len(t, summary.Transactions, 3)
}

func TestSummarize_IncludesClearedOutsidePeriod(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)
	f.addTx("tx-out", "acct-1", statementDay(1).AddDate(0, -2, 0), "-50.00")
	stmt := f.createStatement(t, "1000.00", "950.00")

	require.NoError(t, f.service.Clear(stmt.ID, []string{"tx-out"}, ActionClear))

	summary, err := f.service.Summarize(stmt.ID)
	require.NoError(t, err)

	assert.True(t, summary.ClearedTotal.Equal(decimal.RequireFromString("-50.00")))
	assert.True(t, summary.Difference.IsZero())
}

func TestReconcile_Success(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)
	f.addTx("tx-1", "acct-1", statementDay(5), "300.00")
	f.addTx("tx-2", "acct-1", statementDay(10), "-100.00")
	stmt := f.createStatement(t, "1000.00", "1200.00")
	require.NoError(t, f.service.Clear(stmt.ID, []string{"tx-1", "tx-2"}, ActionClear))

	summary, err := f.service.Reconcile(stmt.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatementReconciled, summary.Statement.Status)
	assert.NotNil(t, summary.Statement.ReconciledAt)
	assert.Equal(t, domain.Reconciled, f.store.transactions["tx-1"].ReconciliationStatus)
	assert.Equal(t, domain.Reconciled, f.store.transactions["tx-2"].ReconciliationStatus)
}

func TestReconcile_PendingStatementAdvancesThroughInProgress(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)
	stmt := f.createStatement(t, "1000.00", "1000.00")
	require.Equal(t, domain.StatementPending, stmt.Status)

	// Nothing to clear: the statement balances while still pending, but it
	// must pass through in_progress on its way to reconciled.
	summary, err := f.service.Reconcile(stmt.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.StatementReconciled, summary.Statement.Status)
	assert.Equal(t, domain.StatementReconciled, f.store.statements[stmt.ID].Status)
	assert.NotNil(t, summary.Statement.ReconciledAt)
	assert.Equal(t, []domain.StatementStatus{domain.StatementInProgress, domain.StatementReconciled}, f.store.statusLog[stmt.ID])
}

func TestReconcile_MismatchMutatesNothing(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)
	f.addTx("tx-1", "acct-1", statementDay(5), "150.00")
	stmt := f.createStatement(t, "1000.00", "1200.00")
	require.NoError(t, f.service.Clear(stmt.ID, []string{"tx-1"}, ActionClear))

	_, err := f.service.Reconcile(stmt.ID)

	var mismatch *domain.ReconciliationMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.True(t, mismatch.Difference.Equal(decimal.RequireFromString("50.00")))

	assert.Equal(t, domain.StatementInProgress, f.store.statements[stmt.ID].Status)
	assert.Equal(t, domain.Cleared, f.store.transactions["tx-1"].ReconciliationStatus)
}

func TestReconcile_WithinTolerance(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)
	f.addTx("tx-1", "acct-1", statementDay(5), "200.004")
	stmt := f.createStatement(t, "1000.00", "1200.00")
	require.NoError(t, f.service.Clear(stmt.ID, []string{"tx-1"}, ActionClear))

	_, err := f.service.Reconcile(stmt.ID)
	assert.NoError(t, err, "a difference under half a cent still reconciles")
}

func TestReconcile_MissingStatement(t *testing.T) {
	f := newReconFixture(t)

	_, err := f.service.Reconcile("missing")

	var notFound *domain.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestReconcile_Twice(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)
	stmt := f.createStatement(t, "1000.00", "1000.00")

	_, err := f.service.Reconcile(stmt.ID)
	require.NoError(t, err)

	_, err = f.service.Reconcile(stmt.ID)
	var stateErr *domain.StateError
	assert.ErrorAs(t, err, &stateErr)
}

func TestCancel_StateMachine(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)
	stmt := f.createStatement(t, "1000.00", "1000.00")

	require.NoError(t, f.service.Cancel(stmt.ID))
	assert.Equal(t, domain.StatementCanceled, f.store.statements[stmt.ID].Status)

	var stateErr *domain.StateError
	assert.ErrorAs(t, f.service.Cancel(stmt.ID), &stateErr, "cancel is terminal")
}

func TestCancel_RejectedAfterReconcile(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)
	stmt := f.createStatement(t, "1000.00", "1000.00")
	_, err := f.service.Reconcile(stmt.ID)
	require.NoError(t, err)

	var stateErr *domain.StateError
	assert.ErrorAs(t, f.service.Cancel(stmt.ID), &stateErr)
}

func extracted(d int, amount string) domain.ExtractedRow {
	return domain.ExtractedRow{Date: statementDay(d), Amount: decimal.RequireFromString(amount)}
}

func TestMatchExtracted_MatchesAndResidue(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)
	f.addTx("tx-1", "acct-1", statementDay(5), "-45.10")
	f.addTx("tx-2", "acct-1", statementDay(10), "2000.00")
	stmt := f.createStatement(t, "1000.00", "2954.90")

	rows := []domain.ExtractedRow{
		extracted(5, "-45.10"),
		extracted(11, "2000.00"), // one day off, within tolerance
		extracted(20, "-9.99"),   // no counterpart
	}

	result, err := f.service.MatchExtracted(stmt.ID, rows, false)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Matched)
	assert.Equal(t, 0, result.Created)
	assert.Len(t, result.Unmatched, 1)
	assert.Equal(t, domain.StatementInProgress, f.store.statements[stmt.ID].Status)
	assert.Len(t, f.store.statements[stmt.ID].Unmatched, 1)
}

func TestMatchExtracted_CreateMissing(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)
	stmt := f.createStatement(t, "1000.00", "990.01")

	result, err := f.service.MatchExtracted(stmt.ID, []domain.ExtractedRow{extracted(20, "-9.99")}, true)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Matched)
	assert.Equal(t, 1, result.Created)
	assert.Empty(t, result.Unmatched)

	var created *domain.Transaction
	for _, tx := range f.store.transactions {
		tx := tx
		created = &tx
	}
	require.NotNil(t, created)
	assert.Equal(t, domain.SourcePDFStatement, created.Source)
	assert.Equal(t, domain.Cleared, created.ReconciliationStatus)
	assert.NotEmpty(t, created.SourceHash)
}

func TestMatchExtracted_RerunIsIdempotent(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)
	f.addTx("tx-1", "acct-1", statementDay(5), "-45.10")
	stmt := f.createStatement(t, "1000.00", "954.90")
	rows := []domain.ExtractedRow{extracted(5, "-45.10")}

	first, err := f.service.MatchExtracted(stmt.ID, rows, false)
	require.NoError(t, err)
	second, err := f.service.MatchExtracted(stmt.ID, rows, false)
	require.NoError(t, err)

	assert.Equal(t, first.Matched, second.Matched)
	cleared, _ := (&fakeStatementRepo{store: f.store}).GetClearedIDs(stmt.ID)
	assert.Len(t, cleared, 1)
}

func TestMatchExtracted_OneCandidatePerRow(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)
	f.addTx("tx-1", "acct-1", statementDay(5), "-4.50")
	stmt := f.createStatement(t, "100.00", "91.00")

	// Two identical rows but only one ledger transaction: the second row
	// must not reuse the consumed candidate.
	rows := []domain.ExtractedRow{extracted(5, "-4.50"), extracted(5, "-4.50")}

	result, err := f.service.MatchExtracted(stmt.ID, rows, false)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Matched)
	assert.Len(t, result.Unmatched, 1)
}

func TestMatchExtracted_SkipsClearedElsewhere(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)
	f.addTx("tx-1", "acct-1", statementDay(5), "-45.10")

	other := f.createStatement(t, "0", "0")
	require.NoError(t, f.service.Clear(other.ID, []string{"tx-1"}, ActionClear))

	stmt := f.createStatement(t, "1000.00", "954.90")
	result, err := f.service.MatchExtracted(stmt.ID, []domain.ExtractedRow{extracted(5, "-45.10")}, false)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Matched)
	assert.Len(t, result.Unmatched, 1)
}

func TestAutoMatch_PicksUpLateArrivals(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)
	stmt := f.createStatement(t, "1000.00", "954.90")

	result, err := f.service.MatchExtracted(stmt.ID, []domain.ExtractedRow{extracted(5, "-45.10")}, false)
	require.NoError(t, err)
	require.Len(t, result.Unmatched, 1)

	// The counterpart arrives after the first match pass.
	f.addTx("tx-late", "acct-1", statementDay(5), "-45.10")

	matched, err := f.service.AutoMatch(stmt.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, matched)
	assert.Empty(t, f.store.statements[stmt.ID].Unmatched)
}

func TestAutoMatch_NoResidue(t *testing.T) {
	f := newReconFixture(t)
	f.addAccount("acct-1", domain.Checking)
	stmt := f.createStatement(t, "1000.00", "1000.00")

	matched, err := f.service.AutoMatch(stmt.ID)

	assert.NoError(t, err)
	assert.Zero(t, matched)
}
