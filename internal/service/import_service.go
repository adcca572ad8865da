package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Edmaione/Terrain-Financials-sub001/internal/detect"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/domain"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/fingerprint"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/importer"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/normalize"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/parser"
	"github.com/Edmaione/Terrain-Financials-sub001/internal/repository"
	"github.com/Edmaione/Terrain-Financials-sub001/pkg/logger"
)

// detectionThreshold is the minimum confidence at which an import may
// proceed on a detected account without the caller naming one.
const detectionThreshold = 0.75

type ImportRequest struct {
	AccountID string
	CSVText   string
	Filename  string
	Source    domain.TransactionSource
}

type ImportResult struct {
	ImportID    string           `json:"import_id"`
	AccountID   string           `json:"account_id"`
	Detection   domain.Detection `json:"detection"`
	Fingerprint string           `json:"fingerprint"`
	Signature   string           `json:"signature"`
	Parsed      int              `json:"parsed"`
	Inserted    int              `json:"inserted"`
	Updated     int              `json:"updated"`
}

type DetectResult struct {
	Detection   domain.Detection `json:"detection"`
	Fingerprint string           `json:"fingerprint"`
	Signature   string           `json:"signature"`
}

type ImportService interface {
	Detect(csvText string) (*DetectResult, error)
	Import(req ImportRequest) (*ImportResult, error)
	ConfirmMapping(accountID, headerSignature string) (*domain.AccountImportMapping, error)
	ListMappings() ([]domain.AccountImportMapping, error)
}

type importService struct {
	accountRepo repository.AccountRepository
	txRepo      repository.TransactionRepository
	mappingRepo repository.MappingRepository
	parser      *parser.BankCSVParser
	batchSize   int
}

func NewImportService(
	accountRepo repository.AccountRepository,
	txRepo repository.TransactionRepository,
	mappingRepo repository.MappingRepository,
	batchSize int,
) ImportService {
	return &importService{
		accountRepo: accountRepo,
		txRepo:      txRepo,
		mappingRepo: mappingRepo,
		parser:      parser.NewBankCSVParser(),
		batchSize:   batchSize,
	}
}

// Detect fingerprints the file layout and proposes an owning account
// without ingesting anything.
func (s *importService) Detect(csvText string) (*DetectResult, error) {
	headers, sample := parser.ReadLayout(csvText, fingerprint.DefaultSampleSize)
	fp := fingerprint.Fingerprint(headers)
	sig := fingerprint.Signature(headers, sample, fingerprint.DefaultSampleSize)

	accounts, err := s.accountRepo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	mappings, key, err := s.lookupMappings(fp, sig)
	if err != nil {
		return nil, fmt.Errorf("failed to load mappings: %w", err)
	}

	detection := detect.Detect(csvText, accounts, mappings, key)

	return &DetectResult{
		Detection:   detection,
		Fingerprint: fp,
		Signature:   sig,
	}, nil
}

// lookupMappings loads the stored mappings for this layout. The coarse
// header fingerprint is preferred; when it points at more than one account,
// the finer content signature disambiguates.
func (s *importService) lookupMappings(fp, sig string) ([]domain.AccountImportMapping, string, error) {
	mappings, err := s.mappingRepo.GetBySignature(fp)
	if err != nil {
		return nil, "", err
	}

	accounts := make(map[string]bool)
	for _, m := range mappings {
		accounts[m.AccountID] = true
	}
	if len(accounts) <= 1 {
		return mappings, fp, nil
	}

	fine, err := s.mappingRepo.GetBySignature(sig)
	if err != nil {
		return nil, "", err
	}
	return fine, sig, nil
}

func (s *importService) Import(req ImportRequest) (*ImportResult, error) {
	if strings.TrimSpace(req.CSVText) == "" {
		return nil, &domain.ValidationError{Field: "csv_text", Reason: "must not be empty"}
	}
	if req.Source == "" {
		req.Source = domain.SourceCSV
	}

	detected, err := s.Detect(req.CSVText)
	if err != nil {
		return nil, err
	}

	accountID := req.AccountID
	if accountID == "" {
		if detected.Detection.SuggestedAccountID == "" || detected.Detection.Confidence < detectionThreshold {
			return nil, &domain.ValidationError{
				Field:  "account_id",
				Reason: fmt.Sprintf("account could not be detected (method %s, confidence %.2f); specify one", detected.Detection.Method, detected.Detection.Confidence),
			}
		}
		accountID = detected.Detection.SuggestedAccountID
	}

	account, err := s.accountRepo.GetByID(accountID)
	if err != nil {
		return nil, err
	}

	importID := uuid.New().String()
	log := logger.GetLogger().WithFields(map[string]interface{}{
		"import_id":  importID,
		"account_id": account.ID,
		"filename":   req.Filename,
	})
	log.Info("Starting import")

	incoming, header, parsed, err := s.parseRows(req, account)
	if err != nil {
		return nil, err
	}

	existing, err := s.txRepo.GetByAccountAndSource(account.ID, req.Source)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing transactions: %w", err)
	}

	plan := importer.BuildPlan(incoming, existing)
	if err := s.txRepo.ApplyPlan(plan.Inserts, plan.Updates); err != nil {
		return nil, fmt.Errorf("failed to apply import plan: %w", err)
	}

	attempt := &domain.ImportAttempt{
		ID:                uuid.New().String(),
		ImportID:          importID,
		AccountID:         account.ID,
		HeaderFingerprint: detected.Fingerprint,
		MappingID:         detected.Detection.MappingID,
		Mapping:           parser.LayoutRoles(header),
		Method:            detected.Detection.Method,
		Filename:          req.Filename,
	}
	if err := s.mappingRepo.CreateAttempt(attempt); err != nil {
		log.WithError(err).Error("Failed to record import attempt")
	}

	log.WithField("plan", plan.Describe()).Info("Import completed")

	return &ImportResult{
		ImportID:    importID,
		AccountID:   account.ID,
		Detection:   detected.Detection,
		Fingerprint: detected.Fingerprint,
		Signature:   detected.Signature,
		Parsed:      parsed,
		Inserted:    len(plan.Inserts),
		Updated:     len(plan.Updates),
	}, nil
}

// parseRows streams the CSV and builds normalized incoming transactions.
// Sign normalization happens exactly here, once per value; rows whose
// layout already resolved direction (debit/credit pairs) are left alone.
func (s *importService) parseRows(req ImportRequest, account *domain.Account) ([]domain.Transaction, []string, int, error) {
	var incoming []domain.Transaction
	parsed := 0

	header, err := s.parser.Parse(strings.NewReader(req.CSVText), s.batchSize, func(batch []parser.Row) error {
		for _, row := range batch {
			amount := row.Amount
			if !row.Signed {
				amount = normalize.Amount(amount, account.Type)
			}

			tx := domain.Transaction{
				ID:                   uuid.New().String(),
				AccountID:            account.ID,
				Date:                 row.Date,
				Payee:                row.Payee,
				Description:          row.Description,
				Amount:               amount,
				Source:               req.Source,
				SourceID:             row.Reference,
				ReviewStatus:         domain.ReviewPending,
				ReconciliationStatus: domain.Unreconciled,
			}
			tx.SourceHash = importer.SourceHash(tx)
			incoming = append(incoming, tx)
			parsed++
		}
		return nil
	})
	if err != nil {
		return nil, nil, 0, &domain.ValidationError{Field: "csv_text", Reason: err.Error()}
	}

	return incoming, header, parsed, nil
}

// ConfirmMapping records a user-confirmed layout association so future
// detections trust it ahead of any heuristic. Confirming the same pair
// again reinforces its confidence weight.
func (s *importService) ConfirmMapping(accountID, headerSignature string) (*domain.AccountImportMapping, error) {
	if headerSignature == "" {
		return nil, &domain.ValidationError{Field: "header_signature", Reason: "must not be empty"}
	}

	account, err := s.accountRepo.GetByID(accountID)
	if err != nil {
		return nil, err
	}

	mapping := &domain.AccountImportMapping{
		ID:              uuid.New().String(),
		AccountID:       account.ID,
		HeaderSignature: headerSignature,
		Institution:     optional(account.Institution),
		AccountNumber:   optional(account.AccountNumber),
		Last4:           optional(account.Last4),
		Confidence:      0.9,
	}
	if err := s.mappingRepo.Upsert(mapping); err != nil {
		return nil, err
	}

	logger.GetLogger().WithFields(map[string]interface{}{
		"account_id":       account.ID,
		"header_signature": headerSignature,
		"confidence":       mapping.Confidence,
	}).Info("Mapping confirmed")

	return mapping, nil
}

// ListMappings returns every stored layout association, strongest first.
func (s *importService) ListMappings() ([]domain.AccountImportMapping, error) {
	return s.mappingRepo.List()
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
