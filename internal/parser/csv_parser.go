package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Edmaione/Terrain-Financials-sub001/pkg/logger"
)

// Row is one parsed line of a bank CSV export. Amount carries the file's
// own sign convention unless Signed is set, which means the layout had
// explicit debit/credit columns and direction is already resolved to the
// internal convention (negative = money out).
type Row struct {
	Date        time.Time
	Payee       string
	Description string
	Reference   string // origin-native id when the export carries one
	Amount      decimal.Decimal
	Signed      bool
}

// Column aliases seen across bank exports, checked in order.
var (
	dateColumns        = []string{"date", "transaction_date", "posted_date", "posting_date", "trans_date"}
	amountColumns      = []string{"amount", "transaction_amount"}
	debitColumns       = []string{"debit", "withdrawal", "withdrawals", "money_out"}
	creditColumns      = []string{"credit", "deposit", "deposits", "money_in"}
	payeeColumns       = []string{"payee", "merchant", "name"}
	descriptionColumns = []string{"description", "memo", "details", "narrative"}
	referenceColumns   = []string{"reference", "transaction_id", "trx_id", "ref", "id"}
)

type layout struct {
	date        int
	amount      int
	debit       int
	credit      int
	payee       int
	description int
	reference   int
}

// BankCSVParser implements a streaming parser for bank CSV exports. Rows
// that fail to parse are logged and skipped; the batch callback receives at
// most batchSize rows at a time.
type BankCSVParser struct{}

func NewBankCSVParser() *BankCSVParser {
	return &BankCSVParser{}
}

// Parse reads the export in streaming mode. It returns the raw header row
// alongside any error so callers can fingerprint the layout.
func (p *BankCSVParser) Parse(r io.Reader, batchSize int, callback func([]Row) error) ([]string, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		logger.GetLogger().WithError(err).Error("Failed to read CSV header")
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	lay, err := mapLayout(header)
	if err != nil {
		return header, err
	}

	batch := make([]Row, 0, batchSize)
	lineNumber := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNumber++
		if err != nil {
			logger.GetLogger().WithError(err).WithField("line", lineNumber).Warn("Failed to read CSV row, skipping")
			continue
		}

		row, err := parseRow(record, lay)
		if err != nil {
			logger.GetLogger().WithError(err).WithField("line", lineNumber).Warn("Failed to parse record, skipping")
			continue
		}

		batch = append(batch, *row)

		if len(batch) >= batchSize {
			if err := callback(batch); err != nil {
				return header, err
			}
			batch = make([]Row, 0, batchSize)
		}
	}

	if len(batch) > 0 {
		if err := callback(batch); err != nil {
			return header, err
		}
	}

	return header, nil
}

func mapLayout(header []string) (layout, error) {
	columnMap := make(map[string]int, len(header))
	for i, col := range header {
		normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(col)), " ", "_")
		if _, exists := columnMap[normalized]; !exists {
			columnMap[normalized] = i
		}
	}

	lay := layout{
		date:        findColumn(columnMap, dateColumns),
		amount:      findColumn(columnMap, amountColumns),
		debit:       findColumn(columnMap, debitColumns),
		credit:      findColumn(columnMap, creditColumns),
		payee:       findColumn(columnMap, payeeColumns),
		description: findColumn(columnMap, descriptionColumns),
		reference:   findColumn(columnMap, referenceColumns),
	}

	if lay.date < 0 {
		return lay, fmt.Errorf("invalid CSV format: no date column")
	}
	if lay.amount < 0 && lay.debit < 0 && lay.credit < 0 {
		return lay, fmt.Errorf("invalid CSV format: no amount or debit/credit columns")
	}
	return lay, nil
}

// LayoutRoles resolves the header row into a field-role to source-column
// map, e.g. {"date": "Posting Date", "amount": "Transaction Amount"}. Roles
// the header does not carry are omitted; unrecognizable headers yield an
// empty map.
func LayoutRoles(header []string) map[string]string {
	lay, err := mapLayout(header)
	if err != nil {
		return map[string]string{}
	}

	roles := map[string]string{}
	set := func(role string, index int) {
		if index >= 0 && index < len(header) {
			roles[role] = strings.TrimSpace(header[index])
		}
	}
	set("date", lay.date)
	set("amount", lay.amount)
	set("debit", lay.debit)
	set("credit", lay.credit)
	set("payee", lay.payee)
	set("description", lay.description)
	set("reference", lay.reference)
	return roles
}

func findColumn(columnMap map[string]int, aliases []string) int {
	for _, alias := range aliases {
		if i, ok := columnMap[alias]; ok {
			return i
		}
	}
	return -1
}

func parseRow(record []string, lay layout) (*Row, error) {
	dateStr := field(record, lay.date)
	date, err := ParseDate(dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", dateStr, err)
	}

	row := &Row{
		Date:        date,
		Payee:       field(record, lay.payee),
		Description: field(record, lay.description),
		Reference:   field(record, lay.reference),
	}

	if lay.amount >= 0 {
		amountStr := field(record, lay.amount)
		amount, err := decimal.NewFromString(cleanAmount(amountStr))
		if err != nil {
			return nil, fmt.Errorf("invalid amount %q: %w", amountStr, err)
		}
		row.Amount = amount
		return row, nil
	}

	// Debit/credit pair: the layout itself resolves direction, so the row
	// must not be sign-normalized again downstream.
	debit, err := optionalAmount(field(record, lay.debit))
	if err != nil {
		return nil, fmt.Errorf("invalid debit: %w", err)
	}
	credit, err := optionalAmount(field(record, lay.credit))
	if err != nil {
		return nil, fmt.Errorf("invalid credit: %w", err)
	}
	if debit.IsZero() && credit.IsZero() {
		return nil, fmt.Errorf("row has neither debit nor credit")
	}

	row.Amount = credit.Sub(debit)
	row.Signed = true
	return row, nil
}

func field(record []string, index int) string {
	if index < 0 || index >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[index])
}

func optionalAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(cleanAmount(s))
}

// cleanAmount strips currency symbols, thousands separators and the
// parenthesized-negative notation some exports use
func cleanAmount(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		s = "-" + strings.TrimPrefix(s[1:len(s)-1], "$")
	}
	return s
}

// ParseDate tries the date formats seen across bank exports
func ParseDate(dateStr string) (time.Time, error) {
	formats := []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		"01/02/2006",
		"1/2/2006",
		"2006/01/02",
		time.RFC3339,
	}

	for _, format := range formats {
		if t, err := time.Parse(format, dateStr); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}
