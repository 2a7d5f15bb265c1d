// Package importer parses brokerage CSV transaction exports into the store.
// Stocks are created the first time an ISIN appears; transactions append.
// Re-importing the same export is idempotent: rows that already exist are
// counted as duplicates, not inserted twice.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/portfolio"
)

// Expected CSV header columns, matched case-insensitively by name so column
// order in the export does not matter.
const (
	colDate     = "date"
	colISIN     = "isin"
	colName     = "product"
	colQuantity = "quantity"
	colPrice    = "price"
	colCurrency = "currency"
	colAmount   = "amount"
)

// Result summarizes one import run
type Result struct {
	BatchID       string `json:"batch_id"`
	Imported      int    `json:"imported"`
	Duplicates    int    `json:"duplicates"`
	Skipped       int    `json:"skipped"`
	StocksCreated int    `json:"stocks_created"`
}

// Importer parses CSV exports into stocks and transactions
type Importer struct {
	stocks       *portfolio.StockRepository
	transactions *portfolio.TransactionRepository
	log          zerolog.Logger
}

// NewImporter creates a CSV importer
func NewImporter(stocks *portfolio.StockRepository, transactions *portfolio.TransactionRepository, log zerolog.Logger) *Importer {
	return &Importer{
		stocks:       stocks,
		transactions: transactions,
		log:          log.With().Str("component", "importer").Logger(),
	}
}

// Import reads a CSV export and persists its rows. Malformed rows are
// skipped and counted; a malformed header is an error because nothing can
// be imported from it.
func (i *Importer) Import(r io.Reader) (*Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	result := &Result{BatchID: uuid.New().String()}
	seenStocks := make(map[string]bool)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Skipped++
			continue
		}

		row, err := parseRow(record, cols)
		if err != nil {
			i.log.Debug().Err(err).Msg("Skipping malformed row")
			result.Skipped++
			continue
		}

		stock, err := i.stocks.GetByISIN(row.isin)
		if err != nil {
			return nil, err
		}
		if stock == nil {
			stock, err = i.stocks.GetOrCreate(row.isin, row.name, row.currency)
			if err != nil {
				return nil, err
			}
			if !seenStocks[row.isin] {
				result.StocksCreated++
			}
		}
		seenStocks[row.isin] = true

		exists, err := i.transactions.Exists(stock.ID, row.date, row.quantity, row.amount)
		if err != nil {
			return nil, err
		}
		if exists {
			result.Duplicates++
			continue
		}

		_, err = i.transactions.Insert(&domain.Transaction{
			StockID:     stock.ID,
			Date:        row.date,
			Quantity:    row.quantity,
			Price:       row.price,
			Amount:      row.amount,
			Currency:    row.currency,
			ImportBatch: result.BatchID,
		})
		if err != nil {
			return nil, err
		}
		result.Imported++
	}

	i.log.Info().
		Str("batch_id", result.BatchID).
		Int("imported", result.Imported).
		Int("duplicates", result.Duplicates).
		Int("skipped", result.Skipped).
		Msg("Import complete")

	return result, nil
}

type parsedRow struct {
	date     string
	isin     string
	name     string
	quantity float64
	price    float64
	amount   float64
	currency string
}

// mapColumns resolves header names to indices. Date, ISIN and quantity are
// required; the rest degrade to zero values when absent.
func mapColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for idx, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = idx
	}
	for _, required := range []string{colDate, colISIN, colQuantity} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("CSV header missing required column %q", required)
		}
	}
	return cols, nil
}

func parseRow(record []string, cols map[string]int) (*parsedRow, error) {
	field := func(name string) string {
		idx, ok := cols[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	row := &parsedRow{
		isin:     strings.ToUpper(field(colISIN)),
		name:     field(colName),
		currency: field(colCurrency),
	}
	if row.currency == "" {
		row.currency = "EUR"
	}

	var err error
	row.date, err = normalizeDate(field(colDate))
	if err != nil {
		return nil, err
	}
	if !domain.IsISIN(row.isin) {
		return nil, fmt.Errorf("invalid ISIN %q", row.isin)
	}

	row.quantity, err = parseNumber(field(colQuantity))
	if err != nil {
		return nil, fmt.Errorf("invalid quantity: %w", err)
	}
	if row.quantity == 0 {
		return nil, fmt.Errorf("zero quantity")
	}

	if v := field(colPrice); v != "" {
		if row.price, err = parseNumber(v); err != nil {
			return nil, fmt.Errorf("invalid price: %w", err)
		}
	}
	if v := field(colAmount); v != "" {
		if row.amount, err = parseNumber(v); err != nil {
			return nil, fmt.Errorf("invalid amount: %w", err)
		}
	} else {
		// brokers report cash flow negative on buys
		row.amount = -row.quantity * row.price
	}

	return row, nil
}

// normalizeDate accepts YYYY-MM-DD and the DD-MM-YYYY form DEGIRO exports use
func normalizeDate(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty date")
	}
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return "", fmt.Errorf("unrecognized date %q", s)
	}
	if len(parts[0]) == 4 {
		return s, nil
	}
	if len(parts[2]) == 4 {
		return parts[2] + "-" + pad2(parts[1]) + "-" + pad2(parts[0]), nil
	}
	return "", fmt.Errorf("unrecognized date %q", s)
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// parseNumber handles both decimal point and the comma some exports use
func parseNumber(s string) (float64, error) {
	s = strings.ReplaceAll(s, ",", ".")
	return strconv.ParseFloat(s, 64)
}
