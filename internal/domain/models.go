// Package domain provides the core entity types shared across modules.
package domain

import (
	"regexp"
	"strings"
)

// Stock represents an imported security. Ticker starts nil at import time and
// is set once resolution succeeds; it stays cached until explicitly cleared.
type Stock struct {
	ID       int64   `json:"id"`
	ISIN     string  `json:"isin"`
	Name     string  `json:"name"`
	Currency string  `json:"currency"`
	Ticker   *string `json:"ticker,omitempty"`
}

// HasTicker reports whether a ticker symbol has been resolved for this stock
func (s *Stock) HasTicker() bool {
	return s.Ticker != nil && *s.Ticker != ""
}

// Transaction represents a single brokerage trade (buy or sell).
// Negative quantity means a sell.
type Transaction struct {
	ID          int64   `json:"id"`
	StockID     int64   `json:"stock_id"`
	Date        string  `json:"date"` // YYYY-MM-DD
	Quantity    float64 `json:"quantity"`
	Price       float64 `json:"price"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	ImportBatch string  `json:"import_batch,omitempty"`
}

// StockPrice represents a persisted daily OHLCV bar for a stock.
// At most one row exists per (stock, date); rows are never mutated after insert.
type StockPrice struct {
	ID       int64   `json:"id"`
	StockID  int64   `json:"stock_id"`
	Date     string  `json:"date"` // YYYY-MM-DD
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   int64   `json:"volume"`
	Currency string  `json:"currency"`
}

// Index represents a benchmark market index (e.g. S&P 500)
type Index struct {
	ID     int64  `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// IndexPrice represents a daily closing value for a benchmark index
type IndexPrice struct {
	ID      int64   `json:"id"`
	IndexID int64   `json:"index_id"`
	Date    string  `json:"date"` // YYYY-MM-DD
	Close   float64 `json:"close"`
}

// Holding represents the current position in a stock, derived from transactions
type Holding struct {
	Stock             Stock   `json:"stock"`
	Shares            float64 `json:"shares"`
	Invested          float64 `json:"invested"`
	TransactionsCount int     `json:"transactions_count"`
}

// ISIN format: 2-letter country prefix, 9 alphanumeric characters, check digit
var isinPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)

// IsISIN checks whether identifier has a valid ISIN shape.
// It validates structure only, not the Luhn check digit.
func IsISIN(identifier string) bool {
	identifier = strings.TrimSpace(strings.ToUpper(identifier))
	if len(identifier) != 12 {
		return false
	}
	return isinPattern.MatchString(identifier)
}

// CountryPrefix returns the 2-letter country code of an ISIN-shaped
// identifier, or "" when the identifier is malformed.
func CountryPrefix(identifier string) string {
	if !IsISIN(identifier) {
		return ""
	}
	return strings.ToUpper(identifier)[:2]
}
