// Package portfolio derives holdings, performance and valuation views from
// the imported transactions and the persisted price history.
package portfolio

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/domain"
)

// StockRepository handles stock persistence
type StockRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewStockRepository creates a new stock repository
func NewStockRepository(db *sql.DB, log zerolog.Logger) *StockRepository {
	return &StockRepository{
		db:  db,
		log: log.With().Str("repository", "stocks").Logger(),
	}
}

const stockColumns = `id, isin, name, currency, ticker`

func scanStock(row interface{ Scan(...interface{}) error }) (*domain.Stock, error) {
	var s domain.Stock
	if err := row.Scan(&s.ID, &s.ISIN, &s.Name, &s.Currency, &s.Ticker); err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByID returns a stock by id, or nil when it does not exist
func (r *StockRepository) GetByID(id int64) (*domain.Stock, error) {
	s, err := scanStock(r.db.QueryRow(
		`SELECT `+stockColumns+` FROM stocks WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock %d: %w", id, err)
	}
	return s, nil
}

// GetByISIN returns a stock by ISIN, or nil when it does not exist
func (r *StockRepository) GetByISIN(isin string) (*domain.Stock, error) {
	s, err := scanStock(r.db.QueryRow(
		`SELECT `+stockColumns+` FROM stocks WHERE isin = ?`, isin))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock %s: %w", isin, err)
	}
	return s, nil
}

// GetAll returns all stocks ordered by name
func (r *StockRepository) GetAll() ([]domain.Stock, error) {
	rows, err := r.db.Query(`SELECT ` + stockColumns + ` FROM stocks ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list stocks: %w", err)
	}
	defer rows.Close()

	var stocks []domain.Stock
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, *s)
	}
	return stocks, rows.Err()
}

// GetOrCreate returns the stock with the given ISIN, inserting it first when
// missing. Name and currency are only written on insert; later imports never
// overwrite what an earlier one established.
func (r *StockRepository) GetOrCreate(isin, name, currency string) (*domain.Stock, error) {
	existing, err := r.GetByISIN(isin)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	res, err := r.db.Exec(
		`INSERT INTO stocks (isin, name, currency) VALUES (?, ?, ?)`,
		isin, name, currency,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create stock %s: %w", isin, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read stock id: %w", err)
	}

	r.log.Debug().Str("isin", isin).Str("name", name).Msg("Stock created")
	return &domain.Stock{ID: id, ISIN: isin, Name: name, Currency: currency}, nil
}
