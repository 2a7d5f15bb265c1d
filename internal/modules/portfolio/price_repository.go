package portfolio

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/domain"
)

// PriceRepository reads the persisted price history for stocks and indices.
// Writing price rows is the reconciler's job; this repository only queries.
type PriceRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("repository", "prices").Logger(),
	}
}

// GetByStock returns all price bars for a stock, oldest first
func (r *PriceRepository) GetByStock(stockID int64) ([]domain.StockPrice, error) {
	rows, err := r.db.Query(
		`SELECT id, stock_id, date, COALESCE(open, 0), COALESCE(high, 0), COALESCE(low, 0),
		        close, COALESCE(volume, 0), COALESCE(currency, '')
		 FROM stock_prices WHERE stock_id = ? ORDER BY date`,
		stockID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list prices for stock %d: %w", stockID, err)
	}
	defer rows.Close()

	var prices []domain.StockPrice
	for rows.Next() {
		var p domain.StockPrice
		err := rows.Scan(&p.ID, &p.StockID, &p.Date, &p.Open, &p.High, &p.Low,
			&p.Close, &p.Volume, &p.Currency)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price: %w", err)
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

// GetLatestClose returns the most recent close for a stock, or nil when the
// stock has no price history.
func (r *PriceRepository) GetLatestClose(stockID int64) (*domain.StockPrice, error) {
	var p domain.StockPrice
	err := r.db.QueryRow(
		`SELECT id, stock_id, date, close FROM stock_prices
		 WHERE stock_id = ? ORDER BY date DESC LIMIT 1`,
		stockID,
	).Scan(&p.ID, &p.StockID, &p.Date, &p.Close)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price for stock %d: %w", stockID, err)
	}
	return &p, nil
}

// CloseSeries returns date → close for a stock, oldest first as a slice of
// (date, close) pairs so callers keep the ordering.
func (r *PriceRepository) CloseSeries(stockID int64) ([]domain.StockPrice, error) {
	rows, err := r.db.Query(
		`SELECT date, close FROM stock_prices WHERE stock_id = ? ORDER BY date`,
		stockID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load close series for stock %d: %w", stockID, err)
	}
	defer rows.Close()

	var series []domain.StockPrice
	for rows.Next() {
		p := domain.StockPrice{StockID: stockID}
		if err := rows.Scan(&p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan close: %w", err)
		}
		series = append(series, p)
	}
	return series, rows.Err()
}

// IndexSeries returns the stored close series for a benchmark index symbol,
// oldest first. An unknown symbol yields an empty series.
func (r *PriceRepository) IndexSeries(symbol string) ([]domain.IndexPrice, error) {
	rows, err := r.db.Query(`
		SELECT ip.id, ip.index_id, ip.date, ip.close
		FROM index_prices ip
		JOIN indices i ON i.id = ip.index_id
		WHERE i.symbol = ?
		ORDER BY ip.date
	`, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to load index series for %s: %w", symbol, err)
	}
	defer rows.Close()

	var series []domain.IndexPrice
	for rows.Next() {
		var p domain.IndexPrice
		if err := rows.Scan(&p.ID, &p.IndexID, &p.Date, &p.Close); err != nil {
			return nil, fmt.Errorf("failed to scan index price: %w", err)
		}
		series = append(series, p)
	}
	return series, rows.Err()
}

// ListIndices returns the stored benchmark indices
func (r *PriceRepository) ListIndices() ([]domain.Index, error) {
	rows, err := r.db.Query(`SELECT id, symbol, name FROM indices ORDER BY symbol`)
	if err != nil {
		return nil, fmt.Errorf("failed to list indices: %w", err)
	}
	defer rows.Close()

	var indices []domain.Index
	for rows.Next() {
		var idx domain.Index
		if err := rows.Scan(&idx.ID, &idx.Symbol, &idx.Name); err != nil {
			return nil, fmt.Errorf("failed to scan index: %w", err)
		}
		indices = append(indices, idx)
	}
	return indices, rows.Err()
}
