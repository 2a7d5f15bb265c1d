// Package maintenance holds destructive admin operations: purging the store
// and backing up the database.
package maintenance

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/database"
)

// PurgeResult reports exactly how many rows each entity lost
type PurgeResult struct {
	Stocks       int64 `json:"stocks"`
	Transactions int64 `json:"transactions"`
	StockPrices  int64 `json:"stock_prices"`
	Indices      int64 `json:"indices"`
	IndexPrices  int64 `json:"index_prices"`
	CacheEntries int64 `json:"cache_entries"`
}

// Total is the sum of all deleted rows
func (r *PurgeResult) Total() int64 {
	return r.Stocks + r.Transactions + r.StockPrices + r.Indices + r.IndexPrices + r.CacheEntries
}

// Purger wipes all portfolio data
type Purger struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPurger creates a purger
func NewPurger(db *sql.DB, log zerolog.Logger) *Purger {
	return &Purger{
		db:  db,
		log: log.With().Str("component", "purge").Logger(),
	}
}

// Purge deletes every row of every entity in a single transaction and
// reports per-entity counts. Running it against an empty store succeeds
// with all zeros. Child tables go first so foreign keys never complain.
func (p *Purger) Purge() (*PurgeResult, error) {
	result := &PurgeResult{}

	err := database.WithTransaction(p.db, func(tx *sql.Tx) error {
		steps := []struct {
			table string
			count *int64
		}{
			{"transactions", &result.Transactions},
			{"stock_prices", &result.StockPrices},
			{"index_prices", &result.IndexPrices},
			{"stocks", &result.Stocks},
			{"indices", &result.Indices},
			{"market_data_cache", &result.CacheEntries},
		}
		for _, step := range steps {
			res, err := tx.Exec("DELETE FROM " + step.table)
			if err != nil {
				return fmt.Errorf("failed to purge %s: %w", step.table, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to count purged %s rows: %w", step.table, err)
			}
			*step.count = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.log.Info().
		Int64("stocks", result.Stocks).
		Int64("transactions", result.Transactions).
		Int64("stock_prices", result.StockPrices).
		Int64("indices", result.Indices).
		Int64("index_prices", result.IndexPrices).
		Msg("Database purged")

	return result, nil
}
