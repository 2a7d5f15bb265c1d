package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
)

// defaultIndices are the benchmarks charted against the portfolio
var defaultIndices = []domain.Index{
	{Symbol: "^GSPC", Name: "S&P 500"},
	{Symbol: "^STOXX50E", Name: "Euro Stoxx 50"},
}

// indexHistoryYears is how far back benchmark history is kept
const indexHistoryYears = 5

// IndexSyncer refreshes benchmark index history. Unlike stock prices, index
// series are replaced wholesale: each successful fetch deletes and rewrites
// the series in one transaction. An empty or failed fetch leaves the
// previously stored series untouched.
type IndexSyncer struct {
	db     *sql.DB
	client historyFetcher
	log    zerolog.Logger
}

// NewIndexSyncer creates an index syncer for the default benchmark set
func NewIndexSyncer(db *sql.DB, client historyFetcher, log zerolog.Logger) *IndexSyncer {
	return &IndexSyncer{
		db:     db,
		client: client,
		log:    log.With().Str("component", "indices").Logger(),
	}
}

// SyncAll refreshes every benchmark index. A per-index failure never halts
// the rest. Returns the total number of stored index bars.
func (s *IndexSyncer) SyncAll() (int, error) {
	total := 0
	for _, idx := range defaultIndices {
		n, err := s.syncIndex(idx)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", idx.Symbol).Msg("Index sync failed")
			continue
		}
		total += n
	}
	s.log.Info().Int("bars", total).Msg("Index sync complete")
	return total, nil
}

// syncIndex fetches the full history window for one index and replaces its
// stored series. Fetch errors are swallowed so stale benchmark data survives
// an upstream outage.
func (s *IndexSyncer) syncIndex(idx domain.Index) (int, error) {
	end := time.Now().UTC()
	start := end.AddDate(-indexHistoryYears, 0, 0)

	bars, err := s.client.GetHistory(idx.Symbol, start, end)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", idx.Symbol).Msg("Index fetch failed, keeping stored series")
		return 0, nil
	}
	if len(bars) == 0 {
		return 0, nil
	}

	indexID, err := s.ensureIndex(idx)
	if err != nil {
		return 0, err
	}

	err = database.WithTransaction(s.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM index_prices WHERE index_id = ?`, indexID); err != nil {
			return fmt.Errorf("failed to clear index prices: %w", err)
		}
		for _, bar := range bars {
			_, err := tx.Exec(
				`INSERT INTO index_prices (index_id, date, close) VALUES (?, ?, ?)`,
				indexID, bar.Date.Format("2006-01-02"), bar.Close,
			)
			if err != nil {
				if isUniqueViolation(err) {
					continue
				}
				return fmt.Errorf("failed to insert index price: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to sync index %s: %w", idx.Symbol, err)
	}

	s.log.Info().Str("symbol", idx.Symbol).Int("bars", len(bars)).Msg("Index series replaced")
	return len(bars), nil
}

// ensureIndex upserts the index row and returns its id
func (s *IndexSyncer) ensureIndex(idx domain.Index) (int64, error) {
	_, err := s.db.Exec(
		`INSERT INTO indices (symbol, name) VALUES (?, ?)
		 ON CONFLICT(symbol) DO UPDATE SET name = excluded.name`,
		idx.Symbol, idx.Name,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert index %s: %w", idx.Symbol, err)
	}

	var id int64
	err = s.db.QueryRow(`SELECT id FROM indices WHERE symbol = ?`, idx.Symbol).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to load index id for %s: %w", idx.Symbol, err)
	}
	return id, nil
}
