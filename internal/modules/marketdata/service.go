package marketdata

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Service orchestrates a full market data update: resolve tickers for stocks
// that have none, reconcile price history for held positions, refresh the
// benchmark indices. Each phase degrades independently; a partial update is
// always better than none.
type Service struct {
	db         *sql.DB
	resolver   *Resolver
	reconciler *Reconciler
	indices    *IndexSyncer
	log        zerolog.Logger

	mu      sync.Mutex
	running bool
}

// NewService creates the market data orchestration service
func NewService(db *sql.DB, resolver *Resolver, reconciler *Reconciler, indices *IndexSyncer, log zerolog.Logger) *Service {
	return &Service{
		db:         db,
		resolver:   resolver,
		reconciler: reconciler,
		indices:    indices,
		log:        log.With().Str("component", "marketdata").Logger(),
	}
}

// ErrUpdateRunning is returned when an update is requested while one is in flight
var ErrUpdateRunning = fmt.Errorf("market data update already running")

// UpdateResult summarizes one full update run
type UpdateResult struct {
	TickersResolved int    `json:"tickers_resolved"`
	PricesInserted  int    `json:"prices_inserted"`
	IndexBars       int    `json:"index_bars"`
	Duration        string `json:"duration"`
}

// UpdateAll runs the full update pipeline. Only one update runs at a time;
// a second caller gets ErrUpdateRunning instead of queueing behind the first.
func (s *Service) UpdateAll() (*UpdateResult, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrUpdateRunning
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	started := time.Now()
	result := &UpdateResult{}

	resolved, err := s.ResolveMissingTickers()
	if err != nil {
		s.log.Warn().Err(err).Msg("Ticker resolution pass failed")
	}
	result.TickersResolved = resolved

	prices, err := s.reconciler.UpdateAllPrices()
	if err != nil {
		s.log.Warn().Err(err).Msg("Price update pass failed")
	}
	result.PricesInserted = prices

	indexBars, err := s.indices.SyncAll()
	if err != nil {
		s.log.Warn().Err(err).Msg("Index sync pass failed")
	}
	result.IndexBars = indexBars

	result.Duration = time.Since(started).Round(time.Millisecond).String()
	s.log.Info().
		Int("tickers_resolved", result.TickersResolved).
		Int("prices_inserted", result.PricesInserted).
		Int("index_bars", result.IndexBars).
		Str("duration", result.Duration).
		Msg("Market data update complete")

	return result, nil
}

// ResolveMissingTickers resolves and persists tickers for stocks that have
// none. Stocks that stay unresolved are left untouched and retried on the
// next run. Returns the number of newly resolved stocks.
func (s *Service) ResolveMissingTickers() (int, error) {
	rows, err := s.db.Query(
		`SELECT id, isin, name, currency FROM stocks WHERE ticker IS NULL OR ticker = ''`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to load unresolved stocks: %w", err)
	}

	type pending struct {
		id                   int64
		isin, name, currency string
	}
	var todo []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.isin, &p.name, &p.currency); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan stock: %w", err)
		}
		todo = append(todo, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	resolved := 0
	for _, p := range todo {
		ticker := s.resolver.ResolveTicker(p.isin, p.name, p.currency)
		if ticker == "" {
			s.log.Debug().Str("isin", p.isin).Msg("Stock stays unresolved")
			continue
		}
		_, err := s.db.Exec(`UPDATE stocks SET ticker = ? WHERE id = ?`, ticker, p.id)
		if err != nil {
			return resolved, fmt.Errorf("failed to persist ticker for %s: %w", p.isin, err)
		}
		resolved++
	}

	return resolved, nil
}
