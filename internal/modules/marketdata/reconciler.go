package marketdata

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/clients/yahoo"
	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
)

// historyFetcher is the slice of the market data source the reconciler needs
type historyFetcher interface {
	GetHistory(symbol string, start, end time.Time) ([]yahoo.Bar, error)
}

// Reconciler merges fetched OHLCV bars into the persisted price history.
// Existing (stock, date) rows are never touched; each reconciliation call
// inserts its missing bars in a single transaction. The UNIQUE(stock_id, date)
// constraint is the backstop against concurrent reconcilers.
type Reconciler struct {
	db           *sql.DB
	client       historyFetcher
	log          zerolog.Logger
	lookbackDays int
}

// NewReconciler creates a price reconciler with the given default lookback window
func NewReconciler(db *sql.DB, client historyFetcher, lookbackDays int, log zerolog.Logger) *Reconciler {
	if lookbackDays <= 0 {
		lookbackDays = 365
	}
	return &Reconciler{
		db:           db,
		client:       client,
		log:          log.With().Str("component", "reconciler").Logger(),
		lookbackDays: lookbackDays,
	}
}

// UpdatePrices reconciles a stock's price history over the default lookback
// window. Returns the number of newly inserted bars.
func (r *Reconciler) UpdatePrices(stock *domain.Stock) (int, error) {
	end := time.Now().UTC()
	return r.UpdatePricesRange(stock, end.AddDate(0, 0, -r.lookbackDays), end)
}

// UpdatePricesRange reconciles a stock's price history over [start, end].
// A stock without a resolved ticker yields 0 without fetching. Fetch errors
// are logged and swallowed so one flaky symbol cannot poison a bulk run;
// only persistence failures surface as errors.
func (r *Reconciler) UpdatePricesRange(stock *domain.Stock, start, end time.Time) (int, error) {
	if !stock.HasTicker() {
		r.log.Debug().Str("isin", stock.ISIN).Msg("No ticker resolved, skipping price update")
		return 0, nil
	}
	ticker := *stock.Ticker

	bars, err := r.client.GetHistory(ticker, start, end)
	if err != nil {
		r.log.Warn().Err(err).Str("ticker", ticker).Msg("Price fetch failed")
		return 0, nil
	}
	if len(bars) == 0 {
		return 0, nil
	}

	existing, err := r.existingDates(stock.ID)
	if err != nil {
		return 0, err
	}

	inserted := 0
	err = database.WithTransaction(r.db, func(tx *sql.Tx) error {
		for _, bar := range bars {
			date := bar.Date.Format("2006-01-02")
			if existing[date] {
				continue
			}
			_, err := tx.Exec(
				`INSERT INTO stock_prices (stock_id, date, open, high, low, close, volume, currency)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				stock.ID, date, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume, stock.Currency,
			)
			if err != nil {
				if isUniqueViolation(err) {
					// another writer got there first, the bar is present
					continue
				}
				return fmt.Errorf("failed to insert price for %s on %s: %w", ticker, date, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to reconcile prices for %s: %w", ticker, err)
	}

	if inserted > 0 {
		r.log.Info().Str("ticker", ticker).Int("inserted", inserted).Msg("Price history updated")
	}
	return inserted, nil
}

// UpdateAllPrices reconciles every currently-held stock that has a resolved
// ticker. A per-stock failure or empty result never halts the rest. Returns
// the total number of newly inserted bars.
func (r *Reconciler) UpdateAllPrices() (int, error) {
	stocks, err := heldStocks(r.db)
	if err != nil {
		return 0, err
	}

	total := 0
	for i := range stocks {
		n, err := r.UpdatePricesRange(&stocks[i],
			time.Now().UTC().AddDate(0, 0, -r.lookbackDays), time.Now().UTC())
		if err != nil {
			r.log.Warn().Err(err).Str("isin", stocks[i].ISIN).Msg("Price update failed for stock")
			continue
		}
		total += n
	}

	r.log.Info().Int("stocks", len(stocks)).Int("inserted", total).Msg("Bulk price update complete")
	return total, nil
}

// existingDates returns the set of dates already persisted for a stock
func (r *Reconciler) existingDates(stockID int64) (map[string]bool, error) {
	rows, err := r.db.Query(`SELECT date FROM stock_prices WHERE stock_id = ?`, stockID)
	if err != nil {
		return nil, fmt.Errorf("failed to load existing price dates: %w", err)
	}
	defer rows.Close()

	dates := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan price date: %w", err)
		}
		dates[d] = true
	}
	return dates, rows.Err()
}

// heldStocks returns stocks with a positive net position and a resolved ticker
func heldStocks(db *sql.DB) ([]domain.Stock, error) {
	rows, err := db.Query(`
		SELECT s.id, s.isin, s.name, s.currency, s.ticker
		FROM stocks s
		JOIN transactions t ON t.stock_id = s.id
		WHERE s.ticker IS NOT NULL AND s.ticker != ''
		GROUP BY s.id
		HAVING SUM(t.quantity) > 0
		ORDER BY s.name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load held stocks: %w", err)
	}
	defer rows.Close()

	var stocks []domain.Stock
	for rows.Next() {
		var s domain.Stock
		if err := rows.Scan(&s.ID, &s.ISIN, &s.Name, &s.Currency, &s.Ticker); err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, s)
	}
	return stocks, rows.Err()
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
// Both sqlite drivers surface the constraint name in the message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
