package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/clientdata"
	"github.com/aristath/folio/internal/clients/yahoo"
)

// quoteFetcher is the slice of the market data source the live service needs
type quoteFetcher interface {
	GetQuote(symbol string) (*yahoo.Quote, error)
}

// LiveQuote is a current price snapshot for one held position
type LiveQuote struct {
	StockID  int64   `json:"stock_id"`
	ISIN     string  `json:"isin"`
	Ticker   string  `json:"ticker"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency"`
	Cached   bool    `json:"cached"`
}

// LiveService fetches current quotes for held positions, with a short-TTL
// persistent cache in front of the upstream API so repeated dashboard
// refreshes do not hammer it.
type LiveService struct {
	db     *sql.DB
	client quoteFetcher
	cache  *clientdata.Repository
	log    zerolog.Logger
}

// NewLiveService creates a live quote service
func NewLiveService(db *sql.DB, client quoteFetcher, cache *clientdata.Repository, log zerolog.Logger) *LiveService {
	return &LiveService{
		db:     db,
		client: client,
		cache:  cache,
		log:    log.With().Str("component", "live").Logger(),
	}
}

// cachedLiveQuote is the cache payload for one ticker
type cachedLiveQuote struct {
	Price    float64
	Currency string
}

// RefreshQuotes returns a current quote for every held stock with a resolved
// ticker, serving from cache when fresh. A per-ticker fetch failure is logged
// and that position is simply absent from the result.
func (s *LiveService) RefreshQuotes() ([]LiveQuote, error) {
	stocks, err := heldStocks(s.db)
	if err != nil {
		return nil, fmt.Errorf("failed to load held stocks: %w", err)
	}

	quotes := make([]LiveQuote, 0, len(stocks))
	for _, stock := range stocks {
		ticker := *stock.Ticker
		key := "quote:" + ticker

		var cached cachedLiveQuote
		fresh, err := s.cache.GetIfFresh("yahoo", key, &cached)
		if err != nil {
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Quote cache read failed")
		}
		if fresh {
			quotes = append(quotes, LiveQuote{
				StockID: stock.ID, ISIN: stock.ISIN, Ticker: ticker,
				Price: cached.Price, Currency: cached.Currency, Cached: true,
			})
			continue
		}

		quote, err := s.client.GetQuote(ticker)
		if err != nil {
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Live quote fetch failed")
			continue
		}

		payload := cachedLiveQuote{Price: quote.Price, Currency: quote.Currency}
		if err := s.cache.Store("yahoo", key, payload, clientdata.TTLLiveQuote); err != nil {
			s.log.Warn().Err(err).Str("ticker", ticker).Msg("Quote cache write failed")
		}

		quotes = append(quotes, LiveQuote{
			StockID: stock.ID, ISIN: stock.ISIN, Ticker: ticker,
			Price: quote.Price, Currency: quote.Currency,
		})
	}

	s.log.Info().Int("quotes", len(quotes)).Msg("Live quotes refreshed")
	return quotes, nil
}

// Status summarizes how current the persisted market data is
type Status struct {
	StocksTotal    int    `json:"stocks_total"`
	StocksResolved int    `json:"stocks_resolved"`
	PriceRows      int    `json:"price_rows"`
	LatestPrice    string `json:"latest_price_date,omitempty"`
	IndexRows      int    `json:"index_rows"`
	LatestIndex    string `json:"latest_index_date,omitempty"`
	GeneratedAt    string `json:"generated_at"`
}

// DataStatus reports coverage counts and the most recent persisted dates
func (s *LiveService) DataStatus() (*Status, error) {
	st := &Status{GeneratedAt: time.Now().UTC().Format(time.RFC3339)}

	err := s.db.QueryRow(`SELECT COUNT(*) FROM stocks`).Scan(&st.StocksTotal)
	if err != nil {
		return nil, fmt.Errorf("failed to count stocks: %w", err)
	}
	err = s.db.QueryRow(
		`SELECT COUNT(*) FROM stocks WHERE ticker IS NOT NULL AND ticker != ''`,
	).Scan(&st.StocksResolved)
	if err != nil {
		return nil, fmt.Errorf("failed to count resolved stocks: %w", err)
	}

	var latest sql.NullString
	err = s.db.QueryRow(`SELECT COUNT(*), MAX(date) FROM stock_prices`).Scan(&st.PriceRows, &latest)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize stock prices: %w", err)
	}
	st.LatestPrice = latest.String

	err = s.db.QueryRow(`SELECT COUNT(*), MAX(date) FROM index_prices`).Scan(&st.IndexRows, &latest)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize index prices: %w", err)
	}
	st.LatestIndex = latest.String

	return st, nil
}
