package portfolio

import (
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/folio/internal/domain"
)

// positionEpsilon treats fractional dust left after a full sell as closed
const positionEpsilon = 1e-9

// tradingDaysPerYear annualizes daily return volatility
const tradingDaysPerYear = 252

// Service computes portfolio views: current holdings, performance figures
// and the historical valuation series.
type Service struct {
	stocks       *StockRepository
	transactions *TransactionRepository
	prices       *PriceRepository
	log          zerolog.Logger
}

// NewService creates a portfolio service
func NewService(stocks *StockRepository, transactions *TransactionRepository, prices *PriceRepository, log zerolog.Logger) *Service {
	return &Service{
		stocks:       stocks,
		transactions: transactions,
		prices:       prices,
		log:          log.With().Str("component", "portfolio").Logger(),
	}
}

// HoldingView is a current position enriched with its latest market value.
// Valuation fields stay zero when the stock has no price history yet.
type HoldingView struct {
	domain.Holding
	CurrentPrice float64 `json:"current_price"`
	CurrentValue float64 `json:"current_value"`
	Gain         float64 `json:"gain"`
	GainPercent  float64 `json:"gain_percent"`
	PriceDate    string  `json:"price_date,omitempty"`
}

// Holdings returns all open positions with their latest valuation.
// Sold-out positions are excluded.
func (s *Service) Holdings() ([]HoldingView, error) {
	stocks, err := s.stocks.GetAll()
	if err != nil {
		return nil, err
	}

	holdings := make([]HoldingView, 0, len(stocks))
	for _, stock := range stocks {
		txs, err := s.transactions.GetByStock(stock.ID)
		if err != nil {
			return nil, err
		}
		if len(txs) == 0 {
			continue
		}

		var shares, invested float64
		for _, tx := range txs {
			shares += tx.Quantity
			invested -= tx.Amount
		}
		if shares <= positionEpsilon {
			continue
		}

		view := HoldingView{
			Holding: domain.Holding{
				Stock:             stock,
				Shares:            shares,
				Invested:          invested,
				TransactionsCount: len(txs),
			},
		}

		latest, err := s.prices.GetLatestClose(stock.ID)
		if err != nil {
			return nil, err
		}
		if latest != nil {
			view.CurrentPrice = latest.Close
			view.CurrentValue = shares * latest.Close
			view.Gain = view.CurrentValue - invested
			if invested > 0 {
				view.GainPercent = view.Gain / invested * 100
			}
			view.PriceDate = latest.Date
		}

		holdings = append(holdings, view)
	}

	return holdings, nil
}

// Performance summarizes the whole portfolio
type Performance struct {
	TotalInvested        float64       `json:"total_invested"`
	CurrentValue         float64       `json:"current_value"`
	Gain                 float64       `json:"gain"`
	GainPercent          float64       `json:"gain_percent"`
	AnnualizedVolatility float64       `json:"annualized_volatility"`
	Positions            int           `json:"positions"`
	Holdings             []HoldingView `json:"holdings"`
}

// GetPerformance computes portfolio totals plus annualized volatility of the
// daily valuation series. Positions without price history contribute their
// invested amount but no market value.
func (s *Service) GetPerformance() (*Performance, error) {
	holdings, err := s.Holdings()
	if err != nil {
		return nil, err
	}

	perf := &Performance{Positions: len(holdings), Holdings: holdings}
	for _, h := range holdings {
		perf.TotalInvested += h.Invested
		perf.CurrentValue += h.CurrentValue
	}
	perf.Gain = perf.CurrentValue - perf.TotalInvested
	if perf.TotalInvested > 0 {
		perf.GainPercent = perf.Gain / perf.TotalInvested * 100
	}

	history, err := s.ValuationHistory()
	if err != nil {
		return nil, err
	}
	perf.AnnualizedVolatility = annualizedVolatility(history)

	return perf, nil
}

// ValuationPoint is one day in the portfolio valuation series
type ValuationPoint struct {
	Date     string  `json:"date"`
	Value    float64 `json:"value"`
	Invested float64 `json:"invested"`
}

// ValuationHistory builds the daily portfolio value series from the first
// transaction onwards. Each stock contributes shares held on that date times
// its last known close on or before it. Days before a stock's first price
// simply carry no value for it.
func (s *Service) ValuationHistory() ([]ValuationPoint, error) {
	txs, err := s.transactions.GetAll()
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return []ValuationPoint{}, nil
	}
	firstDate := txs[0].Date

	txsByStock := make(map[int64][]domain.Transaction)
	for _, tx := range txs {
		txsByStock[tx.StockID] = append(txsByStock[tx.StockID], tx)
	}

	seriesByStock := make(map[int64][]domain.StockPrice)
	dateSet := make(map[string]bool)
	for stockID := range txsByStock {
		series, err := s.prices.CloseSeries(stockID)
		if err != nil {
			return nil, err
		}
		seriesByStock[stockID] = series
		for _, p := range series {
			if p.Date >= firstDate {
				dateSet[p.Date] = true
			}
		}
	}
	if len(dateSet) == 0 {
		return []ValuationPoint{}, nil
	}

	dates := make([]string, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	// per-stock walk state, advanced monotonically along the date axis
	type walker struct {
		txs       []domain.Transaction
		series    []domain.StockPrice
		txIdx     int
		priceIdx  int
		shares    float64
		invested  float64
		lastClose float64
		hasClose  bool
	}
	walkers := make(map[int64]*walker, len(txsByStock))
	for stockID, stockTxs := range txsByStock {
		walkers[stockID] = &walker{txs: stockTxs, series: seriesByStock[stockID]}
	}

	points := make([]ValuationPoint, 0, len(dates))
	for _, date := range dates {
		var value, invested float64
		for _, w := range walkers {
			for w.txIdx < len(w.txs) && w.txs[w.txIdx].Date <= date {
				w.shares += w.txs[w.txIdx].Quantity
				w.invested -= w.txs[w.txIdx].Amount
				w.txIdx++
			}
			for w.priceIdx < len(w.series) && w.series[w.priceIdx].Date <= date {
				w.lastClose = w.series[w.priceIdx].Close
				w.hasClose = true
				w.priceIdx++
			}
			if w.shares > positionEpsilon && w.hasClose {
				value += w.shares * w.lastClose
			}
			invested += w.invested
		}
		points = append(points, ValuationPoint{Date: date, Value: value, Invested: invested})
	}

	return points, nil
}

// annualizedVolatility is the stddev of daily returns scaled to a trading year
func annualizedVolatility(points []ValuationPoint) float64 {
	if len(points) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(points)-1)
	for i := 1; i < len(points); i++ {
		prev := points[i-1].Value
		if prev <= 0 {
			continue
		}
		returns = append(returns, points[i].Value/prev-1)
	}
	if len(returns) < 2 {
		return 0
	}
	return stat.StdDev(returns, nil) * math.Sqrt(tradingDaysPerYear)
}

// StockDetail bundles a stock with its transactions for the detail endpoints
type StockDetail struct {
	Stock        domain.Stock         `json:"stock"`
	Transactions []domain.Transaction `json:"transactions"`
}

// GetStockTransactions returns a stock with its transaction history, or nil
// when the stock does not exist.
func (s *Service) GetStockTransactions(stockID int64) (*StockDetail, error) {
	stock, err := s.stocks.GetByID(stockID)
	if err != nil {
		return nil, err
	}
	if stock == nil {
		return nil, nil
	}
	txs, err := s.transactions.GetByStock(stockID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return &StockDetail{Stock: *stock, Transactions: txs}, nil
}

// GetStockPrices returns a stock with its persisted price bars. The stock is
// nil when it does not exist.
func (s *Service) GetStockPrices(stockID int64) (*domain.Stock, []domain.StockPrice, error) {
	stock, err := s.stocks.GetByID(stockID)
	if err != nil {
		return nil, nil, err
	}
	if stock == nil {
		return nil, nil, nil
	}
	prices, err := s.prices.GetByStock(stockID)
	if err != nil {
		return nil, nil, err
	}
	return stock, prices, nil
}
