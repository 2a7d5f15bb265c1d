// Package charts prepares time series for the dashboard charts: price
// history with moving-average overlays, trade markers, and the stock's
// performance normalized against the benchmark indices.
package charts

import (
	"fmt"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/portfolio"
)

// Moving average windows shown on the price chart
const (
	smaPeriod = 50
	emaPeriod = 20
)

// Point is one (date, value) sample in a chart series
type Point struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// Marker flags a buy or sell on the price chart
type Marker struct {
	Date     string  `json:"date"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
}

// ChartData is everything the stock detail chart needs in one payload
type ChartData struct {
	Stock        domain.Stock       `json:"stock"`
	Prices       []Point            `json:"prices"`
	SMA          []Point            `json:"sma"`
	EMA          []Point            `json:"ema"`
	Normalized   []Point            `json:"normalized"`
	Benchmarks   map[string][]Point `json:"benchmarks"`
	Transactions []Marker           `json:"transactions"`
}

// Service assembles chart payloads from the persisted series
type Service struct {
	stocks       *portfolio.StockRepository
	transactions *portfolio.TransactionRepository
	prices       *portfolio.PriceRepository
	log          zerolog.Logger
}

// NewService creates a charts service
func NewService(stocks *portfolio.StockRepository, transactions *portfolio.TransactionRepository, prices *portfolio.PriceRepository, log zerolog.Logger) *Service {
	return &Service{
		stocks:       stocks,
		transactions: transactions,
		prices:       prices,
		log:          log.With().Str("component", "charts").Logger(),
	}
}

// StockChartData builds the chart payload for one stock. Returns nil when
// the stock does not exist. Overlays that need more history than is stored
// are simply empty rather than an error.
func (s *Service) StockChartData(stockID int64) (*ChartData, error) {
	stock, err := s.stocks.GetByID(stockID)
	if err != nil {
		return nil, err
	}
	if stock == nil {
		return nil, nil
	}

	series, err := s.prices.CloseSeries(stockID)
	if err != nil {
		return nil, err
	}

	data := &ChartData{
		Stock:      *stock,
		Prices:     make([]Point, 0, len(series)),
		Benchmarks: make(map[string][]Point),
	}

	closes := make([]float64, len(series))
	for i, p := range series {
		closes[i] = p.Close
		data.Prices = append(data.Prices, Point{Date: p.Date, Value: p.Close})
	}

	data.SMA = overlay(series, closes, smaPeriod, talib.Sma)
	data.EMA = overlay(series, closes, emaPeriod, talib.Ema)
	data.Normalized = normalize(data.Prices)

	if len(series) > 0 {
		if err := s.attachBenchmarks(data, series[0].Date, series[len(series)-1].Date); err != nil {
			return nil, err
		}
	}

	txs, err := s.transactions.GetByStock(stockID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions for chart: %w", err)
	}
	data.Transactions = make([]Marker, 0, len(txs))
	for _, tx := range txs {
		data.Transactions = append(data.Transactions, Marker{
			Date: tx.Date, Quantity: tx.Quantity, Price: tx.Price,
		})
	}

	return data, nil
}

// attachBenchmarks adds each stored index, clipped to the stock's date window
// and normalized to 100 at its first overlapping sample.
func (s *Service) attachBenchmarks(data *ChartData, from, to string) error {
	indices, err := s.prices.ListIndices()
	if err != nil {
		return err
	}

	for _, idx := range indices {
		series, err := s.prices.IndexSeries(idx.Symbol)
		if err != nil {
			return err
		}

		points := make([]Point, 0, len(series))
		for _, p := range series {
			if p.Date < from || p.Date > to {
				continue
			}
			points = append(points, Point{Date: p.Date, Value: p.Close})
		}
		if len(points) == 0 {
			continue
		}
		data.Benchmarks[idx.Symbol] = normalize(points)
	}

	return nil
}

// overlay computes a talib moving average and drops the warm-up samples,
// which the library fills with zeros.
func overlay(series []domain.StockPrice, closes []float64, period int, fn func([]float64, int) []float64) []Point {
	if len(closes) < period {
		return []Point{}
	}
	values := fn(closes, period)
	points := make([]Point, 0, len(values)-period+1)
	for i := period - 1; i < len(values); i++ {
		points = append(points, Point{Date: series[i].Date, Value: values[i]})
	}
	return points
}

// normalize rescales a series to 100 at its first sample
func normalize(points []Point) []Point {
	if len(points) == 0 || points[0].Value == 0 {
		return []Point{}
	}
	base := points[0].Value
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = Point{Date: p.Date, Value: p.Value / base * 100}
	}
	return out
}
