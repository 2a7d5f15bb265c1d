package charts

import (
	"database/sql"
	"fmt"
	"testing"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/modules/portfolio"
)

func setupCharts(t *testing.T) (*Service, *sql.DB) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(database.Schema)
	require.NoError(t, err)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	svc := NewService(
		portfolio.NewStockRepository(db, log),
		portfolio.NewTransactionRepository(db, log),
		portfolio.NewPriceRepository(db, log),
		log)
	return svc, db
}

// seedStock inserts a stock with n consecutive daily closes starting at 100
func seedStock(t *testing.T, db *sql.DB, n int) int64 {
	res, err := db.Exec(
		`INSERT INTO stocks (isin, name, currency, ticker) VALUES ('US5949181045', 'MICROSOFT CORP', 'USD', 'MSFT')`)
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		date := fmt.Sprintf("2024-01-%02d", i+1)
		_, err := db.Exec(
			`INSERT INTO stock_prices (stock_id, date, close) VALUES (?, ?, ?)`,
			id, date, 100.0+float64(i))
		require.NoError(t, err)
	}
	return id
}

func TestStockChartDataMissingStock(t *testing.T) {
	svc, _ := setupCharts(t)

	data, err := svc.StockChartData(42)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestStockChartDataPricesAndNormalization(t *testing.T) {
	svc, db := setupCharts(t)
	id := seedStock(t, db, 5)

	data, err := svc.StockChartData(id)
	require.NoError(t, err)
	require.NotNil(t, data)

	require.Len(t, data.Prices, 5)
	assert.Equal(t, "2024-01-01", data.Prices[0].Date)
	assert.Equal(t, 100.0, data.Prices[0].Value)

	require.Len(t, data.Normalized, 5)
	assert.InDelta(t, 100.0, data.Normalized[0].Value, 1e-9)
	assert.InDelta(t, 104.0, data.Normalized[4].Value, 1e-9)
}

func TestStockChartDataOverlaysNeedEnoughHistory(t *testing.T) {
	svc, db := setupCharts(t)
	id := seedStock(t, db, 25)

	data, err := svc.StockChartData(id)
	require.NoError(t, err)

	// 25 closes: enough for the 20-day EMA, not for the 50-day SMA
	assert.Empty(t, data.SMA)
	require.Len(t, data.EMA, 25-emaPeriod+1)
	assert.Equal(t, "2024-01-20", data.EMA[0].Date)
	assert.Greater(t, data.EMA[0].Value, 0.0)
}

func TestStockChartDataBenchmarksClippedAndNormalized(t *testing.T) {
	svc, db := setupCharts(t)
	id := seedStock(t, db, 5)

	res, err := db.Exec(`INSERT INTO indices (symbol, name) VALUES ('^GSPC', 'S&P 500')`)
	require.NoError(t, err)
	indexID, err := res.LastInsertId()
	require.NoError(t, err)

	// One sample before the stock window, two inside
	for _, row := range []struct {
		date  string
		close float64
	}{
		{"2023-12-29", 4700},
		{"2024-01-02", 4800},
		{"2024-01-04", 4848},
	} {
		_, err := db.Exec(
			`INSERT INTO index_prices (index_id, date, close) VALUES (?, ?, ?)`,
			indexID, row.date, row.close)
		require.NoError(t, err)
	}

	data, err := svc.StockChartData(id)
	require.NoError(t, err)

	series, ok := data.Benchmarks["^GSPC"]
	require.True(t, ok)
	require.Len(t, series, 2, "samples outside the stock window are clipped")
	assert.InDelta(t, 100.0, series[0].Value, 1e-9)
	assert.InDelta(t, 101.0, series[1].Value, 1e-9)
}

func TestStockChartDataTransactionMarkers(t *testing.T) {
	svc, db := setupCharts(t)
	id := seedStock(t, db, 3)

	_, err := db.Exec(
		`INSERT INTO transactions (stock_id, date, quantity, price, amount, currency)
		 VALUES (?, '2024-01-02', 10, 101, -1010, 'EUR')`, id)
	require.NoError(t, err)

	data, err := svc.StockChartData(id)
	require.NoError(t, err)

	require.Len(t, data.Transactions, 1)
	assert.Equal(t, Marker{Date: "2024-01-02", Quantity: 10, Price: 101}, data.Transactions[0])
}
