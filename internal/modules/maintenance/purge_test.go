package maintenance

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio/internal/database"
)

func setupPurger(t *testing.T) (*Purger, *sql.DB) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(database.Schema)
	require.NoError(t, err)

	return NewPurger(db, zerolog.New(nil).Level(zerolog.Disabled)), db
}

func seedEverything(t *testing.T, db *sql.DB) {
	stmts := []string{
		`INSERT INTO stocks (isin, name, currency, ticker) VALUES ('US5949181045', 'MICROSOFT CORP', 'USD', 'MSFT')`,
		`INSERT INTO stocks (isin, name, currency) VALUES ('DE0007164600', 'SAP SE', 'EUR')`,
		`INSERT INTO transactions (stock_id, date, quantity, price, amount, currency) VALUES (1, '2024-01-10', 10, 100, -1000, 'EUR')`,
		`INSERT INTO stock_prices (stock_id, date, close) VALUES (1, '2024-01-10', 100)`,
		`INSERT INTO stock_prices (stock_id, date, close) VALUES (1, '2024-01-11', 101)`,
		`INSERT INTO indices (symbol, name) VALUES ('^GSPC', 'S&P 500')`,
		`INSERT INTO index_prices (index_id, date, close) VALUES (1, '2024-01-10', 4800)`,
		`INSERT INTO market_data_cache (service, key, payload, fetched_at, ttl_seconds) VALUES ('yahoo', 'quote:MSFT', X'00', 0, 60)`,
	}
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
}

func TestPurgeReportsPerEntityCounts(t *testing.T) {
	p, db := setupPurger(t)
	seedEverything(t, db)

	result, err := p.Purge()
	require.NoError(t, err)

	assert.Equal(t, int64(2), result.Stocks)
	assert.Equal(t, int64(1), result.Transactions)
	assert.Equal(t, int64(2), result.StockPrices)
	assert.Equal(t, int64(1), result.Indices)
	assert.Equal(t, int64(1), result.IndexPrices)
	assert.Equal(t, int64(1), result.CacheEntries)
	assert.Equal(t, int64(8), result.Total())

	var remaining int
	require.NoError(t, db.QueryRow(`
		SELECT (SELECT COUNT(*) FROM stocks) + (SELECT COUNT(*) FROM transactions) +
		       (SELECT COUNT(*) FROM stock_prices) + (SELECT COUNT(*) FROM indices) +
		       (SELECT COUNT(*) FROM index_prices) + (SELECT COUNT(*) FROM market_data_cache)
	`).Scan(&remaining))
	assert.Equal(t, 0, remaining)
}

func TestPurgeEmptyStoreYieldsZeros(t *testing.T) {
	p, _ := setupPurger(t)

	result, err := p.Purge()
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Total())
}

func TestPurgeIsIdempotent(t *testing.T) {
	p, db := setupPurger(t)
	seedEverything(t, db)

	_, err := p.Purge()
	require.NoError(t, err)

	result, err := p.Purge()
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Total())
}
