package clientdata

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE market_data_cache (
			service TEXT NOT NULL,
			key TEXT NOT NULL,
			payload BLOB NOT NULL,
			fetched_at INTEGER NOT NULL,
			ttl_seconds INTEGER NOT NULL,
			PRIMARY KEY (service, key)
		)
	`)
	require.NoError(t, err)

	return db
}

type cachedQuote struct {
	Symbol string
	Price  float64
}

func TestStoreAndGetIfFresh(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	err := repo.Store("yahoo", "quote:MSFT", cachedQuote{Symbol: "MSFT", Price: 420.5}, time.Hour)
	require.NoError(t, err)

	var got cachedQuote
	found, err := repo.GetIfFresh("yahoo", "quote:MSFT", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "MSFT", got.Symbol)
	assert.Equal(t, 420.5, got.Price)
}

func TestGetIfFreshMissingKey(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	var got cachedQuote
	found, err := repo.GetIfFresh("yahoo", "quote:UNKNOWN", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestGetIfFreshExpired(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	require.NoError(t, repo.Store("yahoo", "quote:MSFT", cachedQuote{Symbol: "MSFT"}, time.Hour))

	// Backdate the entry past its TTL
	_, err := db.Exec(
		`UPDATE market_data_cache SET fetched_at = ? WHERE service = 'yahoo' AND key = 'quote:MSFT'`,
		time.Now().Add(-2*time.Hour).Unix(),
	)
	require.NoError(t, err)

	var got cachedQuote
	found, err := repo.GetIfFresh("yahoo", "quote:MSFT", &got)
	require.NoError(t, err)
	assert.False(t, found)

	// Stale read still returns the payload
	found, err = repo.Get("yahoo", "quote:MSFT", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "MSFT", got.Symbol)
}

func TestStoreOverwrites(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	require.NoError(t, repo.Store("yahoo", "quote:MSFT", cachedQuote{Price: 100}, time.Hour))
	require.NoError(t, repo.Store("yahoo", "quote:MSFT", cachedQuote{Price: 200}, time.Hour))

	var got cachedQuote
	found, err := repo.GetIfFresh("yahoo", "quote:MSFT", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 200.0, got.Price)
}

func TestDeleteExpired(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRepository(db)

	require.NoError(t, repo.Store("yahoo", "quote:FRESH", cachedQuote{}, time.Hour))
	require.NoError(t, repo.Store("yahoo", "quote:STALE", cachedQuote{}, time.Hour))
	_, err := db.Exec(
		`UPDATE market_data_cache SET fetched_at = ? WHERE key = 'quote:STALE'`,
		time.Now().Add(-2*time.Hour).Unix(),
	)
	require.NoError(t, err)

	deleted, err := repo.DeleteExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var got cachedQuote
	found, err := repo.Get("yahoo", "quote:FRESH", &got)
	require.NoError(t, err)
	assert.True(t, found)
}
