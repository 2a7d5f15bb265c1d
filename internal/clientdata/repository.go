// Package clientdata provides persistent caching for external API client responses.
// Payloads are stored as msgpack blobs in the market_data_cache table with a
// fetched_at timestamp and per-row TTL for cache-first behavior.
package clientdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Repository provides cache operations for external client data.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new client data repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Store saves a payload with the given TTL.
// Uses INSERT OR REPLACE to upsert data.
func (r *Repository) Store(service, key string, data interface{}, ttl time.Duration) error {
	payload, err := msgpack.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT OR REPLACE INTO market_data_cache (service, key, payload, fetched_at, ttl_seconds)
		 VALUES (?, ?, ?, ?, ?)`,
		service, key, payload, time.Now().Unix(), int64(ttl.Seconds()),
	)
	if err != nil {
		return fmt.Errorf("failed to store cache entry for %s/%s: %w", service, key, err)
	}

	return nil
}

// GetIfFresh decodes the payload into out only if the entry has not expired.
// Returns (false, nil) when the key is missing or stale.
// Use Get to retrieve stale data as a fallback when API calls fail.
func (r *Repository) GetIfFresh(service, key string, out interface{}) (bool, error) {
	now := time.Now().Unix()

	var payload []byte
	err := r.db.QueryRow(
		`SELECT payload FROM market_data_cache
		 WHERE service = ? AND key = ? AND fetched_at + ttl_seconds > ?`,
		service, key, now,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache entry for %s/%s: %w", service, key, err)
	}

	if err := msgpack.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached payload: %w", err)
	}

	return true, nil
}

// Get decodes the payload into out regardless of freshness.
// Stale data is better than no data when the upstream API is down.
func (r *Repository) Get(service, key string, out interface{}) (bool, error) {
	var payload []byte
	err := r.db.QueryRow(
		`SELECT payload FROM market_data_cache WHERE service = ? AND key = ?`,
		service, key,
	).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read cache entry for %s/%s: %w", service, key, err)
	}

	if err := msgpack.Unmarshal(payload, out); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached payload: %w", err)
	}

	return true, nil
}

// DeleteExpired removes entries whose TTL has elapsed.
// Returns the number of rows removed.
func (r *Repository) DeleteExpired() (int64, error) {
	now := time.Now().Unix()

	result, err := r.db.Exec(
		`DELETE FROM market_data_cache WHERE fetched_at + ttl_seconds <= ?`, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}

	rows, _ := result.RowsAffected()
	return rows, nil
}
