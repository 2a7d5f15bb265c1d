package database

// Schema is the single source of truth for the portfolio database layout.
// Dates are stored as TEXT in YYYY-MM-DD form. The UNIQUE constraints on
// (stock_id, date) and (index_id, date) are the backstop that keeps price
// reconciliation idempotent under concurrent callers.
const Schema = `
CREATE TABLE IF NOT EXISTS stocks (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	isin     TEXT NOT NULL UNIQUE,
	name     TEXT NOT NULL,
	currency TEXT NOT NULL,
	ticker   TEXT
);

CREATE TABLE IF NOT EXISTS transactions (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	stock_id     INTEGER NOT NULL REFERENCES stocks(id),
	date         TEXT NOT NULL,
	quantity     REAL NOT NULL,
	price        REAL NOT NULL,
	amount       REAL NOT NULL,
	currency     TEXT NOT NULL DEFAULT 'EUR',
	import_batch TEXT
);

CREATE INDEX IF NOT EXISTS idx_transactions_stock_date ON transactions(stock_id, date);

CREATE TABLE IF NOT EXISTS stock_prices (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	stock_id INTEGER NOT NULL REFERENCES stocks(id),
	date     TEXT NOT NULL,
	open     REAL,
	high     REAL,
	low      REAL,
	close    REAL NOT NULL,
	volume   INTEGER,
	currency TEXT,
	UNIQUE(stock_id, date)
);

CREATE TABLE IF NOT EXISTS indices (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol TEXT NOT NULL UNIQUE,
	name   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS index_prices (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	index_id INTEGER NOT NULL REFERENCES indices(id),
	date     TEXT NOT NULL,
	close    REAL NOT NULL,
	UNIQUE(index_id, date)
);

CREATE TABLE IF NOT EXISTS market_data_cache (
	service     TEXT NOT NULL,
	key         TEXT NOT NULL,
	payload     BLOB NOT NULL,
	fetched_at  INTEGER NOT NULL,
	ttl_seconds INTEGER NOT NULL,
	PRIMARY KEY (service, key)
);
`
