package portfolio

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/domain"
)

// TransactionRepository handles transaction persistence
type TransactionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sql.DB, log zerolog.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:  db,
		log: log.With().Str("repository", "transactions").Logger(),
	}
}

// Insert persists a transaction and returns its id
func (r *TransactionRepository) Insert(tx *domain.Transaction) (int64, error) {
	res, err := r.db.Exec(
		`INSERT INTO transactions (stock_id, date, quantity, price, amount, currency, import_batch)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.StockID, tx.Date, tx.Quantity, tx.Price, tx.Amount, tx.Currency, tx.ImportBatch,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read transaction id: %w", err)
	}
	return id, nil
}

// GetByStock returns all transactions for a stock, oldest first
func (r *TransactionRepository) GetByStock(stockID int64) ([]domain.Transaction, error) {
	rows, err := r.db.Query(
		`SELECT id, stock_id, date, quantity, price, amount, currency, COALESCE(import_batch, '')
		 FROM transactions WHERE stock_id = ? ORDER BY date, id`,
		stockID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions for stock %d: %w", stockID, err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// GetAll returns all transactions, oldest first
func (r *TransactionRepository) GetAll() ([]domain.Transaction, error) {
	rows, err := r.db.Query(
		`SELECT id, stock_id, date, quantity, price, amount, currency, COALESCE(import_batch, '')
		 FROM transactions ORDER BY date, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()
	return scanTransactions(rows)
}

// Exists reports whether an identical transaction is already stored.
// Used by the importer to keep re-imports of the same export idempotent.
func (r *TransactionRepository) Exists(stockID int64, date string, quantity, amount float64) (bool, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM transactions
		 WHERE stock_id = ? AND date = ? AND quantity = ? AND amount = ?`,
		stockID, date, quantity, amount,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction existence: %w", err)
	}
	return n > 0, nil
}

func scanTransactions(rows *sql.Rows) ([]domain.Transaction, error) {
	var txs []domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		err := rows.Scan(&tx.ID, &tx.StockID, &tx.Date, &tx.Quantity,
			&tx.Price, &tx.Amount, &tx.Currency, &tx.ImportBatch)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}
