package importer

import (
	"database/sql"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/modules/portfolio"
)

func setupImporter(t *testing.T) (*Importer, *sql.DB) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(database.Schema)
	require.NoError(t, err)

	log := zerolog.New(nil).Level(zerolog.Disabled)
	imp := NewImporter(
		portfolio.NewStockRepository(db, log),
		portfolio.NewTransactionRepository(db, log),
		log)
	return imp, db
}

const sampleCSV = `Date,Product,ISIN,Quantity,Price,Currency,Amount
2024-01-10,MICROSOFT CORP,US5949181045,10,100.50,USD,-1005.00
2024-01-11,SAP SE,DE0007164600,5,120,EUR,-600
2024-02-10,MICROSOFT CORP,US5949181045,-3,110,USD,330
`

func TestImportCreatesStocksAndTransactions(t *testing.T) {
	imp, db := setupImporter(t)

	result, err := imp.Import(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Imported)
	assert.Equal(t, 2, result.StocksCreated)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Duplicates)
	assert.NotEmpty(t, result.BatchID)

	var stocks, txs int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM stocks`).Scan(&stocks))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&txs))
	assert.Equal(t, 2, stocks)
	assert.Equal(t, 3, txs)

	var batch string
	require.NoError(t, db.QueryRow(
		`SELECT DISTINCT import_batch FROM transactions`).Scan(&batch))
	assert.Equal(t, result.BatchID, batch)
}

func TestImportIsIdempotent(t *testing.T) {
	imp, db := setupImporter(t)

	_, err := imp.Import(strings.NewReader(sampleCSV))
	require.NoError(t, err)

	result, err := imp.Import(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Imported)
	assert.Equal(t, 3, result.Duplicates)

	var txs int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&txs))
	assert.Equal(t, 3, txs)
}

func TestImportSkipsMalformedRows(t *testing.T) {
	imp, _ := setupImporter(t)

	csv := `Date,Product,ISIN,Quantity,Price,Currency,Amount
2024-01-10,MICROSOFT CORP,US5949181045,10,100,USD,-1000
bad-date,SAP SE,DE0007164600,5,120,EUR,-600
2024-01-12,BROKEN,not-an-isin,5,120,EUR,-600
2024-01-13,NO QUANTITY,NL0010273215,zero,120,EUR,-600
`
	result, err := imp.Import(strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 3, result.Skipped)
}

func TestImportDegiroDateFormat(t *testing.T) {
	imp, db := setupImporter(t)

	csv := `Date,Product,ISIN,Quantity,Price,Currency,Amount
10-01-2024,MICROSOFT CORP,US5949181045,10,"100,50",USD,"-1005,00"
`
	result, err := imp.Import(strings.NewReader(csv))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	var date string
	var amount float64
	require.NoError(t, db.QueryRow(
		`SELECT date, amount FROM transactions`).Scan(&date, &amount))
	assert.Equal(t, "2024-01-10", date)
	assert.InDelta(t, -1005.0, amount, 1e-9)
}

func TestImportMissingRequiredColumn(t *testing.T) {
	imp, _ := setupImporter(t)

	_, err := imp.Import(strings.NewReader("Product,Price\nFOO,1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required column")
}

func TestImportEmptyBody(t *testing.T) {
	imp, _ := setupImporter(t)

	_, err := imp.Import(strings.NewReader(""))
	require.Error(t, err)
}
