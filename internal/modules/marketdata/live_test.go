package marketdata

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio/internal/clientdata"
	"github.com/aristath/folio/internal/clients/yahoo"
)

type fakeQuoter struct {
	quotes map[string]*yahoo.Quote
	errs   map[string]error
	calls  []string
}

func (f *fakeQuoter) GetQuote(symbol string) (*yahoo.Quote, error) {
	f.calls = append(f.calls, symbol)
	if err := f.errs[symbol]; err != nil {
		return nil, err
	}
	return f.quotes[symbol], nil
}

func TestRefreshQuotesCacheFirst(t *testing.T) {
	db := setupPriceDB(t)
	stock := insertStock(t, db, "US5949181045", "Microsoft", "USD", "MSFT")
	insertTransaction(t, db, stock.ID, "2024-01-02", 10)

	client := &fakeQuoter{quotes: map[string]*yahoo.Quote{
		"MSFT": {Symbol: "MSFT", Currency: "USD", Price: 415.5},
	}}
	svc := NewLiveService(db, client, clientdata.NewRepository(db), zerolog.New(nil).Level(zerolog.Disabled))

	quotes, err := svc.RefreshQuotes()
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "MSFT", quotes[0].Ticker)
	assert.Equal(t, 415.5, quotes[0].Price)
	assert.False(t, quotes[0].Cached)
	assert.Len(t, client.calls, 1)

	// Second refresh inside the TTL is served from cache
	quotes, err = svc.RefreshQuotes()
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.True(t, quotes[0].Cached)
	assert.Equal(t, 415.5, quotes[0].Price)
	assert.Len(t, client.calls, 1)
}

func TestRefreshQuotesFetchFailureSkipsPosition(t *testing.T) {
	db := setupPriceDB(t)
	ms := insertStock(t, db, "US5949181045", "Microsoft", "USD", "MSFT")
	insertTransaction(t, db, ms.ID, "2024-01-02", 10)
	sap := insertStock(t, db, "DE0007164600", "SAP SE", "EUR", "SAP.DE")
	insertTransaction(t, db, sap.ID, "2024-01-02", 5)

	client := &fakeQuoter{
		quotes: map[string]*yahoo.Quote{
			"SAP.DE": {Symbol: "SAP.DE", Currency: "EUR", Price: 182.3},
		},
		errs: map[string]error{"MSFT": errors.New("rate limited")},
	}
	svc := NewLiveService(db, client, clientdata.NewRepository(db), zerolog.New(nil).Level(zerolog.Disabled))

	quotes, err := svc.RefreshQuotes()
	require.NoError(t, err)
	require.Len(t, quotes, 1)
	assert.Equal(t, "SAP.DE", quotes[0].Ticker)
}

func TestRefreshQuotesSkipsUnresolvedAndSoldOut(t *testing.T) {
	db := setupPriceDB(t)
	unresolved := insertStock(t, db, "XX0000000000", "Mystery Corp", "EUR", "")
	insertTransaction(t, db, unresolved.ID, "2024-01-02", 10)
	soldOut := insertStock(t, db, "US5949181045", "Microsoft", "USD", "MSFT")
	insertTransaction(t, db, soldOut.ID, "2024-01-02", 10)
	insertTransaction(t, db, soldOut.ID, "2024-03-01", -10)

	client := &fakeQuoter{}
	svc := NewLiveService(db, client, clientdata.NewRepository(db), zerolog.New(nil).Level(zerolog.Disabled))

	quotes, err := svc.RefreshQuotes()
	require.NoError(t, err)
	assert.Empty(t, quotes)
	assert.Empty(t, client.calls)
}

func TestDataStatus(t *testing.T) {
	db := setupPriceDB(t)
	ms := insertStock(t, db, "US5949181045", "Microsoft", "USD", "MSFT")
	insertStock(t, db, "XX0000000000", "Mystery Corp", "EUR", "")
	for _, date := range []string{"2024-01-02", "2024-01-03"} {
		_, err := db.Exec(
			`INSERT INTO stock_prices (stock_id, date, open, high, low, close, volume, currency)
			 VALUES (?, ?, 100, 101, 99, 100, 1000, 'USD')`,
			ms.ID, date,
		)
		require.NoError(t, err)
	}

	svc := NewLiveService(db, &fakeQuoter{}, clientdata.NewRepository(db), zerolog.New(nil).Level(zerolog.Disabled))

	status, err := svc.DataStatus()
	require.NoError(t, err)
	assert.Equal(t, 2, status.StocksTotal)
	assert.Equal(t, 1, status.StocksResolved)
	assert.Equal(t, 2, status.PriceRows)
	assert.Equal(t, "2024-01-03", status.LatestPrice)
	assert.Equal(t, 0, status.IndexRows)
	assert.Empty(t, status.LatestIndex)
	assert.NotEmpty(t, status.GeneratedAt)
}

func TestDataStatusEmptyStore(t *testing.T) {
	db := setupPriceDB(t)
	svc := NewLiveService(db, &fakeQuoter{}, clientdata.NewRepository(db), zerolog.New(nil).Level(zerolog.Disabled))

	status, err := svc.DataStatus()
	require.NoError(t, err)
	assert.Equal(t, 0, status.StocksTotal)
	assert.Equal(t, 0, status.PriceRows)
}
