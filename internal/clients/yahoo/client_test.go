package yahoo

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func chartBody(symbol string, timestamps []int64, closes []float64) string {
	ts := ""
	cl := ""
	for i := range timestamps {
		if i > 0 {
			ts += ","
			cl += ","
		}
		ts += fmt.Sprintf("%d", timestamps[i])
		cl += fmt.Sprintf("%g", closes[i])
	}
	return fmt.Sprintf(`{
		"chart": {
			"result": [{
				"meta": {"symbol": %q, "shortName": "Test Corp", "currency": "USD", "regularMarketPrice": 103.5},
				"timestamp": [%s],
				"indicators": {"quote": [{
					"open": [%s], "high": [%s], "low": [%s], "close": [%s], "volume": [%s]
				}]}
			}],
			"error": null
		}
	}`, symbol, ts, cl, cl, cl, cl, volumes(len(timestamps)))
}

func volumes(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			s += ","
		}
		s += "1000000"
	}
	return s
}

func TestGetHistory(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	timestamps := []int64{day.Unix(), day.AddDate(0, 0, 1).Unix(), day.AddDate(0, 0, 2).Unix()}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v8/finance/chart/MSFT")
		fmt.Fprint(w, chartBody("MSFT", timestamps, []float64{100, 101, 102}))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, srv.Client(), testLogger())
	bars, err := c.GetHistory("MSFT", day, day.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.Equal(t, "2024-03-01", bars[0].Date.Format("2006-01-02"))
	assert.Equal(t, 100.0, bars[0].Close)
	assert.Equal(t, int64(1000000), bars[0].Volume)
	assert.True(t, bars[0].Date.Before(bars[1].Date))
}

func TestGetHistorySkipsNullBars(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	body := fmt.Sprintf(`{
		"chart": {
			"result": [{
				"meta": {"symbol": "MSFT", "currency": "USD"},
				"timestamp": [%d, %d],
				"indicators": {"quote": [{
					"open": [100, null], "high": [101, null], "low": [99, null],
					"close": [100.5, null], "volume": [1000, null]
				}]}
			}],
			"error": null
		}
	}`, day.Unix(), day.AddDate(0, 0, 1).Unix())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, srv.Client(), testLogger())
	bars, err := c.GetHistory("MSFT", day, day.AddDate(0, 0, 2))
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.Equal(t, 100.5, bars[0].Close)
}

func TestGetHistoryEmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart": {"result": [], "error": null}}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, srv.Client(), testLogger())
	bars, err := c.GetHistory("UNKNOWN", time.Now().AddDate(0, 0, -5), time.Now())
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestGetHistoryAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"chart": {"result": null, "error": {"code": "Not Found", "description": "No data found"}}}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, srv.Client(), testLogger())
	_, err := c.GetHistory("BAD", time.Now().AddDate(0, 0, -5), time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No data found")
}

func TestGetQuote(t *testing.T) {
	day := time.Now().UTC()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, chartBody("SAP.DE", []int64{day.Unix()}, []float64{180.2}))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, srv.Client(), testLogger())
	quote, err := c.GetQuote("SAP.DE")
	require.NoError(t, err)

	assert.Equal(t, "SAP.DE", quote.Symbol)
	assert.Equal(t, "Test Corp", quote.ShortName)
	assert.Equal(t, "USD", quote.Currency)
	assert.Equal(t, 103.5, quote.Price)
}

func TestGetQuoteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, srv.Client(), testLogger())
	_, err := c.GetQuote("MSFT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 429")
}

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/finance/search", r.URL.Path)
		assert.Equal(t, "Apple Inc", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"quotes": [
			{"symbol": "AAPL", "shortname": "Apple Inc.", "exchDisp": "NASDAQ", "quoteType": "EQUITY"},
			{"symbol": "APC.DE", "shortname": "Apple Inc.", "exchDisp": "XETRA", "quoteType": "EQUITY"}
		]}`)
	}))
	defer srv.Close()

	c := NewClientWithBaseURL(srv.URL, srv.Client(), testLogger())
	results, err := c.Search("Apple Inc")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "AAPL", results[0].Symbol)
	assert.Equal(t, "XETRA", results[1].Exchange)
}
