// Package yahoo provides a client for the Yahoo Finance public API.
// It exposes the three capabilities the rest of the system needs:
// historical OHLCV bars, quote metadata for ticker verification, and
// symbol search by company name.
package yahoo

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://query1.finance.yahoo.com"

// Bar represents a single daily OHLCV bar
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// Quote contains descriptive metadata for a trading symbol.
// A symbol verifies when the API returns a nonempty Symbol for it.
type Quote struct {
	Symbol    string
	ShortName string
	Currency  string
	Price     float64
}

// SearchResult represents a single hit from the symbol search endpoint
type SearchResult struct {
	Symbol    string `json:"symbol"`
	ShortName string `json:"shortname"`
	Exchange  string `json:"exchDisp"`
	QuoteType string `json:"quoteType"`
}

// Client is the Yahoo Finance API client
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient creates a new Yahoo Finance client
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log.With().Str("component", "yahoo").Logger(),
	}
}

// NewClientWithBaseURL creates a client pointed at a custom base URL.
// Used by tests to target an httptest server.
func NewClientWithBaseURL(baseURL string, httpClient *http.Client, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		log:        log.With().Str("component", "yahoo").Logger(),
	}
}

// chartResponse is the response structure from the v8 chart API
type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				ShortName          string  `json:"shortName"`
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// searchResponse is the response structure from the v1 search API
type searchResponse struct {
	Quotes []SearchResult `json:"quotes"`
}

// GetHistory fetches daily OHLCV bars for a symbol over [start, end].
// Bars are returned in ascending date order; null bars (holidays) are skipped.
func (c *Client) GetHistory(symbol string, start, end time.Time) ([]Bar, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&period1=%d&period2=%d",
		c.baseURL, url.PathEscape(symbol), start.Unix(), end.Unix())

	chart, err := c.fetchChart(u)
	if err != nil {
		return nil, err
	}

	if len(chart.Chart.Result) == 0 {
		return nil, nil
	}
	result := chart.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, nil
	}

	quote := result.Indicators.Quote[0]
	bars := make([]Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o := deref(at(quote.Open, i))
		h := deref(at(quote.High, i))
		l := deref(at(quote.Low, i))
		cl := deref(at(quote.Close, i))
		if o == 0 && h == 0 && l == 0 && cl == 0 {
			continue // null bars (holidays etc.)
		}
		var vol int64
		if v := atInt(quote.Volume, i); v != nil {
			vol = *v
		}
		bars = append(bars, Bar{
			Date:   time.Unix(ts, 0).UTC(),
			Open:   o,
			High:   h,
			Low:    l,
			Close:  cl,
			Volume: vol,
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// GetQuote fetches descriptive metadata for a symbol.
// Returns an error if the symbol is unknown or the API call fails.
func (c *Client) GetQuote(symbol string) (*Quote, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d",
		c.baseURL, url.PathEscape(symbol))

	chart, err := c.fetchChart(u)
	if err != nil {
		return nil, err
	}

	if len(chart.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo: no quote data for %s", symbol)
	}
	meta := chart.Chart.Result[0].Meta

	return &Quote{
		Symbol:    meta.Symbol,
		ShortName: meta.ShortName,
		Currency:  meta.Currency,
		Price:     meta.RegularMarketPrice,
	}, nil
}

// Search looks up symbols matching a free-text query (typically a company name)
func (c *Client) Search(query string) ([]SearchResult, error) {
	u := fmt.Sprintf("%s/v1/finance/search?q=%s&quotesCount=5&newsCount=0",
		c.baseURL, url.QueryEscape(query))

	req, err := http.NewRequest("GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo search: status %d, body: %s", resp.StatusCode, string(body))
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, fmt.Errorf("yahoo decode search: %w", err)
	}

	return sr.Quotes, nil
}

// fetchChart performs a chart API request and decodes the envelope
func (c *Client) fetchChart(u string) (*chartResponse, error) {
	req, err := http.NewRequest("GET", u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}

	return &chart, nil
}

func at(s []*float64, i int) *float64 {
	if i < len(s) {
		return s[i]
	}
	return nil
}

func atInt(s []*int64, i int) *int64 {
	if i < len(s) {
		return s[i]
	}
	return nil
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
