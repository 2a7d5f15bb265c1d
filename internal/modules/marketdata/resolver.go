// Package marketdata resolves imported securities to tradable ticker symbols
// and keeps their persisted price history in sync with the market data source.
package marketdata

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/clients/yahoo"
	"github.com/aristath/folio/internal/domain"
)

// marketClient is the slice of the market data source the resolver needs
type marketClient interface {
	GetQuote(symbol string) (*yahoo.Quote, error)
	Search(query string) ([]yahoo.SearchResult, error)
}

// exchangeSuffixes maps ISIN country prefixes to Yahoo exchange suffixes,
// ordered by how likely a DEGIRO position is to trade on that venue.
var exchangeSuffixes = map[string][]string{
	"DE": {".DE", ".F"},
	"NL": {".AS"},
	"FR": {".PA"},
	"SE": {".ST"},
	"FI": {".HE"},
	"GB": {".L"},
	"IT": {".MI"},
	"ES": {".MC"},
	"CH": {".SW"},
	"BE": {".BR"},
	"AT": {".VI"},
	"DK": {".CO"},
	"NO": {".OL"},
	"PT": {".LS"},
	"IE": {".IR"},
	"GR": {".AT"},
}

// Resolver maps (ISIN, name, currency) to a ticker symbol. It holds no
// state beyond the static mapping and performs no persistence; callers
// cache the resolved ticker on the stock record.
type Resolver struct {
	client  marketClient
	mapping *Mapping
	log     zerolog.Logger
}

// NewResolver creates a resolver backed by the given market client and mapping
func NewResolver(client marketClient, mapping *Mapping, log zerolog.Logger) *Resolver {
	return &Resolver{
		client:  client,
		mapping: mapping,
		log:     log.With().Str("component", "resolver").Logger(),
	}
}

// ResolveTicker resolves a ticker for a stock, trying the ISIN first and
// falling back to a name search. Returns "" when every strategy comes up
// empty; an unresolved stock is a normal outcome, not an error.
func (r *Resolver) ResolveTicker(isin, name, currency string) string {
	if ticker := r.ResolveFromISIN(isin, currency); ticker != "" {
		return ticker
	}
	return r.ResolveFromName(name, currency)
}

// ResolveFromISIN resolves a ticker from an ISIN and currency hint:
// static mapping first, then country-prefix candidates verified live.
func (r *Resolver) ResolveFromISIN(isin, currency string) string {
	isin = strings.TrimSpace(strings.ToUpper(isin))

	if ticker := r.mapping.Lookup(isin, currency); ticker != "" {
		r.log.Debug().Str("isin", isin).Str("ticker", ticker).Msg("Resolved from static mapping")
		return ticker
	}

	for _, candidate := range r.generateCandidates(isin) {
		if r.verify(candidate) {
			r.log.Info().Str("isin", isin).Str("ticker", candidate).Msg("Resolved from candidate verification")
			return candidate
		}
	}

	return ""
}

// ResolveFromName resolves a ticker by searching for the company name.
// An empty name short-circuits without a network call.
func (r *Resolver) ResolveFromName(name, currency string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	results, err := r.client.Search(name)
	if err != nil {
		r.log.Debug().Err(err).Str("name", name).Msg("Name search failed")
		return ""
	}

	for _, result := range results {
		if result.QuoteType != "EQUITY" || result.Symbol == "" {
			continue
		}
		if !currencyPlausible(result.Symbol, currency) {
			continue
		}
		if r.verify(result.Symbol) {
			r.log.Info().Str("name", name).Str("ticker", result.Symbol).Msg("Resolved from name search")
			return result.Symbol
		}
	}

	return ""
}

// generateCandidates builds the ordered list of symbols to verify for an
// ISIN. Malformed identifiers and unknown country prefixes produce no
// candidates and no network calls. The search hit gives the base symbol;
// the country prefix decides which venue suffixes to try.
func (r *Resolver) generateCandidates(isin string) []string {
	prefix := domain.CountryPrefix(isin)
	if prefix == "" {
		return nil
	}
	if _, known := exchangeSuffixes[prefix]; !known && prefix != "US" {
		return nil
	}

	results, err := r.client.Search(isin)
	if err != nil {
		r.log.Debug().Err(err).Str("isin", isin).Msg("ISIN search failed")
		return nil
	}

	seen := make(map[string]bool)
	var candidates []string
	add := func(symbol string) {
		if symbol != "" && !seen[symbol] {
			seen[symbol] = true
			candidates = append(candidates, symbol)
		}
	}

	for _, result := range results {
		if result.QuoteType != "EQUITY" && result.QuoteType != "ETF" {
			continue
		}
		base := baseSymbol(result.Symbol)
		if prefix == "US" {
			// US listings trade without a venue suffix
			add(base)
			continue
		}
		add(result.Symbol)
		for _, suffix := range exchangeSuffixes[prefix] {
			add(base + suffix)
		}
	}

	return candidates
}

// verify checks a candidate against the live source. Any failure counts
// as unverified; resolution moves on to the next candidate.
func (r *Resolver) verify(symbol string) bool {
	quote, err := r.client.GetQuote(symbol)
	if err != nil {
		return false
	}
	return quote.Symbol != ""
}

// baseSymbol strips the exchange suffix from a Yahoo symbol
func baseSymbol(symbol string) string {
	if i := strings.IndexByte(symbol, '.'); i > 0 {
		return symbol[:i]
	}
	return symbol
}

// currencyPlausible filters name-search hits by listing venue: USD positions
// trade under unsuffixed US symbols, any other currency implies a suffixed
// non-US listing. No currency hint accepts everything.
func currencyPlausible(symbol, currency string) bool {
	if currency == "" {
		return true
	}
	suffixed := strings.Contains(symbol, ".")
	if currency == "USD" {
		return !suffixed
	}
	return suffixed
}
