package marketdata

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Mapping is the static ISIN → currency → ticker table consulted before any
// network lookup. It is built once at startup and never mutated afterwards.
type Mapping struct {
	entries map[string]map[string]string
}

// defaultMappingEntries covers positions whose tickers are known upfront,
// so resolution never depends on search quality for them.
var defaultMappingEntries = map[string]map[string]string{
	// US large caps
	"US5949181045": {"USD": "MSFT"},
	"US67066G1040": {"USD": "NVDA"},
	"US02079K3059": {"USD": "GOOGL"},
	"US0378331005": {"USD": "AAPL"},
	"US0231351067": {"USD": "AMZN"},
	"US88160R1014": {"USD": "TSLA"},

	// European listings
	"DE0007164600": {"EUR": "SAP.DE"},
	"NL0010273215": {"EUR": "ASML.AS"},
	"NL0011794037": {"EUR": "AD.AS"},
	"FR0000121014": {"EUR": "MC.PA"},
	"SE0000108656": {"SEK": "ERIC-B.ST"},
	"CH0038863350": {"CHF": "NESN.SW"},
	"GB00B03MLX29": {"EUR": "SHELL.AS", "GBP": "SHEL.L"},
}

// NewMapping builds the mapping from the built-in defaults.
func NewMapping() *Mapping {
	entries := make(map[string]map[string]string, len(defaultMappingEntries))
	for isin, byCurrency := range defaultMappingEntries {
		inner := make(map[string]string, len(byCurrency))
		for currency, ticker := range byCurrency {
			inner[currency] = ticker
		}
		entries[isin] = inner
	}
	return &Mapping{entries: entries}
}

// mappingFile is the YAML layout for user-provided mapping extensions:
//
//	mappings:
//	  IE00B4L5Y983:
//	    EUR: IWDA.AS
type mappingFile struct {
	Mappings map[string]map[string]string `yaml:"mappings"`
}

// LoadMappingFile returns the built-in mapping extended with entries from a
// YAML file. File entries win over built-in defaults on conflict. A missing
// path is not an error; a malformed file is.
func LoadMappingFile(path string) (*Mapping, error) {
	m := NewMapping()
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file %s: %w", path, err)
	}

	var file mappingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file %s: %w", path, err)
	}

	for isin, byCurrency := range file.Mappings {
		if m.entries[isin] == nil {
			m.entries[isin] = make(map[string]string, len(byCurrency))
		}
		for currency, ticker := range byCurrency {
			m.entries[isin][currency] = ticker
		}
	}

	return m, nil
}

// Lookup returns the mapped ticker for (isin, currency), or "" when absent.
// The match is exact and case-sensitive on both keys.
func (m *Mapping) Lookup(isin, currency string) string {
	byCurrency, ok := m.entries[isin]
	if !ok {
		return ""
	}
	return byCurrency[currency]
}

// Size returns the number of ISINs in the mapping
func (m *Mapping) Size() int {
	return len(m.entries)
}
