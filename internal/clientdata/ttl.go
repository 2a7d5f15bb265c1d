package clientdata

import "time"

// TTLLiveQuote bounds how long a cached quote serves the
// refresh-live-prices endpoint before a fresh fetch.
const TTLLiveQuote = 10 * time.Minute
