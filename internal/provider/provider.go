package provider

import (
    "context"
    "time"
)

// Source values for Quote.Source.
const (
    SourceLive     = "live"
    SourceFallback = "fallback"
)

// Quote is a single point-in-time price record for one ticker symbol.
type Quote struct {
    Symbol        string    `json:"symbol"`
    Price         float64   `json:"price"`
    Change        float64   `json:"change"`
    ChangePercent float64   `json:"changePercent"`
    Source        string    `json:"source"`
    ReceivedAt    time.Time `json:"received_at"`
}

// Fetcher returns a quote for one symbol. Implementations never fail:
// when live data is unavailable they substitute fallback data.
//
//go:generate mockgen -package=provider -destination=mock_fetcher.go -source=provider.go Fetcher
type Fetcher interface {
    Name() string
    Fetch(ctx context.Context, symbol string) Quote
}

// Batch is the ordered result of one full poll cycle over a symbol list.
// Seq counts batches; Generation is the version of the symbol list the
// batch was fetched for.
type Batch struct {
    Seq         uint64    `json:"seq"`
    Generation  uint64    `json:"generation"`
    Symbols     []string  `json:"symbols"`
    Quotes      []Quote   `json:"quotes"`
    StartedAt   time.Time `json:"started_at"`
    CompletedAt time.Time `json:"completed_at"`
}

// Live reports how many quotes in the batch came from the remote API.
func (b Batch) Live() int {
    n := 0
    for _, q := range b.Quotes {
        if q.Source == SourceLive { n++ }
    }
    return n
}
