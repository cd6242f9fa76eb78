package alphavantageadapter

import (
    "context"
    "errors"
    "log"
    "math"
    "strconv"
    "strings"
    "time"

    "stockdash/internal/provider"
    "stockdash/internal/provider/alphavantage"
    "stockdash/internal/provider/synthetic"
)

type Config struct {
    Name string // display name, default: AlphaVantage
    // Timeout bounds a single quote request. 0 leaves it to the HTTP client.
    Timeout time.Duration
}

// Adapter turns the Alpha Vantage client into a provider.Fetcher that
// never fails: any problem with the live call yields a synthetic quote.
type Adapter struct {
    cfg      Config
    client   *alphavantage.Client
    fallback *synthetic.Generator
    now      func() time.Time
}

func New(cfg Config, client *alphavantage.Client, fallback *synthetic.Generator) *Adapter {
    if cfg.Name == "" { cfg.Name = "AlphaVantage" }
    if fallback == nil { fallback = synthetic.New(nil) }
    return &Adapter{cfg: cfg, client: client, fallback: fallback, now: time.Now}
}

func (a *Adapter) Name() string { return a.cfg.Name }

func (a *Adapter) Fetch(ctx context.Context, symbol string) provider.Quote {
    if a.cfg.Timeout > 0 {
        var cancel context.CancelFunc
        ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
        defer cancel()
    }

    log.Printf("%s: fetching %s", a.cfg.Name, symbol)
    gq, err := a.client.GetGlobalQuote(ctx, symbol)
    switch {
    case err == nil:
    case errors.Is(err, alphavantage.ErrRateLimited):
        log.Printf("%s: rate limit reached for %s, using fallback data", a.cfg.Name, symbol)
        return a.fallback.Quote(symbol)
    case errors.Is(err, alphavantage.ErrEmptyQuote):
        log.Printf("%s: no data for %s, using fallback data", a.cfg.Name, symbol)
        return a.fallback.Quote(symbol)
    default:
        log.Printf("%s: error fetching %s: %v", a.cfg.Name, symbol, err)
        return a.fallback.Quote(symbol)
    }

    sym := strings.TrimSpace(gq.Symbol)
    if sym == "" { sym = symbol }
    return provider.Quote{
        Symbol:        sym,
        Price:         parseFloat(gq.Price),
        Change:        parseFloat(gq.Change),
        ChangePercent: parseFloat(strings.TrimSuffix(strings.TrimSpace(gq.ChangePercent), "%")),
        Source:        provider.SourceLive,
        ReceivedAt:    a.now().UTC(),
    }
}

// parseFloat returns 0 for anything that is not a finite number.
func parseFloat(s string) float64 {
    v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
    if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
        return 0
    }
    return v
}
