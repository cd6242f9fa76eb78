package main

import (
    "context"
    "encoding/json"
    "flag"
    "fmt"
    "log"
    "os"
    "time"

    "stockdash/internal/config"
    "stockdash/internal/httpx"
    "stockdash/internal/provider"
    "stockdash/internal/provider/alphavantage"
    "stockdash/internal/provider/alphavantageadapter"
    "stockdash/internal/provider/ratelimit"
    "stockdash/internal/provider/synthetic"
    "stockdash/internal/watchlist"
)

func main() {
    var symbolsCSV string
    var configPath string
    var delayMs int
    var timeout int

    flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", ""), "comma-separated ticker symbols (default: configured watchlist)")
    flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json or config.yaml (optional)")
    flag.IntVar(&delayMs, "delay", 0, "delay between requests in ms (default: config request_delay_ms)")
    flag.IntVar(&timeout, "timeout", 0, "per-request timeout seconds (default: config timeout_sec)")
    flag.Parse()

    cfg, err := config.Load(configPath)
    if err != nil { log.Fatalf("config: %v", err) }
    if delayMs > 0 { cfg.AlphaVantage.RequestDelayMs = delayMs }
    if timeout > 0 { cfg.AlphaVantage.TimeoutSec = timeout }

    symbols := cfg.Poller.Symbols
    if symbolsCSV != "" { symbols = config.SplitCSV(symbolsCSV) }
    symbols = watchlist.New(symbols...).Symbols()
    if len(symbols) == 0 { log.Fatal("no symbols provided") }

    reqTimeout := time.Duration(cfg.AlphaVantage.TimeoutSec) * time.Second
    av := alphavantage.NewClient(
        cfg.AlphaVantage.APIKey,
        alphavantage.WithBaseURL(cfg.AlphaVantage.Endpoint),
        alphavantage.WithHTTPClient(httpx.New(reqTimeout)),
    )
    batch := &ratelimit.Sequential{
        F: alphavantageadapter.New(alphavantageadapter.Config{
            Name:    "AlphaVantage",
            Timeout: reqTimeout,
        }, av, synthetic.New(nil)),
        Delay: time.Duration(cfg.AlphaVantage.RequestDelayMs) * time.Millisecond,
    }

    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()

    started := time.Now()
    quotes, err := batch.FetchBatch(ctx, symbols)
    if err != nil { log.Fatalf("%s: %v", batch.Name(), err) }

    b := provider.Batch{Seq: 1, Generation: 1, Symbols: symbols, Quotes: quotes, StartedAt: started.UTC(), CompletedAt: time.Now().UTC()}
    log.Printf("%s: %d quotes (%d live) in %s", batch.Name(), len(quotes), b.Live(), time.Since(started).Round(time.Millisecond))

    out, _ := json.MarshalIndent(b, "", "  ")
    fmt.Println(string(out))
}

func getenv(key, def string) string { if v := os.Getenv(key); v != "" { return v }; return def }
