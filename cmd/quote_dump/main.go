package main

import (
    "bufio"
    "context"
    "encoding/json"
    "errors"
    "flag"
    "log"
    "os"
    "time"

    "stockdash/internal/config"
    "stockdash/internal/httpx"
    "stockdash/internal/provider/alphavantage"
    "stockdash/internal/watchlist"
)

func main() {
    var (
        symbolsCSV string
        outPath    string
        cfgPath    string
        timeoutSec int
        delayMs    int
        maxRetries int
    )
    flag.StringVar(&symbolsCSV, "symbols", "", "comma-separated ticker symbols (default: configured watchlist)")
    flag.StringVar(&outPath, "out", "global_quotes.json", "output JSON file path")
    flag.StringVar(&cfgPath, "config", "", "path to config.json or config.yaml (optional)")
    flag.IntVar(&timeoutSec, "timeout", 20, "HTTP timeout seconds")
    flag.IntVar(&delayMs, "delay", 0, "delay between requests in ms (default: config request_delay_ms)")
    flag.IntVar(&maxRetries, "retries", 3, "max retries on 429")
    flag.Parse()

    cfg, err := config.Load(cfgPath)
    if err != nil {
        log.Fatalf("config: %v", err)
    }
    if delayMs <= 0 {
        delayMs = cfg.AlphaVantage.RequestDelayMs
    }
    symbols := cfg.Poller.Symbols
    if symbolsCSV != "" {
        symbols = config.SplitCSV(symbolsCSV)
    }
    symbols = watchlist.New(symbols...).Symbols()
    if len(symbols) == 0 {
        log.Fatal("no symbols provided")
    }
    log.Printf("symbols: %d", len(symbols))

    av := alphavantage.NewClient(
        cfg.AlphaVantage.APIKey,
        alphavantage.WithBaseURL(cfg.AlphaVantage.Endpoint),
        alphavantage.WithHTTPClient(httpx.New(time.Duration(timeoutSec)*time.Second)),
    )

    outFile, err := os.Create(outPath)
    if err != nil {
        log.Fatalf("create out: %v", err)
    }
    defer outFile.Close()
    bw := bufio.NewWriterSize(outFile, 1<<16)

    // The output is one object keyed by symbol holding each raw body.
    _, _ = bw.WriteString("{")
    first := true
    delay := time.Duration(delayMs) * time.Millisecond

    fetch := func(symbol string) ([]byte, error) {
        attempt := 0
        for {
            ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
            body, err := av.Raw(ctx, symbol)
            cancel()
            if err == nil {
                return body, nil
            }
            if errors.Is(err, alphavantage.ErrRateLimited) && attempt < maxRetries {
                back := time.Duration(250*(1<<attempt)) * time.Millisecond
                time.Sleep(back)
                attempt++
                continue
            }
            return nil, err
        }
    }

    written := 0
    for i, sym := range symbols {
        body, err := fetch(sym)
        if err != nil {
            log.Printf("skip %s: %v", sym, err)
        } else if !json.Valid(body) {
            log.Printf("skip %s: response is not JSON", sym)
        } else {
            key, _ := json.Marshal(sym)
            if !first { _, _ = bw.WriteString(",") } else { first = false }
            _, _ = bw.Write(key)
            _, _ = bw.WriteString(":")
            _, _ = bw.Write(body)
            written++
        }
        // one request at a time, spaced like the poller
        if i < len(symbols)-1 {
            time.Sleep(delay)
        }
    }

    _, _ = bw.WriteString("}\n")
    if err := bw.Flush(); err != nil {
        log.Fatalf("flush: %v", err)
    }
    log.Printf("done: wrote %d/%d symbols to %s", written, len(symbols), outPath)
}
