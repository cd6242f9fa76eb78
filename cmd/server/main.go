package main

import (
    "context"
    "errors"
    "log"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "stockdash/internal/config"
    "stockdash/internal/feed/kafka"
    "stockdash/internal/feed/ws"
    "stockdash/internal/httpx"
    "stockdash/internal/poller"
    "stockdash/internal/provider/alphavantage"
    "stockdash/internal/provider/alphavantageadapter"
    "stockdash/internal/provider/cache"
    "stockdash/internal/provider/ratelimit"
    "stockdash/internal/provider/synthetic"
)

func main() {
    log.SetPrefix("stockdash ")

    // Config
    cfgPath := os.Getenv("CONFIG_FILE")
    cfg, err := config.Load(cfgPath)
    if err != nil { log.Fatalf("config: %v", err) }
    if cfg.AlphaVantage.APIKey == alphavantage.DemoKey {
        log.Println("warning: using the Alpha Vantage demo key; most symbols will use fallback data")
    }

    httpClient := httpx.New(time.Duration(cfg.AlphaVantage.TimeoutSec) * time.Second)

    av := alphavantage.NewClient(
        cfg.AlphaVantage.APIKey,
        alphavantage.WithBaseURL(cfg.AlphaVantage.Endpoint),
        alphavantage.WithHTTPClient(httpClient),
    )
    delay := time.Duration(cfg.AlphaVantage.RequestDelayMs) * time.Millisecond
    fallback := synthetic.New(nil)
    // Batch and ad-hoc lookups share one gate, so upstream calls never
    // overlap and stay delay apart.
    fetcher := &ratelimit.MinInterval{
        F: alphavantageadapter.New(alphavantageadapter.Config{
            Name:    "AlphaVantage",
            Timeout: time.Duration(cfg.AlphaVantage.TimeoutSec) * time.Second,
        }, av, fallback),
        Interval: delay,
        Fallback: fallback.Quote,
    }

    batch := &ratelimit.Sequential{
        F:     fetcher,
        Delay: delay,
    }

    hub := ws.NewHub()
    publishers := []poller.Publisher{hub}
    if cfg.Kafka.Enabled {
        kp, err := kafka.New(kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic, MaxRetries: cfg.Kafka.MaxRetries})
        if err != nil {
            log.Printf("warning: kafka disabled: %v", err)
        } else {
            defer kp.Close()
            publishers = append(publishers, kp)
        }
    }

    p := poller.New(batch, time.Duration(cfg.Poller.IntervalSec)*time.Second, cfg.Poller.Symbols, publishers...)

    lookup := &cache.Fetcher{
        F:        fetcher,
        TTL:      time.Duration(cfg.AlphaVantage.CacheTTLSeconds) * time.Second,
        MaxItems: cfg.AlphaVantage.CacheMaxItems,
    }

    s := &server{
        poller:        p,
        lookup:        lookup,
        hub:           hub,
        lookupTimeout: time.Duration(cfg.Server.RequestTimeoutSec) * time.Second,
    }
    srv := &http.Server{
        Addr:              ":" + cfg.Server.Port,
        Handler:           s.routes(),
        ReadHeaderTimeout: 5 * time.Second,
        ReadTimeout:       15 * time.Second,
        IdleTimeout:       60 * time.Second,
    }

    ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
    defer stop()

    go func() {
        if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
            log.Printf("poller: %v", err)
        }
    }()

    go func() {
        log.Printf("server listening on :%s", cfg.Server.Port)
        if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            log.Fatalf("server: %v", err)
        }
    }()

    // graceful shutdown
    <-ctx.Done()
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    _ = srv.Shutdown(shutdownCtx)
}
