package cache

import (
    "context"
    "sync"
    "time"

    "golang.org/x/sync/singleflight"
    "stockdash/internal/provider"
)

// entry stores a cached quote for a single symbol with expiry.
type entry struct {
    expiresAt time.Time
    quote     provider.Quote
}

// Fetcher caches live quotes per symbol for a TTL. Fallback quotes are
// passed through but never stored, so the next lookup tries the API again.
// Concurrent misses for one symbol share a single upstream call.
type Fetcher struct {
    F        provider.Fetcher
    TTL      time.Duration
    MaxItems int

    mu    sync.RWMutex
    items map[string]entry // key: symbol
    sf    singleflight.Group
}

func (c *Fetcher) Name() string { return c.F.Name() }

// Fetch returns the cached quote for symbol when still valid.
func (c *Fetcher) Fetch(ctx context.Context, symbol string) provider.Quote {
    if c.TTL <= 0 {
        return c.F.Fetch(ctx, symbol)
    }

    c.mu.RLock()
    e, ok := c.items[symbol]
    c.mu.RUnlock()
    if ok && time.Now().Before(e.expiresAt) {
        return e.quote
    }

    v, _, _ := c.sf.Do(symbol, func() (any, error) {
        q := c.F.Fetch(ctx, symbol)
        if q.Source == provider.SourceLive {
            c.store(symbol, q)
        }
        return q, nil
    })
    return v.(provider.Quote)
}

func (c *Fetcher) store(symbol string, q provider.Quote) {
    now := time.Now()
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.items == nil { c.items = make(map[string]entry) }
    c.items[symbol] = entry{expiresAt: now.Add(c.TTL), quote: q}

    // best-effort cap cache size: expired first, then arbitrary
    if c.MaxItems > 0 && len(c.items) > c.MaxItems {
        for k, v := range c.items {
            if now.After(v.expiresAt) { delete(c.items, k) }
        }
        for k := range c.items {
            if len(c.items) <= c.MaxItems { break }
            if k != symbol { delete(c.items, k) }
        }
    }
}

// Len reports the number of cached symbols, expired or not.
func (c *Fetcher) Len() int {
    c.mu.RLock()
    defer c.mu.RUnlock()
    return len(c.items)
}
