package ratelimit

import (
    "context"
    "sync"
    "time"

    "stockdash/internal/provider"
)

// DefaultDelay is the pause after each request, sized for the free
// Alpha Vantage tier.
const DefaultDelay = time.Second

// Sequential fetches a symbol list one request at a time and waits Delay
// after every call, successful or not. There is never more than one
// request in flight.
type Sequential struct {
    F     provider.Fetcher
    Delay time.Duration
}

func (s *Sequential) Name() string { return s.F.Name() }

// FetchBatch returns one quote per symbol in list order. If ctx is
// canceled between calls it returns the quotes gathered so far along
// with ctx.Err().
func (s *Sequential) FetchBatch(ctx context.Context, symbols []string) ([]provider.Quote, error) {
    out := make([]provider.Quote, 0, len(symbols))
    for _, sym := range symbols {
        if err := ctx.Err(); err != nil {
            return out, err
        }
        out = append(out, s.F.Fetch(ctx, sym))
        if err := s.wait(ctx); err != nil {
            return out, err
        }
    }
    return out, nil
}

func (s *Sequential) wait(ctx context.Context) error {
    if s.Delay <= 0 {
        return nil
    }
    t := time.NewTimer(s.Delay)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return ctx.Err()
    case <-t.C:
        return nil
    }
}

// MinInterval wraps a fetcher and enforces a minimum time between
// upstream calls, measured from the end of one call to the start of the
// next. Calls never overlap: the gate is held for the whole call. Waiting
// for the gate or the interval returns early if ctx is canceled; the quote
// then comes from Fallback, or carries only the symbol when Fallback is nil.
type MinInterval struct {
    F        provider.Fetcher
    Interval time.Duration
    Fallback func(symbol string) provider.Quote

    once sync.Once
    gate chan struct{}
    last time.Time
}

func (m *MinInterval) Name() string { return m.F.Name() }

func (m *MinInterval) Fetch(ctx context.Context, symbol string) provider.Quote {
    m.once.Do(func() { m.gate = make(chan struct{}, 1) })
    select {
    case m.gate <- struct{}{}:
    case <-ctx.Done():
        return m.skip(symbol)
    }
    defer func() { <-m.gate }()

    if wait := time.Until(m.last.Add(m.Interval)); m.Interval > 0 && wait > 0 {
        t := time.NewTimer(wait)
        defer t.Stop()
        select {
        case <-ctx.Done():
            return m.skip(symbol)
        case <-t.C:
        }
    }
    q := m.F.Fetch(ctx, symbol)
    m.last = time.Now()
    return q
}

func (m *MinInterval) skip(symbol string) provider.Quote {
    if m.Fallback != nil {
        return m.Fallback(symbol)
    }
    return provider.Quote{Symbol: symbol, Source: provider.SourceFallback}
}
