// Package synthetic produces stand-in quotes when live data is unavailable.
package synthetic

import (
	"math/rand/v2"
	"sync"
	"time"

	"stockdash/internal/provider"
)

// reference holds fixed records for well-known symbols.
var reference = map[string]provider.Quote{
	"AAPL":   {Symbol: "AAPL", Price: 175.43, Change: 2.15, ChangePercent: 1.24},
	"GOOGL":  {Symbol: "GOOGL", Price: 134.99, Change: -0.45, ChangePercent: -0.33},
	"MSFT":   {Symbol: "MSFT", Price: 338.11, Change: 3.22, ChangePercent: 0.96},
	"AMZN":   {Symbol: "AMZN", Price: 145.68, Change: -1.32, ChangePercent: -0.90},
	"META":   {Symbol: "META", Price: 312.81, Change: 4.56, ChangePercent: 1.48},
	"ORACLE": {Symbol: "ORACLE", Price: 116.24, Change: 1.78, ChangePercent: 1.55},
}

// Reference returns the built-in record for symbol, if any.
func Reference(symbol string) (provider.Quote, bool) {
	q, ok := reference[symbol]
	return q, ok
}

// Generator returns reference records for known symbols and random but
// plausible ones for everything else.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

// New returns a Generator seeded from src. A nil src uses a random seed.
func New(src rand.Source) *Generator {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Generator{rnd: rand.New(src), now: time.Now}
}

// Quote never fails. Random values fall in price [0,1000),
// change [-5,5) and change percent [-2.5,2.5).
func (g *Generator) Quote(symbol string) provider.Quote {
	ts := g.now().UTC()
	if q, ok := reference[symbol]; ok {
		q.Source = provider.SourceFallback
		q.ReceivedAt = ts
		return q
	}
	g.mu.Lock()
	price := g.rnd.Float64() * 1000
	change := g.rnd.Float64()*10 - 5
	pct := g.rnd.Float64()*5 - 2.5
	g.mu.Unlock()
	return provider.Quote{
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: pct,
		Source:        provider.SourceFallback,
		ReceivedAt:    ts,
	}
}
