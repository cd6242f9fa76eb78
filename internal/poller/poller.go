// Package poller drives periodic batch fetches over a watchlist and keeps
// the latest result as dashboard state.
package poller

import (
	"context"
	"log"
	"slices"
	"sync"
	"time"

	"stockdash/internal/provider"
	"stockdash/internal/watchlist"
)

const (
	// DefaultInterval is the time between the starts of two batches.
	DefaultInterval = 5 * time.Minute

	// NoDataMessage is shown when a batch produced no quotes at all.
	NoDataMessage = "No stock data available. Please try again later."
)

// BatchFetcher fetches quotes for a whole symbol list.
type BatchFetcher interface {
	FetchBatch(ctx context.Context, symbols []string) ([]provider.Quote, error)
}

// Publisher receives every batch that becomes current state.
//
//go:generate mockgen -package=poller -destination=mock_publisher_test.go -source=poller.go Publisher
type Publisher interface {
	Publish(ctx context.Context, b provider.Batch) error
}

// State is what the dashboard renders. Readers always get a copy.
type State struct {
	Symbols    []string         `json:"symbols"`
	Quotes     []provider.Quote `json:"quotes"`
	Loading    bool             `json:"loading"`
	Error      string           `json:"error,omitempty"`
	UpdatedAt  time.Time        `json:"updated_at"`
	Generation uint64           `json:"generation"`
	Seq        uint64           `json:"seq"`
}

// Poller re-runs a batch every Interval and immediately whenever the
// symbol list changes. Only the Run goroutine owns a timer, so there is
// never more than one pending cycle. A batch that is in flight when the
// list changes is canceled and its result discarded.
type Poller struct {
	batch      BatchFetcher
	interval   time.Duration
	publishers []Publisher

	mu    sync.RWMutex
	list  *watchlist.List
	state State

	restart chan struct{}
}

// New returns a Poller over symbols. A non-positive interval selects
// DefaultInterval.
func New(batch BatchFetcher, interval time.Duration, symbols []string, publishers ...Publisher) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	list := watchlist.New(symbols...)
	return &Poller{
		batch:      batch,
		interval:   interval,
		publishers: publishers,
		list:       list,
		state:      State{Symbols: list.Symbols(), Loading: true, Generation: 1},
		restart:    make(chan struct{}, 1),
	}
}

// State returns a snapshot of the current dashboard state.
func (p *Poller) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.state
	s.Symbols = slices.Clone(s.Symbols)
	s.Quotes = slices.Clone(s.Quotes)
	return s
}

// Symbols returns the current symbol list.
func (p *Poller) Symbols() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.list.Symbols()
}

// SetSymbols replaces the list and restarts the cycle if it changed.
func (p *Poller) SetSymbols(symbols []string) []string {
	p.mu.Lock()
	next := watchlist.New(symbols...)
	if p.list.Equal(next.Symbols()) {
		p.mu.Unlock()
		return next.Symbols()
	}
	p.list = next
	p.changedLocked()
	p.mu.Unlock()
	p.kick()
	return next.Symbols()
}

// AddSymbol appends one symbol and restarts the cycle.
func (p *Poller) AddSymbol(symbol string) error {
	p.mu.Lock()
	if err := p.list.Add(symbol); err != nil {
		p.mu.Unlock()
		return err
	}
	p.changedLocked()
	p.mu.Unlock()
	p.kick()
	return nil
}

// RemoveSymbol drops one symbol and restarts the cycle.
func (p *Poller) RemoveSymbol(symbol string) error {
	p.mu.Lock()
	if err := p.list.Remove(symbol); err != nil {
		p.mu.Unlock()
		return err
	}
	p.changedLocked()
	p.mu.Unlock()
	p.kick()
	return nil
}

func (p *Poller) changedLocked() {
	p.state.Generation++
	p.state.Symbols = p.list.Symbols()
}

// kick requests a restart. Requests coalesce.
func (p *Poller) kick() {
	select {
	case p.restart <- struct{}{}:
	default:
	}
}

// Run polls until ctx is done and returns ctx.Err().
func (p *Poller) Run(ctx context.Context) error {
	log.Printf("poller: starting, interval %s", p.interval)
	for {
		started := time.Now()
		restarted, err := p.cycle(ctx)
		if err != nil {
			return err
		}
		if restarted {
			continue
		}
		// Cycles start Interval apart. A batch that overran its slot is
		// followed by the next one at once.
		timer := time.NewTimer(max(p.interval-time.Since(started), 0))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-p.restart:
			timer.Stop()
		case <-timer.C:
		}
	}
}

type result struct {
	quotes []provider.Quote
	err    error
}

// cycle runs one batch. It reports restarted=true when the symbol list
// changed while the batch was in flight.
func (p *Poller) cycle(ctx context.Context) (restarted bool, err error) {
	// Any pending request is satisfied by the snapshot below.
	select {
	case <-p.restart:
	default:
	}

	p.mu.Lock()
	gen := p.state.Generation
	symbols := p.list.Symbols()
	p.state.Loading = true
	p.mu.Unlock()

	bctx, cancel := context.WithCancel(ctx)
	defer cancel()

	started := time.Now().UTC()
	done := make(chan result, 1)
	go func() {
		qs, err := p.batch.FetchBatch(bctx, symbols)
		done <- result{quotes: qs, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() != nil {
			return false, ctx.Err()
		}
		p.finish(ctx, gen, symbols, started, r)
		return false, nil
	case <-p.restart:
		cancel()
		<-done
		log.Printf("poller: symbol list changed, discarding batch for generation %d", gen)
		return true, nil
	case <-ctx.Done():
		cancel()
		<-done
		p.mu.Lock()
		p.state.Loading = false
		p.mu.Unlock()
		return false, ctx.Err()
	}
}

func (p *Poller) finish(ctx context.Context, gen uint64, symbols []string, started time.Time, r result) {
	p.mu.Lock()
	if gen != p.state.Generation {
		p.mu.Unlock()
		log.Printf("poller: dropping stale batch for generation %d", gen)
		return
	}
	p.state.Loading = false
	if r.err != nil {
		log.Printf("poller: batch error: %v", r.err)
	}
	if len(r.quotes) == 0 {
		// Prior quotes stay on screen under the error banner.
		p.state.Error = NoDataMessage
		p.mu.Unlock()
		log.Printf("poller: batch for %d symbols returned no quotes", len(symbols))
		return
	}
	p.state.Seq++
	b := provider.Batch{
		Seq:         p.state.Seq,
		Generation:  gen,
		Symbols:     symbols,
		Quotes:      r.quotes,
		StartedAt:   started,
		CompletedAt: time.Now().UTC(),
	}
	p.state.Quotes = slices.Clone(r.quotes)
	p.state.Error = ""
	p.state.UpdatedAt = b.CompletedAt
	p.mu.Unlock()

	log.Printf("poller: batch %d: %d quotes, %d live", b.Seq, len(b.Quotes), b.Live())
	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, b); err != nil {
			log.Printf("poller: publish batch %d: %v", b.Seq, err)
		}
	}
}
