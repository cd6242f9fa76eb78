package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"stockdash/internal/provider"
)

// fakeBatch records every batch it is asked for. When block is set, the
// first call waits until its context is canceled.
type fakeBatch struct {
	mu     sync.Mutex
	calls  [][]string
	starts []time.Time
	block  bool
	empty  bool
	hold   time.Duration
}

func (f *fakeBatch) FetchBatch(ctx context.Context, symbols []string) ([]provider.Quote, error) {
	f.mu.Lock()
	f.calls = append(f.calls, symbols)
	f.starts = append(f.starts, time.Now())
	first := len(f.calls) == 1
	hold := f.hold
	f.mu.Unlock()

	time.Sleep(hold)

	if f.block && first {
		<-ctx.Done()
		return []provider.Quote{{Symbol: "STALE", Source: provider.SourceFallback}}, ctx.Err()
	}
	if f.empty {
		return nil, nil
	}
	out := make([]provider.Quote, 0, len(symbols))
	for _, s := range symbols {
		out = append(out, provider.Quote{Symbol: s, Price: 1, Source: provider.SourceLive})
	}
	return out, nil
}

func (f *fakeBatch) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func startPoller(t *testing.T, p *Poller) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- p.Run(ctx) }()
	return func() error {
		cancel()
		select {
		case err := <-errCh:
			return err
		case <-time.After(2 * time.Second):
			t.Fatal("poller did not stop")
			return nil
		}
	}
}

func symbolsOf(qs []provider.Quote) []string {
	out := make([]string, 0, len(qs))
	for _, q := range qs {
		out = append(out, q.Symbol)
	}
	return out
}

func TestRun_FirstBatchIsImmediate(t *testing.T) {
	f := &fakeBatch{}
	p := New(f, time.Hour, []string{"aapl", "GOOGL"})
	require.True(t, p.State().Loading)

	stop := startPoller(t, p)
	require.Eventually(t, func() bool { return p.State().Seq == 1 }, time.Second, 5*time.Millisecond)

	s := p.State()
	require.False(t, s.Loading)
	require.Empty(t, s.Error)
	require.Equal(t, []string{"AAPL", "GOOGL"}, symbolsOf(s.Quotes))
	require.False(t, s.UpdatedAt.IsZero())

	require.ErrorIs(t, stop(), context.Canceled)
}

func TestRun_RepeatsOnInterval(t *testing.T) {
	f := &fakeBatch{}
	p := New(f, 20*time.Millisecond, []string{"AAPL"})

	stop := startPoller(t, p)
	require.Eventually(t, func() bool { return len(f.Calls()) >= 3 }, time.Second, 5*time.Millisecond)
	_ = stop()
}

func TestRun_IntervalRunsStartToStart(t *testing.T) {
	f := &fakeBatch{hold: 80 * time.Millisecond}
	p := New(f, 100*time.Millisecond, []string{"AAPL"})

	stop := startPoller(t, p)
	require.Eventually(t, func() bool { return len(f.Calls()) >= 3 }, 2*time.Second, 5*time.Millisecond)
	_ = stop()

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 1; i < 3; i++ {
		gap := f.starts[i].Sub(f.starts[i-1])
		// end-to-start scheduling would put these 180ms apart
		require.GreaterOrEqual(t, gap, 90*time.Millisecond)
		require.Less(t, gap, 160*time.Millisecond)
	}
}

func TestSetSymbols_RestartsWithoutStackingTimers(t *testing.T) {
	f := &fakeBatch{}
	p := New(f, time.Hour, []string{"AAPL"})

	stop := startPoller(t, p)
	defer stop()
	require.Eventually(t, func() bool { return len(f.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	p.SetSymbols([]string{"MSFT", "AMZN"})
	require.Eventually(t, func() bool { return len(f.Calls()) == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"MSFT", "AMZN"}, f.Calls()[1])

	// the hour-long timer was reset, not duplicated
	time.Sleep(100 * time.Millisecond)
	require.Len(t, f.Calls(), 2)
	require.Equal(t, uint64(2), p.State().Generation)
}

func TestSetSymbols_SameListIsNoop(t *testing.T) {
	f := &fakeBatch{}
	p := New(f, time.Hour, []string{"AAPL"})

	stop := startPoller(t, p)
	defer stop()
	require.Eventually(t, func() bool { return len(f.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	p.SetSymbols([]string{"aapl"})
	time.Sleep(50 * time.Millisecond)
	require.Len(t, f.Calls(), 1)
}

func TestAddRemoveSymbol_Restart(t *testing.T) {
	f := &fakeBatch{}
	p := New(f, time.Hour, []string{"AAPL"})

	stop := startPoller(t, p)
	defer stop()
	require.Eventually(t, func() bool { return len(f.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, p.AddSymbol("nflx"))
	require.Eventually(t, func() bool { return len(f.Calls()) == 2 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"AAPL", "NFLX"}, f.Calls()[1])

	require.NoError(t, p.RemoveSymbol("AAPL"))
	require.Eventually(t, func() bool { return len(f.Calls()) == 3 }, time.Second, 5*time.Millisecond)
	require.Equal(t, []string{"NFLX"}, f.Calls()[2])

	require.Error(t, p.AddSymbol("NFLX"))
	require.Error(t, p.RemoveSymbol("AAPL"))
	require.Equal(t, []string{"NFLX"}, p.Symbols())
}

func TestRun_InFlightBatchIsDiscardedOnChange(t *testing.T) {
	f := &fakeBatch{block: true}
	p := New(f, time.Hour, []string{"AAPL"})

	stop := startPoller(t, p)
	defer stop()
	require.Eventually(t, func() bool { return len(f.Calls()) == 1 }, time.Second, 5*time.Millisecond)

	p.SetSymbols([]string{"MSFT"})
	require.Eventually(t, func() bool { return p.State().Seq == 1 }, time.Second, 5*time.Millisecond)

	s := p.State()
	require.Equal(t, []string{"MSFT"}, symbolsOf(s.Quotes))
	require.Equal(t, []string{"MSFT"}, s.Symbols)
}

func TestRun_EmptyBatchKeepsPriorQuotes(t *testing.T) {
	f := &fakeBatch{}
	p := New(f, time.Hour, []string{"AAPL"})

	stop := startPoller(t, p)
	defer stop()
	require.Eventually(t, func() bool { return p.State().Seq == 1 }, time.Second, 5*time.Millisecond)

	f.mu.Lock()
	f.empty = true
	f.mu.Unlock()
	p.SetSymbols(nil)

	require.Eventually(t, func() bool { return p.State().Error != "" }, time.Second, 5*time.Millisecond)
	s := p.State()
	require.Equal(t, NoDataMessage, s.Error)
	require.Equal(t, []string{"AAPL"}, symbolsOf(s.Quotes))
	require.False(t, s.Loading)
}

func TestRun_PublishesEachBatch(t *testing.T) {
	ctrl := gomock.NewController(t)
	pub := NewMockPublisher(ctrl)
	failing := NewMockPublisher(ctrl)

	published := make(chan provider.Batch, 1)
	pub.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, b provider.Batch) error {
			published <- b
			return nil
		}).
		Times(1)
	failing.EXPECT().
		Publish(gomock.Any(), gomock.Any()).
		Return(errors.New("broker down")).
		Times(1)

	p := New(&fakeBatch{}, time.Hour, []string{"AAPL", "META"}, failing, pub)
	stop := startPoller(t, p)
	defer stop()

	select {
	case b := <-published:
		require.Equal(t, uint64(1), b.Seq)
		require.Equal(t, []string{"AAPL", "META"}, b.Symbols)
		require.Equal(t, 2, b.Live())
		require.False(t, b.CompletedAt.Before(b.StartedAt))
	case <-time.After(time.Second):
		t.Fatal("batch was not published")
	}
}

func TestState_ReturnsCopy(t *testing.T) {
	p := New(&fakeBatch{}, time.Hour, []string{"AAPL"})
	s := p.State()
	s.Symbols[0] = "XXX"
	require.Equal(t, []string{"AAPL"}, p.State().Symbols)
}
