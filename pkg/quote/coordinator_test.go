package quote

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"arbiswap/pkg/apperrors"
	"arbiswap/pkg/types"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls []types.SwapParameters
	fn    func(ctx context.Context, p types.SwapParameters) (*types.QuoteResult, error)
}

func (f *fakeFetcher) GetQuote(ctx context.Context, p types.SwapParameters) (*types.QuoteResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, p)
	fn := f.fn
	f.mu.Unlock()

	if fn == nil {
		return &types.QuoteResult{ExpectedAmountOut: p.AmountIn, FetchedAt: time.Now()}, nil
	}
	return fn(ctx, p)
}

func (f *fakeFetcher) setFn(fn func(ctx context.Context, p types.SwapParameters) (*types.QuoteResult, error)) {
	f.mu.Lock()
	f.fn = fn
	f.mu.Unlock()
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeFetcher) last() types.SwapParameters {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

var (
	tokenIn  = common.HexToAddress("0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")
	tokenOut = common.HexToAddress("0x15C3Eb3B621d1Bff62CbA1c9536B7c1AE9149b57")
	otherOut = common.HexToAddress("0x51e44FfaD5C2B122C8b635671FCC8139dc636E82")
)

func paramsWith(amount string) types.SwapParameters {
	return types.SwapParameters{
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		AmountIn:    amount,
		SlippageBps: 100,
		MaxEdge:     4,
		MaxSplit:    10,
	}
}

func inputWith(text string) Input {
	return Input{Params: paramsWith(""), AmountText: text}
}

func testConfig() Config {
	return Config{
		Debounce:        40 * time.Millisecond,
		RefreshInterval: time.Hour,
		RetryInterval:   time.Millisecond,
		MaxAttempts:     3,
	}
}

func newTestCoordinator(t *testing.T, f Fetcher, cfg Config) *Coordinator {
	t.Helper()
	c := NewCoordinator(f, cfg)
	t.Cleanup(c.Close)
	return c
}

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func TestKeyFor(t *testing.T) {
	t.Parallel()

	_, ok := KeyFor(paramsWith(""))
	require.False(t, ok)

	_, ok = KeyFor(paramsWith("0"))
	require.False(t, ok)

	p := paramsWith("1")
	p.TokenOut = common.Address{}
	_, ok = KeyFor(p)
	require.False(t, ok)

	key, ok := KeyFor(paramsWith("007"))
	require.True(t, ok)
	require.Equal(t, "7", key.AmountIn)
}

func TestDebounceCoalescesAmountChanges(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Debounce = 150 * time.Millisecond
	f := &fakeFetcher{}
	c := newTestCoordinator(t, f, cfg)

	for _, amount := range []string{"1", "12", "123", "1234", "12345"} {
		c.Update(inputWith(amount))
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, c.Snapshot().Debouncing)
	require.Zero(t, f.count())

	require.Eventually(t, func() bool { return f.count() == 1 }, waitFor, tick)
	require.Equal(t, "12345", f.last().AmountIn)
	require.Never(t, func() bool { return f.count() > 1 }, 150*time.Millisecond, tick)

	snap := c.Snapshot()
	require.True(t, snap.HasKey)
	require.False(t, snap.Debouncing)
	require.Equal(t, "12345", snap.Quote.ExpectedAmountOut)
}

func TestNonAmountChangeAppliesImmediately(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	c := newTestCoordinator(t, f, testConfig())

	c.Update(inputWith("5"))
	require.Eventually(t, func() bool { return c.Snapshot().Quote != nil }, waitFor, tick)

	release := make(chan struct{})
	f.setFn(func(_ context.Context, p types.SwapParameters) (*types.QuoteResult, error) {
		<-release
		return &types.QuoteResult{ExpectedAmountOut: p.AmountIn}, nil
	})

	in := inputWith("5")
	in.Params.TokenOut = otherOut
	c.Update(in)

	snap := c.Snapshot()
	require.True(t, snap.HasKey)
	require.Equal(t, otherOut, snap.Key.TokenOut)
	require.Nil(t, snap.Quote, "quote of the previous key is not shown for the new key")
	require.True(t, snap.Loading)

	require.Eventually(t, func() bool { return f.count() == 2 }, waitFor, tick)
	require.Equal(t, otherOut, f.last().TokenOut)

	close(release)
	require.Eventually(t, func() bool { return c.Snapshot().Quote != nil }, waitFor, tick)
}

func TestTokenChangeConvertsSettledText(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	c := newTestCoordinator(t, f, testConfig())

	in := inputWith("1.5")
	in.Decimals = 18
	c.Update(in)
	require.Eventually(t, func() bool { return c.Snapshot().Quote != nil }, waitFor, tick)
	require.Equal(t, "1500000000000000000", f.last().AmountIn)

	in.Params.TokenIn = otherOut
	in.Decimals = 6
	c.Update(in)

	snap := c.Snapshot()
	require.False(t, snap.Debouncing)
	require.Equal(t, otherOut, snap.Key.TokenIn)
	require.Equal(t, "1500000", snap.Key.AmountIn)
	require.Eventually(t, func() bool { return f.count() == 2 }, waitFor, tick)
	require.Equal(t, "1500000", f.last().AmountIn)
	require.Never(t, func() bool { return f.count() > 2 }, 100*time.Millisecond, tick)
}

func TestLastIssuedFetchWins(t *testing.T) {
	t.Parallel()

	releaseA := make(chan struct{})
	releaseB := make(chan struct{})
	f := &fakeFetcher{}
	f.setFn(func(ctx context.Context, p types.SwapParameters) (*types.QuoteResult, error) {
		release := releaseB
		if p.AmountIn == "100" {
			release = releaseA
		}
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &types.QuoteResult{ExpectedAmountOut: "out-" + p.AmountIn}, nil
	})
	c := newTestCoordinator(t, f, testConfig())

	c.Update(inputWith("100"))
	require.True(t, c.Refresh())
	c.Update(inputWith("200"))
	require.True(t, c.Refresh())
	require.Eventually(t, func() bool { return f.count() == 2 }, waitFor, tick)

	close(releaseB)
	require.Eventually(t, func() bool {
		q := c.Snapshot().Quote
		return q != nil && q.ExpectedAmountOut == "out-200"
	}, waitFor, tick)

	close(releaseA)
	require.Never(t, func() bool {
		q := c.Snapshot().Quote
		return q == nil || q.ExpectedAmountOut != "out-200"
	}, 100*time.Millisecond, tick)
}

func TestRetryBound(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	f.setFn(func(context.Context, types.SwapParameters) (*types.QuoteResult, error) {
		return nil, errors.New("service unavailable")
	})
	c := newTestCoordinator(t, f, testConfig())

	c.Update(inputWith("1"))
	require.True(t, c.Refresh())

	require.Eventually(t, func() bool { return c.Snapshot().Invalid }, waitFor, tick)
	snap := c.Snapshot()
	require.ErrorIs(t, snap.Err, apperrors.ErrQuoteFetchFailed)
	require.Nil(t, snap.Quote)
	require.False(t, snap.Loading)
	require.Equal(t, 3, f.count())

	require.Never(t, func() bool { return f.count() > 3 }, 150*time.Millisecond, tick)
}

func TestTransientFailureIsRetried(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	failures := 2
	f := &fakeFetcher{}
	f.setFn(func(_ context.Context, p types.SwapParameters) (*types.QuoteResult, error) {
		mu.Lock()
		defer mu.Unlock()
		if failures > 0 {
			failures--
			return nil, errors.New("timeout")
		}
		return &types.QuoteResult{ExpectedAmountOut: p.AmountIn}, nil
	})
	c := newTestCoordinator(t, f, testConfig())

	c.Update(inputWith("9"))
	c.Refresh()

	require.Eventually(t, func() bool { return c.Snapshot().Quote != nil }, waitFor, tick)
	require.Equal(t, 3, f.count())
	require.False(t, c.Snapshot().Invalid)
	require.NoError(t, c.Snapshot().Err)
}

func TestErrorClearsPreviousQuote(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	c := newTestCoordinator(t, f, testConfig())

	c.Update(inputWith("3"))
	c.Refresh()
	require.Eventually(t, func() bool { return c.Snapshot().Quote != nil }, waitFor, tick)

	gate := make(chan struct{})
	f.setFn(func(context.Context, types.SwapParameters) (*types.QuoteResult, error) {
		<-gate
		return nil, errors.New("boom")
	})
	require.True(t, c.Refresh())
	snap := c.Snapshot()
	require.True(t, snap.Refetching)
	require.NotNil(t, snap.Quote, "quote stays visible while refetching")
	close(gate)

	require.Eventually(t, func() bool { return c.Snapshot().Invalid }, waitFor, tick)
	require.Nil(t, c.Snapshot().Quote)
}

func TestRefreshTimerRearms(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.RefreshInterval = 30 * time.Millisecond
	f := &fakeFetcher{}
	c := newTestCoordinator(t, f, cfg)

	c.Update(inputWith("1"))
	c.Refresh()

	require.Eventually(t, func() bool { return f.count() >= 3 }, waitFor, tick)
}

func TestClearingAmountDropsKey(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	c := newTestCoordinator(t, f, testConfig())

	c.Update(inputWith("1"))
	c.Refresh()
	require.Eventually(t, func() bool { return c.Snapshot().Quote != nil }, waitFor, tick)

	c.Update(inputWith(""))
	require.Eventually(t, func() bool { return !c.Snapshot().HasKey }, waitFor, tick)
	require.Nil(t, c.Snapshot().Quote)

	require.False(t, c.Refresh())
	require.Never(t, func() bool { return f.count() > 1 }, 100*time.Millisecond, tick)
}

func TestSubscribe(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	c := newTestCoordinator(t, f, testConfig())

	var mu sync.Mutex
	var seen []Snapshot
	cancel := c.Subscribe(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	c.Update(inputWith("2"))
	c.Refresh()
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) > 0 && seen[len(seen)-1].Quote != nil
	}, waitFor, tick)

	cancel()
	mu.Lock()
	n := len(seen)
	mu.Unlock()

	c.Update(inputWith("3"))
	c.Refresh()
	require.Eventually(t, func() bool { return f.count() == 2 }, waitFor, tick)
	require.Never(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) != n
	}, 50*time.Millisecond, tick)
}

func TestCloseStopsWork(t *testing.T) {
	t.Parallel()

	f := &fakeFetcher{}
	f.setFn(func(ctx context.Context, _ types.SwapParameters) (*types.QuoteResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	c := NewCoordinator(f, testConfig())

	c.Update(inputWith("1"))
	c.Refresh()
	require.Eventually(t, func() bool { return f.count() == 1 }, waitFor, tick)

	c.Close()
	c.Update(inputWith("2"))
	require.False(t, c.Refresh())
	require.Equal(t, 1, f.count())
}
