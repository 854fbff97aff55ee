package quote

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"arbiswap/pkg/amount"
	"arbiswap/pkg/apperrors"
	"arbiswap/pkg/types"
)

const (
	DefaultDebounce        = 200 * time.Millisecond
	DefaultRefreshInterval = 15 * time.Second
	DefaultRetryInterval   = 500 * time.Millisecond
	DefaultMaxAttempts     = 3
)

// Fetcher performs a single quote request
type Fetcher interface {
	GetQuote(ctx context.Context, p types.SwapParameters) (*types.QuoteResult, error)
}

// Config tunes the coordinator timing
type Config struct {
	// Debounce delays amount changes until typing pauses
	Debounce time.Duration
	// RefreshInterval is the delay after a settled fetch before refetching
	RefreshInterval time.Duration
	// RetryInterval is the first delay between failed attempts
	RetryInterval time.Duration
	// MaxAttempts bounds attempts per fetch, including the first
	MaxAttempts int
}

// DefaultConfig returns the production timings
func DefaultConfig() Config {
	return Config{
		Debounce:        DefaultDebounce,
		RefreshInterval: DefaultRefreshInterval,
		RetryInterval:   DefaultRetryInterval,
		MaxAttempts:     DefaultMaxAttempts,
	}
}

// Input is what the coordinator follows. The amount travels as typed text and
// is converted to smallest units with Decimals only when a key is built, so a
// token change never pairs the new token with units of the old one.
// Params.AmountIn is ignored.
type Input struct {
	Params     types.SwapParameters
	AmountText string
	Decimals   int
}

// paramsFor returns the request parameters with text as the amount
func (in Input) paramsFor(text string) types.SwapParameters {
	p := in.Params
	p.AmountIn = ""
	if text != "" {
		if units, ok := amount.ToSmallestUnit(text, in.Decimals); ok {
			p.AmountIn = units
		}
	}
	return p
}

// Snapshot is the coordinator state at one point in time. Seq grows with every
// change so consumers can drop out-of-order deliveries.
type Snapshot struct {
	Seq    uint64
	Key    types.SwapParameters
	HasKey bool
	Quote  *types.QuoteResult
	Err    error
	// Invalid marks the amount as unavailable to swap after a failed fetch
	Invalid    bool
	Loading    bool
	Refetching bool
	// Debouncing is true while an amount change waits for input to settle
	Debouncing bool
}

// Coordinator decides when quotes are fetched and which response may settle
// the displayed state. Only the most recently issued fetch can settle.
type Coordinator struct {
	fetcher Fetcher
	cfg     Config

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	latest      Input
	settledText string
	debounce    *time.Timer
	debounceGen uint64
	refresh     *time.Timer
	fetchSeq    uint64
	snap        Snapshot
	subs        map[int]func(Snapshot)
	nextSub     int
}

// NewCoordinator creates an idle coordinator. Zero config fields take defaults.
func NewCoordinator(fetcher Fetcher, cfg Config) *Coordinator {
	def := DefaultConfig()
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = def.RefreshInterval
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = def.RetryInterval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		fetcher: fetcher,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		subs:    make(map[int]func(Snapshot)),
	}
}

// Snapshot returns the current state
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Subscribe registers fn for every state change. The returned func removes it.
// fn runs outside the coordinator lock and may be called concurrently.
func (c *Coordinator) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Update feeds the latest input. Token, slippage and mode changes take effect
// at once together with the last settled amount text; new amount text settles
// only after the debounce window passes without further changes.
func (c *Coordinator) Update(in Input) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	c.latest = in
	changed := false
	if in.AmountText != c.settledText {
		c.armDebounceLocked()
		changed = c.setDebouncingLocked(true)
	} else {
		c.stopDebounceLocked()
		changed = c.setDebouncingLocked(false)
	}

	if c.applyLocked(in.paramsFor(c.settledText), false) {
		changed = true
	}

	c.unlockAndNotify(changed)
}

// Refresh flushes a pending amount change and refetches the current key
// immediately. It reports whether a fetch was issued.
func (c *Coordinator) Refresh() bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}

	c.stopDebounceLocked()
	c.setDebouncingLocked(false)
	c.settledText = c.latest.AmountText
	c.applyLocked(c.latest.paramsFor(c.settledText), true)
	issued := c.snap.HasKey
	c.unlockAndNotify(true)
	return issued
}

// Close stops timers and waits for in-flight fetches to return
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopDebounceLocked()
	c.stopRefreshLocked()
	c.fetchSeq++
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Coordinator) armDebounceLocked() {
	c.stopDebounceLocked()
	gen := c.debounceGen
	c.debounce = time.AfterFunc(c.cfg.Debounce, func() { c.onDebounce(gen) })
}

func (c *Coordinator) stopDebounceLocked() {
	c.debounceGen++
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
}

func (c *Coordinator) onDebounce(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.debounceGen {
		c.mu.Unlock()
		return
	}
	c.debounce = nil
	c.settledText = c.latest.AmountText
	c.setDebouncingLocked(false)
	c.applyLocked(c.latest.paramsFor(c.settledText), false)
	c.unlockAndNotify(true)
}

func (c *Coordinator) setDebouncingLocked(v bool) bool {
	if c.snap.Debouncing == v {
		return false
	}
	c.snap.Debouncing = v
	return true
}

// applyLocked moves to the key derived from p. A fetch is issued when the key
// changes or force is set. It reports whether the snapshot changed.
func (c *Coordinator) applyLocked(p types.SwapParameters, force bool) bool {
	key, ok := KeyFor(p)
	if !ok {
		if !c.snap.HasKey && c.snap.Quote == nil && !c.snap.Invalid {
			return false
		}
		// drop anything in flight for the old key
		c.fetchSeq++
		c.stopRefreshLocked()
		c.snap.Key = types.SwapParameters{}
		c.snap.HasKey = false
		c.snap.Quote = nil
		c.snap.Err = nil
		c.snap.Invalid = false
		c.snap.Loading = false
		c.snap.Refetching = false
		return true
	}

	if c.snap.HasKey && c.snap.Key == key && !force {
		return false
	}
	if !c.snap.HasKey || c.snap.Key != key {
		c.snap.Quote = nil
		c.snap.Err = nil
		c.snap.Invalid = false
	}
	c.snap.Key = key
	c.snap.HasKey = true
	c.startFetchLocked(key)
	return true
}

func (c *Coordinator) startFetchLocked(key types.SwapParameters) {
	c.stopRefreshLocked()
	c.fetchSeq++
	seq := c.fetchSeq

	c.snap.Loading = c.snap.Quote == nil
	c.snap.Refetching = c.snap.Quote != nil

	c.wg.Add(1)
	go c.fetch(seq, key)
}

func (c *Coordinator) fetch(seq uint64, key types.SwapParameters) {
	defer c.wg.Done()

	attempt := 0
	operation := func() (*types.QuoteResult, error) {
		attempt++
		q, err := c.fetcher.GetQuote(c.ctx, key)
		if err != nil {
			log.Debug().
				Err(err).
				Str("component", "quote").
				Uint64("fetch", seq).
				Int("attempt", attempt).
				Msg("Quote attempt failed")
			return nil, err
		}
		return q, nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInterval
	q, err := backoff.Retry(c.ctx, operation,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.cfg.MaxAttempts)),
	)

	c.mu.Lock()
	if c.closed || seq != c.fetchSeq {
		c.mu.Unlock()
		log.Debug().Str("component", "quote").Uint64("fetch", seq).Msg("Discarding superseded quote response")
		return
	}

	if err != nil {
		log.Warn().Err(err).Str("component", "quote").Int("attempts", attempt).Msg("Quote fetch failed")
		c.snap.Quote = nil
		c.snap.Err = apperrors.Wrap(apperrors.ErrQuoteFetchFailed, err)
		c.snap.Invalid = true
	} else {
		c.snap.Quote = q
		c.snap.Err = nil
		c.snap.Invalid = false
	}
	c.snap.Loading = false
	c.snap.Refetching = false

	c.refresh = time.AfterFunc(c.cfg.RefreshInterval, func() { c.onRefresh(seq) })
	c.unlockAndNotify(true)
}

func (c *Coordinator) onRefresh(seq uint64) {
	c.mu.Lock()
	if c.closed || seq != c.fetchSeq || !c.snap.HasKey {
		c.mu.Unlock()
		return
	}
	c.refresh = nil
	c.startFetchLocked(c.snap.Key)
	c.unlockAndNotify(true)
}

func (c *Coordinator) stopRefreshLocked() {
	if c.refresh != nil {
		c.refresh.Stop()
		c.refresh = nil
	}
}

// unlockAndNotify releases c.mu and, when changed, delivers the new snapshot.
func (c *Coordinator) unlockAndNotify(changed bool) {
	if !changed {
		c.mu.Unlock()
		return
	}
	c.snap.Seq++
	snap := c.snap
	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}
