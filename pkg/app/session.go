package app

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"arbiswap/config"
	"arbiswap/pkg/apperrors"
	"arbiswap/pkg/backend"
	"arbiswap/pkg/client"
	"arbiswap/pkg/orchestrator"
	"arbiswap/pkg/quote"
	"arbiswap/pkg/storage"
	"arbiswap/pkg/store"
	"arbiswap/pkg/tokenlist"
	"arbiswap/pkg/types"
	"arbiswap/pkg/wallet"
)

// PairStore persists and restores the selected token pair
type PairStore interface {
	store.PairSaver
	LoadTokenPair() (in, out types.Token, ok bool, err error)
}

// Deps are the collaborators a Session is assembled from
type Deps struct {
	Config  *config.Config
	Tokens  *tokenlist.List
	Pairs   PairStore
	Wallet  wallet.Wallet
	Reader  backend.Reader
	Fetcher quote.Fetcher
}

// Session wires the store, quote coordinator and orchestrator for one user
type Session struct {
	Store  *store.Store
	Quotes *quote.Coordinator
	Tokens *tokenlist.List

	cfg     *config.Config
	wallet  wallet.Wallet
	reader  backend.Reader
	backend backend.TransactionBackend
	orch    *orchestrator.Orchestrator

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	last    store.State
	started bool
	unsubs  []func()
	closers []func()
}

// Open dials the configured endpoints and builds a Session
func Open(ctx context.Context, cfg *config.Config) (*Session, error) {
	tokens, err := tokenlist.Load(cfg.TokenList)
	if err != nil {
		return nil, err
	}

	st, err := storage.NewStorage(cfg.StateFile)
	if err != nil {
		return nil, err
	}

	chain, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, errors.Wrap(err, "dial rpc")
	}
	closers := []func(){chain.Close}

	var w wallet.Wallet
	switch cfg.Wallet.Type {
	case config.WalletExtension:
		ext, err := wallet.DialExtension(ctx, cfg.Wallet.Endpoint)
		if err != nil {
			chain.Close()
			return nil, err
		}
		closers = append(closers, ext.Close)
		w = ext
	default:
		keyed, err := wallet.NewKeyed(chain, cfg.Wallet.PrivateKey, cfg.ChainID)
		if err != nil {
			chain.Close()
			return nil, err
		}
		w = keyed
	}

	s, err := NewSession(Deps{
		Config:  cfg,
		Tokens:  tokens,
		Pairs:   st,
		Wallet:  w,
		Reader:  chain,
		Fetcher: client.NewQuoteClient(cfg.QuoteAPIURL, cfg.Quote.Timeout),
	})
	if err != nil {
		for _, c := range closers {
			c()
		}
		return nil, err
	}
	s.closers = closers

	log.Debug().
		Str("component", "app").
		Str("wallet", cfg.Wallet.Type).
		Str("backend", cfg.Backend).
		Str("state", st.GetFilePath()).
		Msg("Session opened")
	return s, nil
}

// NewSession builds a Session from already constructed collaborators
func NewSession(d Deps) (*Session, error) {
	cfg := d.Config
	tokens := d.Tokens
	if tokens == nil {
		tokens = tokenlist.Default()
	}

	in, out := tokens.DefaultPair()
	if d.Pairs != nil {
		pin, pout, ok, err := d.Pairs.LoadTokenPair()
		if err != nil {
			log.Warn().Err(err).Str("component", "app").Msg("Failed to restore token pair")
		} else if ok {
			in = tokens.ResolveIn(pin.Address)
			out = tokens.ResolveOut(pout.Address)
		}
	}

	b, err := backend.New(backend.Options{
		Kind:         backend.Kind(cfg.Backend),
		Spender:      cfg.RouterAddress,
		PollInterval: cfg.ReceiptPoll,
	}, d.Wallet, d.Reader)
	if err != nil {
		return nil, err
	}

	var saver store.PairSaver
	if d.Pairs != nil {
		saver = d.Pairs
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		Tokens:  tokens,
		cfg:     cfg,
		wallet:  d.Wallet,
		reader:  d.Reader,
		backend: b,
		ctx:     ctx,
		cancel:  cancel,
	}

	s.Store = store.New(store.State{
		TokenIn:         in,
		TokenOut:        out,
		SlippagePercent: decimal.New(cfg.SlippageBps, -2),
		Mode:            types.ModeSwap,
		Routing:         store.Routing{MaxEdge: cfg.Routing.MaxEdge, MaxSplit: cfg.Routing.MaxSplit},
	}, saver)

	s.Quotes = quote.NewCoordinator(d.Fetcher, quote.Config{
		Debounce:        cfg.Quote.Debounce,
		RefreshInterval: cfg.Quote.RefreshInterval,
		RetryInterval:   cfg.Quote.RetryInterval,
		MaxAttempts:     cfg.Quote.MaxAttempts,
	})

	s.orch = orchestrator.New(b, cfg.NativeTokenAddress, s.onTransition)
	return s, nil
}

// Backend returns the selected transaction backend
func (s *Session) Backend() backend.TransactionBackend {
	return s.backend
}

// Start connects the wallet and begins following store changes with quotes
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.unsubs = append(s.unsubs,
		s.Quotes.Subscribe(s.Store.ApplyQuote),
		s.Store.Subscribe(s.onState),
	)
	s.mu.Unlock()

	addr, err := s.wallet.Connect(ctx)
	if err != nil {
		log.Error().Err(err).Str("component", "app").Msg("Wallet connection failed")
		return errors.Wrap(err, "connect wallet")
	}
	s.Store.SetAddress(addr)
	s.RefreshBalance(ctx)

	s.onState(s.Store.Snapshot())
	return nil
}

// onState forwards parameter changes to the coordinator and reloads the
// balance when the input token or account changes
func (s *Session) onState(st store.State) {
	s.mu.Lock()
	prev := s.last
	if prev.Version != 0 && st.Version <= prev.Version {
		s.mu.Unlock()
		return
	}
	s.last = st
	s.mu.Unlock()

	if st.QuoteInput() != prev.QuoteInput() || prev.Version == 0 {
		s.Quotes.Update(st.QuoteInput())
	}

	if prev.Version != 0 && (st.TokenIn.Address != prev.TokenIn.Address || st.Address != prev.Address) {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.RefreshBalance(s.ctx)
		}()
	}
}

// RefreshBalance reads the input token balance of the connected account
func (s *Session) RefreshBalance(ctx context.Context) *big.Int {
	st := s.Store.Snapshot()
	if st.TokenIn.IsZero() || st.Address == (common.Address{}) {
		return new(big.Int)
	}

	bal := s.BalanceOf(ctx, st.TokenIn, st.Address)

	cur := s.Store.Snapshot()
	if cur.TokenIn.Address == st.TokenIn.Address && cur.Address == st.Address {
		s.Store.SetBalance(bal)
	}
	return bal
}

// AwaitQuote blocks until the quote for the current parameters has settled.
// A failed fetch is returned as the error.
func (s *Session) AwaitQuote(ctx context.Context) (store.State, error) {
	changed := make(chan struct{}, 1)
	cancel := s.Store.Subscribe(func(store.State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer cancel()

	for {
		st := s.Store.Snapshot()
		key, ok := quote.KeyFor(st.Params())
		if !ok {
			return st, apperrors.Wrap(apperrors.ErrNotExecutable, errors.New("no amount to quote"))
		}
		q := st.Quote
		if q.HasKey && q.Key == key && !q.Loading && !q.Refetching {
			if q.Invalid {
				return st, q.Err
			}
			if q.Quote != nil {
				return st, nil
			}
		}

		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-changed:
		}
	}
}

// BalanceOf reads owner's balance of token without touching the store
func (s *Session) BalanceOf(ctx context.Context, token types.Token, owner common.Address) *big.Int {
	return wallet.TokenBalance(ctx, s.wallet, s.reader, token, s.cfg.NativeTokenAddress, owner)
}

// Execute runs approve then swap for the quote currently on display
func (s *Session) Execute(ctx context.Context) (orchestrator.Result, error) {
	st := s.Store.Snapshot()
	if err := st.CanExecute(); err != nil {
		return orchestrator.Result{}, err
	}

	res, err := s.orch.Execute(ctx, orchestrator.Request{
		TokenIn: st.TokenIn.Address,
		Owner:   st.Address,
		Quote:   st.Quote.Quote,
	})
	if errors.Is(err, apperrors.ErrExecutionInProgress) {
		return res, err
	}
	s.Store.SetExecution(res.State, false, err)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.RefreshBalance(s.ctx)
	}()
	return res, err
}

func (s *Session) onTransition(t orchestrator.Transition) {
	log.Debug().
		Str("component", "app").
		Str("attempt", t.Attempt).
		Stringer("from", t.From).
		Stringer("to", t.To).
		Msg("Execution step")
	s.Store.SetExecution(t.To, !t.To.Terminal(), t.Err)
}

// Close stops quote refreshing and releases connections
func (s *Session) Close() {
	s.mu.Lock()
	unsubs := s.unsubs
	s.unsubs = nil
	s.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	s.Quotes.Close()
	s.cancel()
	s.wg.Wait()

	for _, c := range s.closers {
		c()
	}
}
