package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"arbiswap/config"
	"arbiswap/pkg/app"
	"arbiswap/pkg/apperrors"
	"arbiswap/pkg/orchestrator"
	"arbiswap/pkg/parser"
	"arbiswap/pkg/store"
	"arbiswap/pkg/types"
)

var (
	noConfirm    bool
	slippageFlag string
	flashMode    bool
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <source-token> to <dest-token>",
	Short: "Fetch a routed quote without trading",
	Long: `Fetch the expected output of a swap from the routing service.

Examples:
  arbiswap quote 1 EVMOS to axlUSDC
  arbiswap quote 250 ceUSDC to WEVMOS --slippage 0.5
  arbiswap quote 10 EVMOS to WEVMOS --flash`,
	Args: cobra.MinimumNArgs(4),
	RunE: runQuote,
}

var swapCmd = &cobra.Command{
	Use:   "swap <amount> <source-token> to <dest-token>",
	Short: "Quote and execute a token swap",
	Long: `Quote a swap and, once confirmed, approve the router if needed and send
the swap transaction from the configured wallet.

Examples:
  arbiswap swap 1 EVMOS to axlUSDC
  arbiswap swap 100 axlUSDC to WEVMOS --slippage 0.3

  # Skip the confirmation prompt
  arbiswap swap 1 EVMOS to ceUSDC --yes`,
	Args: cobra.MinimumNArgs(4),
	RunE: runSwap,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
	rootCmd.AddCommand(swapCmd)

	for _, c := range []*cobra.Command{quoteCmd, swapCmd} {
		c.Flags().StringVar(&slippageFlag, "slippage", "", "Slippage tolerance in percent (default from slippage_bps)")
	}
	quoteCmd.Flags().BoolVar(&flashMode, "flash", false, "Quote a cyclic route (preview only)")
	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
}

// signalContext is cancelled on Ctrl+C
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// openForRequest opens a session and applies a parsed swap command to it
func openForRequest(ctx context.Context, args []string) (*app.Session, error) {
	req, err := parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}
	if err := parser.Validate(req); err != nil {
		return nil, err
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	s, err := app.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := applyRequest(s, req); err != nil {
		s.Close()
		return nil, err
	}
	if err := s.Start(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func applyRequest(s *app.Session, req *types.SwapRequest) error {
	in, ok := s.Tokens.BySymbol(parser.CanonicalSymbol(req.SourceToken))
	if !ok {
		return fmt.Errorf("unknown token %s (try: arbiswap list-tokens)", req.SourceToken)
	}
	out, ok := s.Tokens.BySymbol(parser.CanonicalSymbol(req.DestToken))
	if !ok {
		return fmt.Errorf("unknown token %s (try: arbiswap list-tokens)", req.DestToken)
	}
	s.Store.SetTokenIn(in)
	s.Store.SetTokenOut(out)

	if res := s.Store.SetAmount(req.Amount); !res.OK {
		return apperrors.Wrap(apperrors.ErrInputRejected, errors.Errorf("%s: %s", req.Amount, res.Reason))
	}

	if slippageFlag != "" {
		pct, err := parsePercent(slippageFlag)
		if err != nil {
			return err
		}
		if err := s.Store.SetSlippage(pct); err != nil {
			return err
		}
	}
	if flashMode {
		s.Store.SetMode(types.ModeFlash)
	}
	return nil
}

// parsePercent accepts "0.5" or "0.5%"
func parsePercent(raw string) (decimal.Decimal, error) {
	pct, err := decimal.NewFromString(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	if err != nil {
		return decimal.Zero, apperrors.Wrap(apperrors.ErrInputRejected, errors.Errorf("invalid slippage %q", raw))
	}
	return pct, nil
}

// fetchQuote skips the typing debounce and waits for the settled quote
func fetchQuote(ctx context.Context, s *app.Session, jsonOutput bool) (store.State, error) {
	sp := newSpinner("Fetching quote...", !jsonOutput)
	s.Quotes.Refresh()
	st, err := s.AwaitQuote(ctx)
	sp.Stop()
	return st, err
}

func runQuote(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx, cancel := signalContext()
	defer cancel()

	s, err := openForRequest(ctx, args)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := fetchQuote(ctx, s, jsonOutput)
	if err != nil {
		return err
	}

	if jsonOutput {
		printJSON(newQuoteView(st))
		return nil
	}
	displayQuote(st)
	if st.Mode == types.ModeFlash {
		color.Yellow("Flash routes are preview only and cannot be executed.\n")
	}
	return nil
}

func runSwap(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx, cancel := signalContext()
	defer cancel()

	s, err := openForRequest(ctx, args)
	if err != nil {
		return err
	}
	defer s.Close()

	st, err := fetchQuote(ctx, s, jsonOutput)
	if err != nil {
		return err
	}
	if !jsonOutput {
		displayQuote(st)
	}
	if err := st.CanExecute(); err != nil {
		return err
	}

	if !noConfirm && !jsonOutput {
		if !confirm("Proceed with swap?") {
			fmt.Println("\nSwap cancelled.")
			return nil
		}
	}

	res, err := executeWithProgress(ctx, s, jsonOutput)
	if jsonOutput {
		printJSON(newExecutionView(res, err))
		return err
	}
	if err != nil {
		return err
	}

	printSuccess("Swap confirmed!")
	fmt.Printf("  Transaction: %s\n\n", color.CyanString(res.SwapTx.Hex()))
	fmt.Println("You can check the receipt again using:")
	color.Cyan("  arbiswap status %s\n", res.SwapTx.Hex())
	return nil
}

// executeWithProgress runs the swap and prints each execution step
func executeWithProgress(ctx context.Context, s *app.Session, jsonOutput bool) (orchestrator.Result, error) {
	var (
		mu   sync.Mutex
		last orchestrator.State
	)
	unsub := s.Store.Subscribe(func(st store.State) {
		mu.Lock()
		defer mu.Unlock()
		if jsonOutput || (!st.Executing && !st.Execution.Terminal()) || st.Execution == last {
			return
		}
		last = st.Execution
		fmt.Printf("  %-20s %s\n", "Step:", coloredState(st.Execution))
	})
	defer unsub()

	if !jsonOutput {
		color.Yellow("\nExecuting swap...\n")
	}
	return s.Execute(ctx)
}

// executionView is the JSON form of an execution result
type executionView struct {
	Attempt    string   `json:"attempt"`
	State      string   `json:"state"`
	Path       []string `json:"path"`
	ApprovalTx string   `json:"approval_tx,omitempty"`
	SwapTx     string   `json:"swap_tx,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func newExecutionView(res orchestrator.Result, err error) executionView {
	v := executionView{Attempt: res.Attempt, State: res.State.String()}
	for _, p := range res.Path {
		v.Path = append(v.Path, p.String())
	}
	if res.ApprovalTx != (common.Hash{}) {
		v.ApprovalTx = res.ApprovalTx.Hex()
	}
	if res.SwapTx != (common.Hash{}) {
		v.SwapTx = res.SwapTx.Hex()
	}
	if err != nil {
		v.Error = apperrors.UserMessage(err)
	}
	return v
}
