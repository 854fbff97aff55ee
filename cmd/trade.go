package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"arbiswap/config"
	"arbiswap/pkg/amount"
	"arbiswap/pkg/app"
	"arbiswap/pkg/apperrors"
	"arbiswap/pkg/parser"
	"arbiswap/pkg/store"
	"arbiswap/pkg/types"
)

var tradeCmd = &cobra.Command{
	Use:   "trade",
	Short: "Start an interactive trading session",
	Long: `Start an interactive session. Quotes refresh in the background while you
adjust the trade; type "help" for the list of commands.

Example session:
  > amount 1.5
  > to axlUSDC
  > slippage 0.5
  > swap`,
	Args: cobra.NoArgs,
	RunE: runTrade,
}

func init() {
	rootCmd.AddCommand(tradeCmd)
}

const tradeHelp = `Commands:
  amount <value>     set the amount to sell (a <value>)
  clear              clear the amount
  from <symbol>      select the token to sell
  to <symbol>        select the token to buy
  reverse            swap the sell and buy tokens
  slippage <pct>     set slippage tolerance in percent
  mode swap|flash    select the route mode
  refresh            refetch the quote now
  balance            reload the wallet balance
  show               print the current quote
  swap               execute the current quote
  quit               leave the session`

func runTrade(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	sp := newSpinner("Connecting wallet...", true)
	s, err := app.Open(ctx, cfg)
	if err != nil {
		sp.Stop()
		return err
	}
	defer s.Close()

	err = s.Start(ctx)
	sp.Stop()
	if err != nil {
		return err
	}

	st := s.Store.Snapshot()
	color.Green("\nConnected as %s (%s backend)", st.Address.Hex(), s.Backend().Kind())
	fmt.Printf("Selling %s for %s. Type \"help\" for commands.\n", st.TokenIn.Symbol, st.TokenOut.Symbol)

	unsub := s.Store.Subscribe(quotePrinter(os.Stdout))
	defer unsub()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	fmt.Print("> ")
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := handleTradeLine(ctx, s, line, os.Stdout)
			if err != nil {
				fmt.Fprintf(os.Stdout, "%s %s\n", color.RedString("Error:"), describe(err))
			}
			if quit {
				return nil
			}
			fmt.Print("> ")
		}
	}
}

func describe(err error) string {
	if apperrors.KindOf(err) != nil {
		return apperrors.UserMessage(err)
	}
	return err.Error()
}

// quotePrinter reports every newly settled quote once
func quotePrinter(w io.Writer) func(store.State) {
	var (
		mu      sync.Mutex
		lastSeq uint64
	)
	return func(st store.State) {
		q := st.Quote
		if !q.HasKey || q.Loading || q.Refetching || q.Debouncing {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if q.Seq <= lastSeq {
			return
		}
		lastSeq = q.Seq

		if q.Invalid {
			fmt.Fprintf(w, "\n%s\n> ", color.RedString("Amount of token is unavailable to swap."))
			return
		}
		if out, ok := st.ExpectedOut(); ok {
			fmt.Fprintf(w, "\nQuote: %s %s -> ~%s %s\n> ",
				amount.Render(st.AmountText), st.TokenIn.Symbol,
				amount.RenderDecimal(out, 3), color.YellowString(st.TokenOut.Symbol))
		}
	}
}

// handleTradeLine applies one session command. It reports whether the
// session should end.
func handleTradeLine(ctx context.Context, s *app.Session, line string, w io.Writer) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	verb, rest := strings.ToLower(fields[0]), strings.Join(fields[1:], " ")

	switch verb {
	case "quit", "exit", "q":
		return true, nil

	case "help", "?":
		fmt.Fprintln(w, tradeHelp)

	case "amount", "a":
		res := s.Store.SetAmount(rest)
		if !res.OK {
			return false, apperrors.Wrap(apperrors.ErrInputRejected, errors.New(res.Reason))
		}
		fmt.Fprintf(w, "Amount: %s %s\n", amount.Render(res.Text), s.Store.Snapshot().TokenIn.Symbol)

	case "clear":
		s.Store.ClearAmount()

	case "from", "to":
		tok, ok := s.Tokens.BySymbol(parser.CanonicalSymbol(rest))
		if !ok {
			tok, ok = s.Tokens.Lookup(rest)
		}
		if !ok {
			return false, fmt.Errorf("unknown token %q", rest)
		}
		if verb == "from" {
			s.Store.SetTokenIn(tok)
		} else {
			s.Store.SetTokenOut(tok)
		}
		st := s.Store.Snapshot()
		fmt.Fprintf(w, "Selling %s for %s\n", st.TokenIn.Symbol, st.TokenOut.Symbol)

	case "reverse", "r":
		s.Store.Reverse()
		st := s.Store.Snapshot()
		fmt.Fprintf(w, "Selling %s for %s\n", st.TokenIn.Symbol, st.TokenOut.Symbol)

	case "slippage":
		pct, err := parsePercent(rest)
		if err != nil {
			return false, err
		}
		if err := s.Store.SetSlippage(pct); err != nil {
			return false, err
		}
		fmt.Fprintf(w, "Slippage: %s%%\n", pct.String())

	case "mode":
		mode, ok := types.ParseMode(rest)
		if !ok {
			return false, fmt.Errorf("unknown mode %q (swap or flash)", rest)
		}
		s.Store.SetMode(mode)

	case "refresh":
		if !s.Quotes.Refresh() {
			fmt.Fprintln(w, "Nothing to quote yet.")
		}

	case "balance":
		s.RefreshBalance(ctx)
		st := s.Store.Snapshot()
		fmt.Fprintf(w, "Balance: %s %s\n", amount.RenderDecimal(st.BalanceDecimal(), 6), st.TokenIn.Symbol)

	case "show":
		displayQuote(s.Store.Snapshot())

	case "swap", "execute":
		res, err := executeWithProgress(ctx, s, false)
		if err != nil {
			return false, err
		}
		color.Green("Swap confirmed: %s", res.SwapTx.Hex())

	default:
		return false, fmt.Errorf("unknown command %q, type \"help\"", verb)
	}
	return false, nil
}
