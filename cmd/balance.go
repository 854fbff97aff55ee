package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"arbiswap/config"
	"arbiswap/pkg/amount"
	"arbiswap/pkg/app"
	"arbiswap/pkg/parser"
)

var balanceCmd = &cobra.Command{
	Use:   "balance [token]",
	Short: "Show the wallet balance of a token",
	Long: `Show the connected wallet's balance of a token. Without an argument the
currently selected input token is used.

Examples:
  arbiswap balance
  arbiswap balance axlUSDC`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func runBalance(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx, cancel := signalContext()
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	s, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	sp := newSpinner("Reading balance...", !jsonOutput)
	err = s.Start(ctx)
	if err != nil {
		sp.Stop()
		return err
	}

	st := s.Store.Snapshot()
	tok := st.TokenIn
	if len(args) == 1 {
		var ok bool
		tok, ok = s.Tokens.BySymbol(parser.CanonicalSymbol(args[0]))
		if !ok {
			tok, ok = s.Tokens.Lookup(args[0])
		}
		if !ok {
			sp.Stop()
			return fmt.Errorf("unknown token %s (try: arbiswap list-tokens)", args[0])
		}
	}
	raw := s.BalanceOf(ctx, tok, st.Address)
	sp.Stop()

	bal := amount.RenderDecimal(decimal.NewFromBigInt(raw, -int32(tok.Decimals)), 6)
	if jsonOutput {
		printJSON(map[string]string{
			"address": st.Address.Hex(),
			"token":   tok.Symbol,
			"balance": bal,
			"raw":     raw.String(),
		})
		return nil
	}

	fmt.Printf("\n  Address:  %s\n", color.CyanString(st.Address.Hex()))
	fmt.Printf("  Balance:  %s %s\n\n", bal, color.YellowString(tok.Symbol))
	return nil
}
