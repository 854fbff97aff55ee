package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"arbiswap/config"
	"arbiswap/pkg/tokenlist"
	"arbiswap/pkg/types"
)

var filterSymbol string

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens", "ls"},
	Short:   "List all supported tokens",
	Long: `List the tokens that can be swapped. The built-in list is used unless
token_list points at a JSON file of the same shape.

Examples:
  arbiswap list-tokens
  arbiswap list-tokens --symbol USDC`,
	RunE: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
}

func runListTokens(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Peek()
	if err != nil {
		return err
	}

	list, err := tokenlist.Load(cfg.TokenList)
	if err != nil {
		return err
	}

	filtered := filterTokens(list.All(), filterSymbol)

	if jsonOutput {
		printJSON(filtered)
		return nil
	}
	displayTokens(filtered, cfg)
	return nil
}

func filterTokens(tokens []types.Token, symbol string) []types.Token {
	if symbol == "" {
		return tokens
	}
	var out []types.Token
	for _, t := range tokens {
		if strings.Contains(strings.ToUpper(t.Symbol), strings.ToUpper(symbol)) {
			out = append(out, t)
		}
	}
	return out
}

func displayTokens(tokens []types.Token, cfg *config.Config) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	heading("SUPPORTED TOKENS")
	fmt.Println()
	for _, t := range tokens {
		address := t.Address.Hex()
		if t.IsNative(cfg.NativeTokenAddress) {
			address = "native"
		}
		fmt.Printf("  %-18s  %2d decimals  %-20s %s\n",
			color.YellowString(t.Symbol),
			t.Decimals,
			t.Name,
			color.HiBlackString(address))
	}
	fmt.Println()
	rule()
	fmt.Printf("\nTotal: %d tokens\n\n", len(tokens))
}
