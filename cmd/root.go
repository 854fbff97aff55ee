package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"arbiswap/config"
	"arbiswap/pkg/apperrors"
)

var rootCmd = &cobra.Command{
	Use:   "arbiswap",
	Short: "A CLI for routed token swaps on Evmos",
	Long: `arbiswap quotes and executes token swaps through a routing service that
splits orders across Evmos DEX pools. Quotes refresh automatically while you
edit a trade, and ERC-20 approvals are sent only when needed.

Examples:
  arbiswap quote 1.5 EVMOS to axlUSDC
  arbiswap swap 100 axlUSDC to WEVMOS --yes
  arbiswap trade
  arbiswap list-tokens
  arbiswap status <tx-hash> --watch`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		setupLogging(verbose)
	},
}

// Execute runs the root command
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		printError(err)
	}
	return err
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

// setupLogging routes diagnostics to stderr. The level comes from the
// log_level setting unless verbose forces debug.
func setupLogging(verbose bool) {
	level := zerolog.WarnLevel
	if cfg, err := config.Peek(); err == nil && cfg.LogLevel != "" {
		if parsed, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
			level = parsed
		}
	}
	if verbose {
		level = zerolog.DebugLevel
	}

	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()
}

func printError(err error) {
	msg := err.Error()
	if apperrors.KindOf(err) != nil {
		msg = apperrors.UserMessage(err)
	}
	fmt.Fprintf(os.Stderr, "\n%s %s\n\n", color.RedString("Error:"), msg)
	log.Debug().Err(err).Str("component", "cmd").Msg("Command failed")
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", color.GreenString(message))
}
