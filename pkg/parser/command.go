package parser

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"arbiswap/pkg/amount"
	"arbiswap/pkg/apperrors"
	"arbiswap/pkg/types"
)

// Accepted one-line trades, with an optional leading "swap":
//
//	1.5 EVMOS to axlUSDC
//	swap 1,000 ceUSDC -> WEVMOS
var (
	amountPattern = regexp.MustCompile(`^([0-9][0-9,]*\.?[0-9]*|\.[0-9]+)$`)
	symbolPattern = regexp.MustCompile(`^[A-Za-z0-9.]+$`)
)

var errUsage = errors.New("usage: <amount> <token> to <token>, e.g. 1.5 EVMOS to axlUSDC")

// symbolAliases maps bridge-suffixed spellings to list symbols
var symbolAliases = map[string]string{
	"USDC.AXL": "AXLUSDC",
	"USDC.CE":  "CEUSDC",
}

// ParseCommand splits a one-line trade into its amount and token symbols.
// Symbols are kept as typed.
func ParseCommand(line string) (*types.SwapRequest, error) {
	fields := strings.Fields(line)
	if len(fields) > 0 && strings.EqualFold(fields[0], "swap") {
		fields = fields[1:]
	}
	if len(fields) != 4 || !isSeparator(fields[2]) {
		return nil, errors.Wrapf(errUsage, "cannot read %q", strings.TrimSpace(line))
	}

	amt, from, to := fields[0], fields[1], fields[3]
	if !amountPattern.MatchString(amt) {
		return nil, errors.Wrapf(errUsage, "%q is not an amount", amt)
	}
	for _, sym := range []string{from, to} {
		if !symbolPattern.MatchString(sym) {
			return nil, errors.Wrapf(errUsage, "%q is not a token symbol", sym)
		}
	}

	return &types.SwapRequest{Amount: amt, SourceToken: from, DestToken: to}, nil
}

// ParseArgs parses cobra positional arguments as one trade
func ParseArgs(args []string) (*types.SwapRequest, error) {
	return ParseCommand(strings.Join(args, " "))
}

// Validate checks the amount text and rejects a pair of identical tokens
func Validate(req *types.SwapRequest) error {
	if req.SourceToken == "" || req.DestToken == "" {
		return errors.New("both tokens must be given")
	}
	if res := amount.Parse(req.Amount); !res.OK {
		return apperrors.Wrap(apperrors.ErrInputRejected, errors.Errorf("%s: %s", req.Amount, res.Reason))
	}
	if CanonicalSymbol(req.SourceToken) == CanonicalSymbol(req.DestToken) {
		return errors.Errorf("cannot swap %s for itself", req.SourceToken)
	}
	return nil
}

// CanonicalSymbol upper-cases symbol and resolves known aliases
func CanonicalSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if s, ok := symbolAliases[symbol]; ok {
		return s
	}
	return symbol
}

func isSeparator(s string) bool {
	return strings.EqualFold(s, "to") || s == "->"
}
