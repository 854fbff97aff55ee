package amount

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// MaxIntegerDigits bounds the integer part: accepted values are < 10^MaxIntegerDigits.
	MaxIntegerDigits = 10
	// MaxFractionDigits bounds the number of typed fractional digits.
	MaxFractionDigits = 5
)

var maxInteger = decimal.New(1, MaxIntegerDigits)

// Rejection reasons reported in Result.Reason.
const (
	ReasonEmpty      = "empty"
	ReasonMalformed  = "malformed"
	ReasonTooLarge   = "integer part too large"
	ReasonTooPrecise = "too many fractional digits"
)

// Result is the outcome of Parse. A rejected Result carries the normalized text
// for diagnostics but must not replace a previously accepted amount.
type Result struct {
	Text   string
	Value  decimal.Decimal
	OK     bool
	Reason string
}

// Normalize drops every character that is not a digit or a dot and keeps only
// the first dot, so "1.2.3" becomes "1.23".
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	seenDot := false
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && !seenDot:
			b.WriteRune(r)
			seenDot = true
		}
	}
	return b.String()
}

// Parse normalizes raw keyboard input and validates it against the digit bounds.
func Parse(raw string) Result {
	text := Normalize(raw)

	value, ok := parseNumeric(text)
	if !ok {
		reason := ReasonMalformed
		if text == "" {
			reason = ReasonEmpty
		}
		return Result{Text: text, Reason: reason}
	}

	if value.Truncate(0).Cmp(maxInteger) >= 0 {
		return Result{Text: text, Value: value, Reason: ReasonTooLarge}
	}
	if fractionDigits(text) > MaxFractionDigits {
		return Result{Text: text, Value: value, Reason: ReasonTooPrecise}
	}

	return Result{Text: text, Value: value, OK: true}
}

// parseNumeric reads an already normalized string. A trailing dot is allowed
// and ignored; a lone dot is not a number.
func parseNumeric(text string) (decimal.Decimal, bool) {
	numeric := strings.TrimSuffix(text, ".")
	if numeric == "" {
		return decimal.Zero, false
	}
	if strings.HasPrefix(numeric, ".") {
		numeric = "0" + numeric
	}
	d, err := decimal.NewFromString(numeric)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

func fractionDigits(text string) int {
	i := strings.IndexByte(text, '.')
	if i < 0 {
		return 0
	}
	return len(text) - i - 1
}

// ToSmallestUnit converts a human amount into an integer string of the token's
// smallest unit. Digits beyond the token precision are truncated.
func ToSmallestUnit(text string, decimals int) (string, bool) {
	d, ok := parseNumeric(Normalize(text))
	if !ok {
		return "", false
	}
	return d.Shift(int32(decimals)).Truncate(0).String(), true
}

// FromSmallestUnit converts an integer string of smallest units into a human amount.
func FromSmallestUnit(units string, decimals int) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(units))
	if err != nil {
		return decimal.Zero, false
	}
	return d.Shift(-int32(decimals)), true
}
