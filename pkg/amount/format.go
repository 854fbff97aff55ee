package amount

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Render formats amount text for a field that is being edited. The settled
// numeric prefix is grouped with thousands separators, and a trailing dot or
// trailing fractional zeros are appended back verbatim so the text the user is
// typing is never rewritten mid-keystroke. Unparseable input renders as "".
func Render(value string) string {
	text := Normalize(value)
	settled, suffix := splitEditSuffix(text)

	d, ok := parseNumeric(settled)
	if !ok {
		return ""
	}
	return renderDecimal(d, -1) + suffix
}

// RenderFixed formats a settled value for display with the given number of
// significant fractional digits. Values below 1 get extra fractional digits so
// that the requested count of significant digits stays visible.
func RenderFixed(value string, significant int) string {
	d, ok := parseNumeric(Normalize(value))
	if !ok {
		return ""
	}
	return RenderDecimal(d, significant)
}

// RenderDecimal is RenderFixed for an already parsed value.
func RenderDecimal(d decimal.Decimal, significant int) string {
	if significant < 0 {
		significant = 0
	}
	places := significant + max(0, -exponent(d)-1)
	return renderDecimal(d, places)
}

// splitEditSuffix separates the not-yet-meaningful tail of an in-progress edit:
// "111." -> ("111", "."), "0.000" -> ("0", ".000"), "111.200" -> ("111.2", "00").
func splitEditSuffix(text string) (string, string) {
	i := strings.IndexByte(text, '.')
	if i < 0 {
		return text, ""
	}
	intPart, frac := text[:i], text[i+1:]
	trimmed := strings.TrimRight(frac, "0")
	if trimmed == "" {
		return intPart, text[i:]
	}
	return intPart + "." + trimmed, frac[len(trimmed):]
}

// renderDecimal groups the integer part and appends the fractional part.
// places < 0 keeps every fractional digit the value carries.
func renderDecimal(d decimal.Decimal, places int) string {
	if places >= 0 {
		d = d.Round(int32(places))
	}

	sign := ""
	if d.Sign() < 0 {
		sign = "-"
		d = d.Abs()
	}

	intPart := d.Truncate(0)
	frac := d.Sub(intPart)

	var fracStr string
	if places < 0 {
		fracStr = frac.String()
	} else {
		fracStr = frac.StringFixed(int32(places))
	}
	// "0.25" -> ".25", "0" -> ""
	fracStr = strings.TrimPrefix(fracStr, "0")

	return sign + groupThousands(intPart.String()) + fracStr
}

// groupThousands inserts "," between every three digits of an integer string.
func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	b.Grow(len(digits) + len(digits)/3)
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// exponent is the power of ten of the most significant digit: 123 -> 2, 0.001 -> -3.
func exponent(d decimal.Decimal) int {
	if d.IsZero() {
		return 0
	}
	coef := d.Coefficient()
	coef.Abs(coef)
	return len(coef.String()) - 1 + int(d.Exponent())
}
