package amount

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Field holds the last accepted amount text. Rejected input leaves it untouched.
type Field struct {
	mu    sync.RWMutex
	text  string
	value decimal.Decimal
}

// NewField returns a field initialised with text, or an empty field when text
// is not acceptable.
func NewField(text string) *Field {
	f := &Field{}
	f.Set(text)
	return f
}

// Set parses raw and stores it when accepted. The returned Result tells the
// caller why input was dropped.
func (f *Field) Set(raw string) Result {
	res := Parse(raw)
	if !res.OK {
		return res
	}

	f.mu.Lock()
	f.text = res.Text
	f.value = res.Value
	f.mu.Unlock()
	return res
}

// Clear empties the field. Parse never accepts empty text, so this is the only
// way back to "no amount".
func (f *Field) Clear() {
	f.mu.Lock()
	f.text = ""
	f.value = decimal.Zero
	f.mu.Unlock()
}

func (f *Field) Text() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.text
}

func (f *Field) Value() decimal.Decimal {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.value
}

// IsZero reports whether the field is empty or holds a zero amount.
func (f *Field) IsZero() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.text == "" || f.value.IsZero()
}
