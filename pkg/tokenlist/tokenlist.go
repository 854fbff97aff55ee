package tokenlist

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"arbiswap/pkg/types"
)

//go:embed tokens.json
var embedded []byte

type document struct {
	Result []types.Token `json:"result"`
}

// List is an ordered token list. The first two entries form the default pair.
type List struct {
	tokens []types.Token
}

// Default returns the embedded token list
func Default() *List {
	l, err := parse(embedded)
	if err != nil {
		panic(fmt.Sprintf("embedded token list: %v", err))
	}
	return l
}

// Load reads a token list file. An empty path yields the embedded list.
func Load(path string) (*List, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read token list")
	}
	return parse(data)
}

func parse(data []byte) (*List, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decode token list")
	}
	if len(doc.Result) < 2 {
		return nil, errors.New("token list needs at least two tokens")
	}
	return &List{tokens: doc.Result}, nil
}

// All returns a copy of the tokens in list order
func (l *List) All() []types.Token {
	out := make([]types.Token, len(l.tokens))
	copy(out, l.tokens)
	return out
}

// DefaultPair returns the first two entries
func (l *List) DefaultPair() (types.Token, types.Token) {
	return l.tokens[0], l.tokens[1]
}

// ByAddress finds a token by address
func (l *List) ByAddress(addr common.Address) (types.Token, bool) {
	for _, t := range l.tokens {
		if t.Address == addr {
			return t, true
		}
	}
	return types.Token{}, false
}

// BySymbol finds a token by symbol, ignoring case
func (l *List) BySymbol(symbol string) (types.Token, bool) {
	for _, t := range l.tokens {
		if strings.EqualFold(t.Symbol, symbol) {
			return t, true
		}
	}
	return types.Token{}, false
}

// Lookup resolves either a hex address or a symbol
func (l *List) Lookup(ref string) (types.Token, bool) {
	ref = strings.TrimSpace(ref)
	if common.IsHexAddress(ref) {
		return l.ByAddress(common.HexToAddress(ref))
	}
	return l.BySymbol(ref)
}

// ResolveIn maps a persisted input token back onto the list. Unknown
// addresses fall back to the first entry.
func (l *List) ResolveIn(addr common.Address) types.Token {
	if t, ok := l.ByAddress(addr); ok {
		return t
	}
	return l.tokens[0]
}

// ResolveOut is ResolveIn for the output token, falling back to the second entry.
func (l *List) ResolveOut(addr common.Address) types.Token {
	if t, ok := l.ByAddress(addr); ok {
		return t
	}
	return l.tokens[1]
}
