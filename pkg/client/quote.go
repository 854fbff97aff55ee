package client

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"arbiswap/pkg/types"
)

const quotePath = "/api/v1/quote"

// QuoteClient calls the quote service. Each call is a single attempt; retry
// policy belongs to the caller.
type QuoteClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewQuoteClient creates a client for the quote service at baseURL
func NewQuoteClient(baseURL string, timeout time.Duration) *QuoteClient {
	return &QuoteClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

type quoteResponse struct {
	DexAgg struct {
		ExpectedAmountOut string `json:"expectedAmountOut"`
	} `json:"dexAgg"`
	MetamaskSwapTransaction *struct {
		To       string   `json:"to"`
		Data     string   `json:"data"`
		Value    quantity `json:"value"`
		GasLimit quantity `json:"gasLimit"`
	} `json:"metamaskSwapTransaction"`
	Error string `json:"error"`
}

// quantity accepts a hex string, a decimal string or a JSON number
type quantity struct {
	v *big.Int
}

func (q *quantity) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		q.v = nil
		return nil
	}
	base := 10
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s, base = s[2:], 16
	}
	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		return errors.Errorf("invalid quantity %q", s)
	}
	q.v = v
	return nil
}

// Values returns the query parameters for p
func Values(p types.SwapParameters) url.Values {
	q := url.Values{}
	q.Set("tokenInAddr", p.TokenIn.Hex())
	q.Set("tokenOutAddr", p.TokenOut.Hex())
	if p.From != (common.Address{}) {
		q.Set("from", p.From.Hex())
	}
	q.Set("amount", p.AmountIn)
	q.Set("slippageBps", strconv.FormatInt(p.SlippageBps, 10))
	q.Set("maxEdge", strconv.Itoa(p.MaxEdge))
	q.Set("maxSplit", strconv.Itoa(p.MaxSplit))
	q.Set("withCycle", strconv.FormatBool(p.WithCycle))
	return q
}

// GetQuote fetches one quote for p
func (c *QuoteClient) GetQuote(ctx context.Context, p types.SwapParameters) (*types.QuoteResult, error) {
	fullURL := c.baseURL + quotePath + "?" + Values(p).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build quote request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "quote request failed")
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read quote response")
	}

	log.Debug().
		Str("component", "quote-api").
		Int("status", resp.StatusCode).
		Str("amount", p.AmountIn).
		Msg("Quote response")

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var qr quoteResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, errors.Wrap(err, "failed to decode quote response")
	}
	if qr.Error != "" {
		return nil, errors.Errorf("quote service: %s", qr.Error)
	}
	return toResult(qr)
}

func toResult(qr quoteResponse) (*types.QuoteResult, error) {
	out := strings.TrimSpace(qr.DexAgg.ExpectedAmountOut)
	if _, ok := new(big.Int).SetString(out, 10); !ok {
		return nil, errors.Errorf("invalid expectedAmountOut %q", qr.DexAgg.ExpectedAmountOut)
	}

	result := &types.QuoteResult{
		ExpectedAmountOut: out,
		FetchedAt:         time.Now(),
	}

	mt := qr.MetamaskSwapTransaction
	if mt == nil || mt.To == "" {
		return result, nil
	}
	if !common.IsHexAddress(mt.To) {
		return nil, errors.Errorf("invalid transaction target %q", mt.To)
	}

	var data []byte
	if mt.Data != "" && mt.Data != "0x" {
		decoded, err := hexutil.Decode(mt.Data)
		if err != nil {
			return nil, errors.Wrap(err, "invalid transaction data")
		}
		data = decoded
	}

	tx := &types.UnsignedTx{
		To:    common.HexToAddress(mt.To),
		Data:  data,
		Value: new(big.Int),
	}
	if mt.Value.v != nil {
		tx.Value = mt.Value.v
	}
	if mt.GasLimit.v != nil {
		if !mt.GasLimit.v.IsUint64() {
			return nil, errors.Errorf("gas limit out of range: %s", mt.GasLimit.v)
		}
		tx.GasLimit = mt.GasLimit.v.Uint64()
	}
	result.Tx = tx
	return result, nil
}
