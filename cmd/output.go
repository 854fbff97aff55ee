package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"

	"arbiswap/pkg/amount"
	"arbiswap/pkg/orchestrator"
	"arbiswap/pkg/store"
)

const ruleWidth = 60

func newSpinner(suffix string, enabled bool) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + suffix
	if enabled {
		s.Start()
	}
	return s
}

func printJSON(v any) {
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(data))
}

func rule() {
	fmt.Println(strings.Repeat("=", ruleWidth))
}

func heading(title string) {
	fmt.Println()
	rule()
	pad := (ruleWidth - len(title)) / 2
	if pad < 0 {
		pad = 0
	}
	color.Green("%s%s", strings.Repeat(" ", pad), title)
	rule()
}

// quoteView is the JSON form of a displayed quote
type quoteView struct {
	AmountIn      string `json:"amount_in"`
	TokenIn       string `json:"token_in"`
	AmountOut     string `json:"amount_out"`
	TokenOut      string `json:"token_out"`
	SlippageBps   int64  `json:"slippage_bps"`
	Mode          string `json:"mode"`
	Router        string `json:"router,omitempty"`
	GasLimit      uint64 `json:"gas_limit,omitempty"`
	Executable    bool   `json:"executable"`
	Balance       string `json:"balance"`
	WalletAddress string `json:"wallet_address,omitempty"`
}

func newQuoteView(st store.State) quoteView {
	v := quoteView{
		AmountIn:    st.AmountText,
		TokenIn:     st.TokenIn.Symbol,
		TokenOut:    st.TokenOut.Symbol,
		SlippageBps: st.SlippageBps(),
		Mode:        string(st.Mode),
		Executable:  st.CanExecute() == nil,
		Balance:     amount.RenderDecimal(st.BalanceDecimal(), 6),
	}
	if out, ok := st.ExpectedOut(); ok {
		v.AmountOut = amount.RenderDecimal(out, 3)
	}
	if st.Quote.Quote.Executable() {
		v.Router = st.Quote.Quote.Tx.To.Hex()
		v.GasLimit = st.Quote.Quote.Tx.GasLimit
	}
	if st.Address != (common.Address{}) {
		v.WalletAddress = st.Address.Hex()
	}
	return v
}

func displayQuote(st store.State) {
	v := newQuoteView(st)

	heading("SWAP QUOTE")
	fmt.Printf("\n  You Sell:          %s %s\n", amount.Render(v.AmountIn), color.YellowString(v.TokenIn))
	if v.AmountOut != "" {
		fmt.Printf("  You Buy:           ~%s %s\n", v.AmountOut, color.YellowString(v.TokenOut))
	} else {
		fmt.Printf("  You Buy:           %s %s\n", color.HiBlackString("-"), color.YellowString(v.TokenOut))
	}
	fmt.Printf("  Slippage:          %s%%\n", st.SlippagePercent.String())
	fmt.Printf("  Mode:              %s\n", v.Mode)
	fmt.Printf("  Balance:           %s %s\n", v.Balance, v.TokenIn)
	if v.Router != "" {
		fmt.Printf("  Router:            %s\n", color.CyanString(v.Router))
	}
	if v.GasLimit > 0 {
		fmt.Printf("  Gas Limit:         %d\n", v.GasLimit)
	}
	if st.Quote.Invalid {
		color.Red("\n  Amount of token is unavailable to swap.")
	}
	fmt.Println()
	rule()
	fmt.Println()
}

func coloredState(s orchestrator.State) string {
	name := strings.ToUpper(s.String())
	switch s {
	case orchestrator.Confirmed:
		return color.GreenString(name)
	case orchestrator.Failed, orchestrator.ApprovalFailed:
		return color.RedString(name)
	case orchestrator.NeedsApproval, orchestrator.Approving:
		return color.MagentaString(name)
	case orchestrator.Idle:
		return name
	default:
		return color.YellowString(name)
	}
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
