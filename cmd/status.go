package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"arbiswap/config"
	"arbiswap/pkg/backend"
)

var (
	watchStatus   bool
	watchInterval time.Duration
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Check the receipt of a transaction",
	Long: `Check whether an approval or swap transaction has been mined.

Examples:
  arbiswap status 0x1234...abcd
  arbiswap status 0x1234...abcd --watch
  arbiswap status 0x1234...abcd --watch --interval 5s`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Wait until the transaction is mined")
	statusCmd.Flags().DurationVar(&watchInterval, "interval", 0, "Polling interval when watching (default receipt.poll_interval)")
}

// receiptView is the JSON form of a receipt lookup
type receiptView struct {
	TxHash      string `json:"tx_hash"`
	Status      string `json:"status"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	GasUsed     uint64 `json:"gas_used,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	raw := strings.TrimSpace(args[0])
	if len(raw) != 66 || !strings.HasPrefix(raw, "0x") {
		return fmt.Errorf("invalid transaction hash: %s", raw)
	}
	hash := common.HexToHash(raw)

	cfg, err := config.Peek()
	if err != nil {
		return err
	}
	if cfg.RPCURL == "" {
		return fmt.Errorf("RPC URL not found. Please set ARBISWAP_RPC_URL environment variable or create a .arbiswap.yaml config file")
	}

	ctx, cancel := signalContext()
	defer cancel()

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return errors.Wrap(err, "dial rpc")
	}
	defer client.Close()

	var receipt *gethtypes.Receipt
	if watchStatus {
		interval := watchInterval
		if interval <= 0 {
			interval = cfg.ReceiptPoll
		}
		if !jsonOutput {
			fmt.Printf("\nWatching transaction %s\n", color.CyanString(hash.Hex()))
			fmt.Printf("Checking every %s. Press Ctrl+C to stop.\n", interval)
		}
		sp := newSpinner("Waiting for receipt...", !jsonOutput)
		receipt, err = backend.WaitForReceipt(ctx, client, hash, interval)
		sp.Stop()
		if errors.Is(err, context.Canceled) {
			return nil
		}
	} else {
		sp := newSpinner("Checking transaction...", !jsonOutput)
		receipt, err = client.TransactionReceipt(ctx, hash)
		sp.Stop()
		if errors.Is(err, ethereum.NotFound) {
			receipt, err = nil, nil
		}
	}
	if err != nil {
		return err
	}

	view := newReceiptView(hash, receipt)
	if jsonOutput {
		printJSON(view)
		return nil
	}
	displayReceipt(view)
	return nil
}

func newReceiptView(hash common.Hash, receipt *gethtypes.Receipt) receiptView {
	v := receiptView{TxHash: hash.Hex(), Status: "PENDING"}
	if receipt == nil {
		return v
	}
	v.Status = "SUCCESS"
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		v.Status = "REVERTED"
	}
	if receipt.BlockNumber != nil {
		v.BlockNumber = receipt.BlockNumber.Uint64()
	}
	v.GasUsed = receipt.GasUsed
	return v
}

func displayReceipt(v receiptView) {
	heading("TRANSACTION STATUS")
	fmt.Printf("\n  Tx Hash:      %s\n", color.CyanString(v.TxHash))
	fmt.Printf("  Status:       %s\n", getColoredStatus(v.Status))
	if v.BlockNumber > 0 {
		fmt.Printf("  Block:        %d\n", v.BlockNumber)
		fmt.Printf("  Gas Used:     %d\n", v.GasUsed)
	}
	fmt.Println()
	rule()
	fmt.Println()
}

func getColoredStatus(status string) string {
	switch status {
	case "SUCCESS":
		return color.GreenString(status)
	case "PENDING":
		return color.YellowString(status)
	case "REVERTED":
		return color.RedString(status)
	default:
		return status
	}
}
