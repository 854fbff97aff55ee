package backend

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ReceiptReader fetches transaction receipts
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
}

// WaitForReceipt polls until the receipt exists. Only ctx bounds the wait.
func WaitForReceipt(ctx context.Context, r ReceiptReader, hash common.Hash, interval time.Duration) (*gethtypes.Receipt, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := r.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, errors.Wrap(err, "failed to get transaction receipt")
		}

		log.Debug().Str("component", "backend").Str("tx", hash.Hex()).Msg("Receipt pending")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
