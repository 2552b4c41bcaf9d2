package rpc

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"tokendash/pkg/logger"
	"tokendash/pkg/models"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultPollInterval is how often WatchTransfers checks for new blocks.
const DefaultPollInterval = time.Second

// TransferLogs returns every Transfer log of the token between fromBlock and
// toBlock inclusive, in chain order. A nil toBlock means the latest block.
func (c *Client) TransferLogs(ctx context.Context, fromBlock uint64, toBlock *big.Int) ([]models.TransferEvent, error) {
	q := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   toBlock,
		Addresses: []common.Address{c.token},
		Topics:    [][]common.Hash{{TransferTopic}},
	}
	logs, err := c.eth.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("eth_getLogs: %w", err)
	}

	events := make([]models.TransferEvent, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		ev, err := DecodeTransfer(l)
		if err != nil {
			logger.Warn(ctx, "skipping transfer log", "tx", l.TxHash.Hex(), "error", err)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// DecodeTransfer turns a raw Transfer log into a TransferEvent.
func DecodeTransfer(l types.Log) (models.TransferEvent, error) {
	if len(l.Topics) != 3 || l.Topics[0] != TransferTopic {
		return models.TransferEvent{}, ErrMalformedLog
	}
	out, err := TokenABI.Unpack("Transfer", l.Data)
	if err != nil {
		return models.TransferEvent{}, fmt.Errorf("%w: %v", ErrMalformedLog, err)
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return models.TransferEvent{}, ErrMalformedLog
	}
	return models.TransferEvent{
		TransactionHash: l.TxHash.Hex(),
		From:            common.BytesToAddress(l.Topics[1].Bytes()).Hex(),
		To:              common.BytesToAddress(l.Topics[2].Bytes()).Hex(),
		RawAmount:       value,
		BlockNumber:     l.BlockNumber,
		LogIndex:        l.Index,
	}, nil
}

// WatchTransfers polls for new Transfer logs every interval, starting after
// the block that is current when it is called, and hands each non-empty batch
// to handler. It returns when ctx is done. Poll failures are logged and the
// same range is retried on the next tick.
func (c *Client) WatchTransfers(ctx context.Context, interval time.Duration, handler func([]models.TransferEvent)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	var (
		next    uint64
		started bool
	)
	if head, err := c.eth.BlockNumber(ctx); err == nil {
		next, started = head+1, true
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		head, err := c.eth.BlockNumber(ctx)
		if err != nil {
			logger.Warn(ctx, "poll head failed", "error", err)
			continue
		}
		if !started {
			next, started = head+1, true
			continue
		}
		if head < next {
			continue
		}

		events, err := c.TransferLogs(ctx, next, new(big.Int).SetUint64(head))
		if err != nil {
			logger.Warn(ctx, "poll transfer logs failed", "from", next, "to", head, "error", err)
			continue
		}
		next = head + 1
		if len(events) > 0 {
			handler(events)
		}
	}
}
