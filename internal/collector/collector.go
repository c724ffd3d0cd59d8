package collector

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/ethclient/gethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/pulkyeet/arb-engine/internal/engine"
	"github.com/pulkyeet/arb-engine/internal/simulator"
)

// BlockCollector subscribes to new heads and emits one confirmed-tx event
// per transaction that produced logs in the block. It doubles as the
// engine's epoch source, tracking the latest head it has seen.
type BlockCollector struct {
	client *ethclient.Client
	log    *slog.Logger

	mu    sync.RWMutex
	epoch simulator.SimEpoch
}

func NewBlockCollector(client *ethclient.Client, log *slog.Logger) *BlockCollector {
	return &BlockCollector{client: client, log: log}
}

func (c *BlockCollector) CurrentEpoch() simulator.SimEpoch {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

func (c *BlockCollector) Run(ctx context.Context, out chan<- engine.Event) error {
	heads := make(chan *types.Header, 16)
	sub, err := c.client.SubscribeNewHead(ctx, heads)
	if err != nil {
		return fmt.Errorf("subscribe new heads: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("head subscription broke: %w", err)
		case header := <-heads:
			c.mu.Lock()
			c.epoch = simulator.EpochFromHeader(header)
			c.mu.Unlock()

			if err := c.emitBlockEvents(ctx, header.Number, out); err != nil {
				c.log.Warn("processing block failed", "block", header.Number, "err", err)
			}
		}
	}
}

func (c *BlockCollector) emitBlockEvents(ctx context.Context, blockNum *big.Int, out chan<- engine.Event) error {
	logs, err := c.client.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: blockNum,
		ToBlock:   blockNum,
	})
	if err != nil {
		return fmt.Errorf("filter logs: %w", err)
	}

	byTx := make(map[int][]*types.Log)
	order := make([]int, 0)
	for i := range logs {
		idx := int(logs[i].TxIndex)
		if _, ok := byTx[idx]; !ok {
			order = append(order, idx)
		}
		byTx[idx] = append(byTx[idx], &logs[i])
	}

	for _, idx := range order {
		group := byTx[idx]
		select {
		case <-ctx.Done():
			return ctx.Err()
		case out <- engine.ConfirmedTxEvent{TxHash: group[0].TxHash, Logs: group}:
		}
	}
	return nil
}

// MempoolCollector subscribes to full pending transactions and forwards
// them as events.
type MempoolCollector struct {
	gclient *gethclient.Client
	log     *slog.Logger
}

func NewMempoolCollector(rpcClient *rpc.Client, log *slog.Logger) *MempoolCollector {
	return &MempoolCollector{gclient: gethclient.New(rpcClient), log: log}
}

func (c *MempoolCollector) Run(ctx context.Context, out chan<- engine.Event) error {
	pending := make(chan *types.Transaction, 128)
	sub, err := c.gclient.SubscribeFullPendingTransactions(ctx, pending)
	if err != nil {
		return fmt.Errorf("subscribe pending txs: %w", err)
	}
	defer sub.Unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return fmt.Errorf("pending subscription broke: %w", err)
		case tx := <-pending:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case out <- engine.PendingTxEvent{Tx: tx}:
			}
		}
	}
}
