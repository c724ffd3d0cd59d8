package simulator

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/holiman/uint256"

	"github.com/pulkyeet/arb-engine/internal/dex"
)

const callTimeout = 10 * time.Second

// CallSimulator dry-runs a draft transaction with eth_call against a
// remote node. The executor contract returns the realised profit, so a
// successful call with decodable return data is a successful simulation;
// a revert is a failed one, not an error.
type CallSimulator struct {
	client *Client
	name   string
}

func NewCallSimulator(client *Client, name string) *CallSimulator {
	return &CallSimulator{client: client, name: name}
}

func (s *CallSimulator) Name() string {
	return s.name
}

func (s *CallSimulator) Simulate(ctx context.Context, tx TxRequest, sc SimulateCtx) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	msg := callMsg(tx)

	var blockNum *big.Int
	if sc.ForkBlock != nil {
		blockNum = new(big.Int).SetUint64(*sc.ForkBlock)
	} else if sc.Epoch.BlockNumber > 0 {
		blockNum = new(big.Int).SetUint64(sc.Epoch.BlockNumber)
	}

	ret, err := s.client.CallContract(ctx, msg, blockNum)
	if err != nil {
		// a revert means the trade would fail, which is a result, not an
		// infrastructure error
		return &Result{Success: false, Profit: uint256.NewInt(0), Error: err.Error()}, nil
	}

	profit, err := dex.UnpackExecuteReturn(ret)
	if err != nil {
		return &Result{Success: false, Profit: uint256.NewInt(0), Error: fmt.Sprintf("decode return: %v", err)}, nil
	}

	gasUsed, err := s.client.EstimateGas(ctx, msg)
	if err != nil {
		gasUsed = tx.Gas
	}

	return &Result{
		Success: true,
		Profit:  profit,
		GasUsed: gasUsed,
	}, nil
}

func (s *CallSimulator) EstimateGas(ctx context.Context, tx TxRequest) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	return s.client.EstimateGas(ctx, callMsg(tx))
}

func callMsg(tx TxRequest) ethereum.CallMsg {
	to := tx.To
	msg := ethereum.CallMsg{
		From: tx.From,
		To:   &to,
		Gas:  tx.Gas,
		Data: tx.Data,
	}
	if tx.Value != nil {
		msg.Value = tx.Value.ToBig()
	}
	if tx.GasPrice != nil {
		msg.GasPrice = tx.GasPrice.ToBig()
	}
	return msg
}
