package simulator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client is a thin wrapper around ethclient scoped to what simulation needs.
type Client struct {
	rpc *ethclient.Client
}

func NewClient(url string) (*Client, error) {
	if url == "" {
		return nil, fmt.Errorf("rpc url not set")
	}

	rpc, err := ethclient.Dial(url)
	if err != nil {
		return nil, err
	}

	return &Client{rpc: rpc}, nil
}

func (c *Client) Close() {
	c.rpc.Close()
}

func (c *Client) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return c.rpc.CallContract(ctx, msg, blockNumber)
}

func (c *Client) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return c.rpc.EstimateGas(ctx, msg)
}

func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.rpc.SuggestGasPrice(ctx)
}

func (c *Client) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return c.rpc.HeaderByNumber(ctx, number)
}

func (c *Client) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return c.rpc.BalanceAt(ctx, account, blockNumber)
}
