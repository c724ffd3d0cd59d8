package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// Executor contract ABI - only the function we need
	executorABI = `[{
		"inputs": [
			{"internalType": "address[]", "name": "pools", "type": "address[]"},
			{"internalType": "address[]", "name": "tokens", "type": "address[]"},
			{"internalType": "uint256", "name": "amountIn", "type": "uint256"},
			{"internalType": "uint256", "name": "minProfit", "type": "uint256"}
		],
		"name": "executeRoute",
		"outputs": [
			{"internalType": "uint256", "name": "profit", "type": "uint256"}
		],
		"stateMutability": "nonpayable",
		"type": "function"
	}]`
)

// creates calldata for the arbitrage executor contract's executeRoute

func BuildExecuteCalldata(
	pools []common.Address,
	tokens []common.Address,
	amountIn *uint256.Int,
	minProfit *uint256.Int,
) ([]byte, error) {
	parsedABI, err := abi.JSON(strings.NewReader(executorABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	calldata, err := parsedABI.Pack("executeRoute", pools, tokens, amountIn.ToBig(), minProfit.ToBig())
	if err != nil {
		return nil, fmt.Errorf("failed to pack executeRoute: %w", err)
	}

	return calldata, nil
}

// UnpackExecuteReturn decodes the profit returned by executeRoute.
func UnpackExecuteReturn(data []byte) (*uint256.Int, error) {
	parsedABI, err := abi.JSON(strings.NewReader(executorABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse ABI: %w", err)
	}

	out, err := parsedABI.Unpack("executeRoute", data)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack executeRoute return: %w", err)
	}
	if len(out) < 1 {
		return nil, fmt.Errorf("unexpected unpack result length: %d", len(out))
	}

	profit, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("profit type assertion failed")
	}

	res, overflow := uint256.FromBig(profit)
	if overflow {
		return nil, fmt.Errorf("profit overflows uint256: %s", profit)
	}
	return res, nil
}
