package simulator

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// SimEpoch pins a simulation to a chain head snapshot.
type SimEpoch struct {
	BlockNumber    uint64
	BlockTimestamp uint64
	BaseFee        *uint256.Int
	GasLimit       uint64
}

func EpochFromHeader(h *types.Header) SimEpoch {
	baseFee := uint256.NewInt(0)
	if h.BaseFee != nil {
		baseFee, _ = uint256.FromBig(h.BaseFee)
	}
	return SimEpoch{
		BlockNumber:    h.Number.Uint64(),
		BlockTimestamp: h.Time,
		BaseFee:        baseFee,
		GasLimit:       h.GasLimit,
	}
}

func (e SimEpoch) IsStale(maxAge time.Duration) bool {
	now := uint64(time.Now().Unix())
	if now < e.BlockTimestamp {
		return false
	}
	return now-e.BlockTimestamp > uint64(maxAge.Seconds())
}

type BalanceOverride struct {
	Account common.Address
	Token   common.Address // zero address for native
	Balance *uint256.Int
}

type Flashloan struct {
	Token  common.Address
	Amount *uint256.Int
}

// SimulateCtx is the snapshot a candidate carries from admission to
// dry-run: the epoch it was observed at plus any state overrides.
type SimulateCtx struct {
	Epoch            SimEpoch
	OverrideBalances []BalanceOverride
	Flashloan        *Flashloan
	ForkBlock        *uint64
}

func NewCtx(epoch SimEpoch) SimulateCtx {
	return SimulateCtx{Epoch: epoch}
}

func (c SimulateCtx) WithOverrideBalance(account, token common.Address, balance *uint256.Int) SimulateCtx {
	c.OverrideBalances = append(c.OverrideBalances, BalanceOverride{Account: account, Token: token, Balance: balance})
	return c
}

func (c SimulateCtx) WithFlashloan(token common.Address, amount *uint256.Int) SimulateCtx {
	c.Flashloan = &Flashloan{Token: token, Amount: amount}
	return c
}

func (c SimulateCtx) WithForkBlock(block uint64) SimulateCtx {
	c.ForkBlock = &block
	return c
}

// TxRequest is a draft transaction: everything but a signature.
type TxRequest struct {
	From     common.Address
	To       common.Address
	Value    *uint256.Int
	Data     []byte
	Gas      uint64
	GasPrice *uint256.Int
	Nonce    uint64
}

type Result struct {
	Success bool
	Profit  *uint256.Int
	GasUsed uint64
	Error   string
}

// Simulator dry-runs draft transactions. Implementations must be safe to
// call concurrently when accessed through distinct pool checkouts.
type Simulator interface {
	Simulate(ctx context.Context, tx TxRequest, sc SimulateCtx) (*Result, error)
	EstimateGas(ctx context.Context, tx TxRequest) (uint64, error)
	Name() string
}
