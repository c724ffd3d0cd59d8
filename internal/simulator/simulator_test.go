package simulator

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

func TestEpochFromHeader(t *testing.T) {
	h := &types.Header{
		Number:   big.NewInt(12345),
		Time:     1_700_000_000,
		BaseFee:  big.NewInt(25_000_000_000),
		GasLimit: 30_000_000,
	}

	e := EpochFromHeader(h)
	if e.BlockNumber != 12345 || e.BlockTimestamp != 1_700_000_000 {
		t.Errorf("epoch fields wrong: %+v", e)
	}
	if !e.BaseFee.Eq(uint256.NewInt(25_000_000_000)) {
		t.Errorf("base fee = %s", e.BaseFee)
	}

	// pre-1559 headers have no base fee
	h.BaseFee = nil
	e = EpochFromHeader(h)
	if !e.BaseFee.IsZero() {
		t.Errorf("nil base fee should map to zero, got %s", e.BaseFee)
	}
}

func TestSimulateCtxHelpers(t *testing.T) {
	base := NewCtx(SimEpoch{BlockNumber: 10})

	acct := common.HexToAddress("0x1111111111111111111111111111111111111111")
	tok := common.HexToAddress("0x2222222222222222222222222222222222222222")

	withBal := base.WithOverrideBalance(acct, tok, uint256.NewInt(500))
	if len(base.OverrideBalances) != 0 {
		t.Error("helper mutated the receiver")
	}
	if len(withBal.OverrideBalances) != 1 || withBal.OverrideBalances[0].Account != acct {
		t.Errorf("override not recorded: %+v", withBal.OverrideBalances)
	}

	withLoan := base.WithFlashloan(tok, uint256.NewInt(1000))
	if base.Flashloan != nil {
		t.Error("helper mutated the receiver")
	}
	if withLoan.Flashloan == nil || !withLoan.Flashloan.Amount.Eq(uint256.NewInt(1000)) {
		t.Errorf("flashloan not recorded: %+v", withLoan.Flashloan)
	}

	withFork := base.WithForkBlock(9)
	if base.ForkBlock != nil {
		t.Error("helper mutated the receiver")
	}
	if withFork.ForkBlock == nil || *withFork.ForkBlock != 9 {
		t.Errorf("fork block not recorded: %v", withFork.ForkBlock)
	}
}

type epochRecordingSim struct {
	lastEpoch SimEpoch
}

func (s *epochRecordingSim) Simulate(ctx context.Context, tx TxRequest, sc SimulateCtx) (*Result, error) {
	s.lastEpoch = sc.Epoch
	return &Result{Success: true}, nil
}

func (s *epochRecordingSim) EstimateGas(ctx context.Context, tx TxRequest) (uint64, error) {
	return 21000, nil
}

func (s *epochRecordingSim) Name() string { return "recording" }

func TestReplayNudgeNeverBlocks(t *testing.T) {
	r := NewReplay(&epochRecordingSim{}, nil, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))

	// repeated nudges with no running loop must coalesce, not block
	for i := 0; i < 10; i++ {
		r.Nudge()
	}
}

func TestReplayUpgradesStaleEpoch(t *testing.T) {
	inner := &epochRecordingSim{}
	r := NewReplay(inner, nil, 0, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.mu.Lock()
	r.epoch = SimEpoch{BlockNumber: 20}
	r.mu.Unlock()

	// a candidate admitted at block 15 simulates against the newer head
	sc := NewCtx(SimEpoch{BlockNumber: 15})
	if _, err := r.Simulate(context.Background(), TxRequest{}, sc); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if inner.lastEpoch.BlockNumber != 20 {
		t.Errorf("stale epoch not upgraded: %d", inner.lastEpoch.BlockNumber)
	}

	// a newer candidate keeps its own epoch
	sc = NewCtx(SimEpoch{BlockNumber: 25})
	if _, err := r.Simulate(context.Background(), TxRequest{}, sc); err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}
	if inner.lastEpoch.BlockNumber != 25 {
		t.Errorf("fresh epoch overwritten: %d", inner.lastEpoch.BlockNumber)
	}

	if got := r.Name(); got != "recording-replay" {
		t.Errorf("Name = %q", got)
	}
}
