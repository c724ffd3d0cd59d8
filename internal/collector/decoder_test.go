package collector

import (
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/pulkyeet/arb-engine/internal/dex"
)

var (
	wnativeAddr = common.HexToAddress("0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")
	routerAddr  = common.HexToAddress("0x7777777777777777777777777777777777777777")
	poolAddr    = common.HexToAddress("0x1000000000000000000000000000000000000000")
	tokenXAddr  = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	tokenYAddr  = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
)

type fakePools struct {
	pairs map[common.Address]*dex.Pair
}

func (f *fakePools) Pool(addr common.Address) (*dex.Pair, error) {
	pair, ok := f.pairs[addr]
	if !ok {
		return nil, errors.New("pool not found")
	}
	return pair, nil
}

func testDecoder(t *testing.T, pairs map[common.Address]*dex.Pair) *Decoder {
	t.Helper()
	d, err := NewDecoder(
		&fakePools{pairs: pairs},
		map[common.Address]string{routerAddr: "testswap"},
		wnativeAddr.Hex(),
		16,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	if err != nil {
		t.Fatalf("NewDecoder failed: %v", err)
	}
	return d
}

func knownPair() *dex.Pair {
	return &dex.Pair{
		Address:  poolAddr,
		Token0:   dex.NormalizeToken(tokenXAddr),
		Token1:   dex.NormalizeToken(wnativeAddr),
		Reserve0: big.NewInt(1_000_000),
		Reserve1: big.NewInt(1_000_000),
		DEX:      "testswap",
	}
}

func syncLog(pool common.Address) *types.Log {
	return &types.Log{
		Address: pool,
		Topics:  []common.Hash{syncTopic},
		TxHash:  common.Hash{1},
	}
}

func TestTokensFromLogs(t *testing.T) {
	d := testDecoder(t, map[common.Address]*dex.Pair{poolAddr: knownPair()})

	out := d.TokensFromLogs([]*types.Log{syncLog(poolAddr)})
	if len(out) != 1 {
		t.Fatalf("expected 1 token, got %d", len(out))
	}
	if out[0].Token != dex.NormalizeToken(tokenXAddr) {
		t.Errorf("wrong token: %s", out[0].Token)
	}
	if out[0].Pool == nil || *out[0].Pool != poolAddr {
		t.Error("pool hint missing")
	}
}

func TestTokensFromLogsSkipsUnknownPool(t *testing.T) {
	d := testDecoder(t, nil)

	out := d.TokensFromLogs([]*types.Log{syncLog(poolAddr)})
	if len(out) != 0 {
		t.Errorf("unknown pool should yield nothing, got %v", out)
	}
}

func TestTokensFromLogsDedups(t *testing.T) {
	d := testDecoder(t, map[common.Address]*dex.Pair{poolAddr: knownPair()})

	out := d.TokensFromLogs([]*types.Log{syncLog(poolAddr), syncLog(poolAddr)})
	if len(out) != 1 {
		t.Errorf("same token twice in one tx should dedup, got %d", len(out))
	}
}

func TestTokensFromLogsIgnoresOtherTopics(t *testing.T) {
	d := testDecoder(t, map[common.Address]*dex.Pair{poolAddr: knownPair()})

	lg := &types.Log{Address: poolAddr, Topics: []common.Hash{{0x42}}}
	if out := d.TokensFromLogs([]*types.Log{lg}); len(out) != 0 {
		t.Errorf("non-pair topic decoded: %v", out)
	}
	if out := d.TokensFromLogs([]*types.Log{{Address: poolAddr}}); len(out) != 0 {
		t.Errorf("topicless log decoded: %v", out)
	}
}

// swapCalldata hand-packs router calldata with a dynamic address[] path
// at the given argument index.
func swapCalldata(selector [4]byte, pathArg, totalArgs int, path []common.Address) []byte {
	data := append([]byte(nil), selector[:]...)

	head := make([]byte, 32*totalArgs)
	offset := big.NewInt(int64(32 * totalArgs))
	copy(head[32*pathArg:32*(pathArg+1)], common.LeftPadBytes(offset.Bytes(), 32))
	data = append(data, head...)

	length := big.NewInt(int64(len(path)))
	data = append(data, common.LeftPadBytes(length.Bytes(), 32)...)
	for _, a := range path {
		data = append(data, common.LeftPadBytes(a.Bytes(), 32)...)
	}
	return data
}

func pendingTx(to common.Address, data []byte) *types.Transaction {
	return types.NewTx(&types.LegacyTx{To: &to, Data: data})
}

func TestCandidateFromPendingTx(t *testing.T) {
	d := testDecoder(t, nil)

	// swapExactTokensForTokens(amountIn, amountOutMin, path, to, deadline)
	sel := [4]byte{0x38, 0xed, 0x17, 0x39}
	data := swapCalldata(sel, 2, 5, []common.Address{tokenXAddr, wnativeAddr})

	tp, ok := d.CandidateFromPendingTx(pendingTx(routerAddr, data))
	if !ok {
		t.Fatal("expected a candidate")
	}
	if tp.Token != dex.NormalizeToken(tokenXAddr) {
		t.Errorf("wrong token: %s", tp.Token)
	}
}

func TestCandidateFromPendingTxPicksNonNativeEnd(t *testing.T) {
	d := testDecoder(t, nil)

	// swapExactETHForTokens(amountOutMin, path, to, deadline): the path
	// starts at the wrapped native, so the far end is the candidate
	sel := [4]byte{0x7f, 0xf3, 0x6a, 0xb5}
	data := swapCalldata(sel, 1, 4, []common.Address{wnativeAddr, tokenYAddr})

	tp, ok := d.CandidateFromPendingTx(pendingTx(routerAddr, data))
	if !ok {
		t.Fatal("expected a candidate")
	}
	if tp.Token != dex.NormalizeToken(tokenYAddr) {
		t.Errorf("wrong token: %s", tp.Token)
	}
}

func TestCandidateFromPendingTxRejections(t *testing.T) {
	d := testDecoder(t, nil)
	sel := [4]byte{0x38, 0xed, 0x17, 0x39}

	// not a known router
	other := common.HexToAddress("0x8888888888888888888888888888888888888888")
	data := swapCalldata(sel, 2, 5, []common.Address{tokenXAddr, wnativeAddr})
	if _, ok := d.CandidateFromPendingTx(pendingTx(other, data)); ok {
		t.Error("accepted a tx to an unknown router")
	}

	// unknown selector
	bad := swapCalldata([4]byte{0xde, 0xad, 0xbe, 0xef}, 2, 5, []common.Address{tokenXAddr, wnativeAddr})
	if _, ok := d.CandidateFromPendingTx(pendingTx(routerAddr, bad)); ok {
		t.Error("accepted an unknown selector")
	}

	// wrapped native on both ends is not a candidate
	wrap := swapCalldata(sel, 2, 5, []common.Address{wnativeAddr, wnativeAddr})
	if _, ok := d.CandidateFromPendingTx(pendingTx(routerAddr, wrap)); ok {
		t.Error("accepted a native-to-native path")
	}

	// contract creation and short calldata
	if _, ok := d.CandidateFromPendingTx(types.NewTx(&types.LegacyTx{Data: data})); ok {
		t.Error("accepted a contract creation")
	}
	if _, ok := d.CandidateFromPendingTx(pendingTx(routerAddr, []byte{0x38})); ok {
		t.Error("accepted truncated calldata")
	}

	// truncated path tail
	trunc := data[:len(data)-16]
	if _, ok := d.CandidateFromPendingTx(pendingTx(routerAddr, trunc)); ok {
		t.Error("accepted a truncated path")
	}

	// hostile path offset with the top bit set; must be rejected, not
	// wrap negative and crash the event loop
	hostile := make([]byte, 100)
	copy(hostile, sel[:])
	hostile[4+32*2+24] = 0x80
	if _, ok := d.CandidateFromPendingTx(pendingTx(routerAddr, hostile)); ok {
		t.Error("accepted an out-of-range path offset")
	}
}

func TestDecodeAddressSlice(t *testing.T) {
	sel := [4]byte{0x38, 0xed, 0x17, 0x39}
	data := swapCalldata(sel, 2, 5, []common.Address{tokenXAddr, tokenYAddr})

	path, ok := decodeAddressSlice(data, 2)
	if !ok {
		t.Fatal("decode failed")
	}
	if len(path) != 2 || path[0] != tokenXAddr || path[1] != tokenYAddr {
		t.Errorf("wrong path: %v", path)
	}

	// absurd length claims are rejected
	data = swapCalldata(sel, 2, 5, nil)
	if _, ok := decodeAddressSlice(data, 2); ok {
		t.Error("empty path accepted")
	}

	// offsets past the calldata, including ones that overflow int
	for _, offset := range []uint64{1 << 63, ^uint64(0), uint64(len(data)) + 1} {
		bad := swapCalldata(sel, 2, 5, []common.Address{tokenXAddr})
		copy(bad[4+32*2:4+32*3], common.LeftPadBytes(new(big.Int).SetUint64(offset).Bytes(), 32))
		if _, ok := decodeAddressSlice(bad, 2); ok {
			t.Errorf("accepted out-of-range offset %d", offset)
		}
	}
}
