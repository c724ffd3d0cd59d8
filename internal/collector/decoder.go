package collector

import (
	"encoding/binary"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/pulkyeet/arb-engine/internal/dex"
	"github.com/pulkyeet/arb-engine/internal/engine"
)

var (
	// uniswapv2 pair events
	syncTopic = crypto.Keccak256Hash([]byte("Sync(uint112,uint112)"))
	swapTopic = crypto.Keccak256Hash([]byte("Swap(address,uint256,uint256,uint256,uint256,address)"))

	// router selectors -> index of the path argument
	swapSelectors = map[[4]byte]int{
		{0x38, 0xed, 0x17, 0x39}: 2, // swapExactTokensForTokens
		{0x88, 0x03, 0xdb, 0xee}: 2, // swapTokensForExactTokens
		{0x7f, 0xf3, 0x6a, 0xb5}: 1, // swapExactETHForTokens
		{0x18, 0xcb, 0xaf, 0xe5}: 2, // swapExactTokensForETH
	}
)

// PoolLookup resolves a pool address to its pair metadata.
type PoolLookup interface {
	Pool(addr common.Address) (*dex.Pair, error)
}

// Decoder turns raw logs and pending router calls into (token, pool)
// candidates. Pool metadata sits behind an LRU so hot pools don't re-hit
// the store on every log.
type Decoder struct {
	pools         PoolLookup
	meta          *lru.Cache[common.Address, *dex.Pair]
	routers       map[common.Address]string
	wrappedNative string
	log           *slog.Logger
}

func NewDecoder(pools PoolLookup, routers map[common.Address]string, wrappedNative string, metaCacheSize int, log *slog.Logger) (*Decoder, error) {
	meta, err := lru.New[common.Address, *dex.Pair](metaCacheSize)
	if err != nil {
		return nil, err
	}
	return &Decoder{
		pools:         pools,
		meta:          meta,
		routers:       routers,
		wrappedNative: dex.NormalizeTokenString(wrappedNative),
		log:           log,
	}, nil
}

// TokensFromLogs extracts the (token, pool) pairs implicated by a
// confirmed transaction's logs. Unknown pools and undecodable logs are
// skipped silently.
func (d *Decoder) TokensFromLogs(logs []*types.Log) []engine.TokenPool {
	var out []engine.TokenPool
	seen := make(map[string]bool)

	for _, lg := range logs {
		if len(lg.Topics) == 0 {
			continue
		}
		if lg.Topics[0] != syncTopic && lg.Topics[0] != swapTopic {
			continue
		}

		pair, ok := d.pairFor(lg.Address)
		if !ok {
			continue
		}

		pool := lg.Address
		for _, token := range []string{pair.Token0, pair.Token1} {
			if token == d.wrappedNative || dex.IsNative(token) {
				continue
			}
			if seen[token] {
				continue
			}
			seen[token] = true
			out = append(out, engine.TokenPool{Token: token, Pool: &pool})
		}
	}
	return out
}

// CandidateFromPendingTx extracts at most one candidate token from a
// pending transaction aimed at a known router.
func (d *Decoder) CandidateFromPendingTx(tx *types.Transaction) (engine.TokenPool, bool) {
	to := tx.To()
	if to == nil {
		return engine.TokenPool{}, false
	}
	if _, ok := d.routers[*to]; !ok {
		return engine.TokenPool{}, false
	}

	data := tx.Data()
	if len(data) < 4 {
		return engine.TokenPool{}, false
	}

	var selector [4]byte
	copy(selector[:], data[:4])
	pathArg, ok := swapSelectors[selector]
	if !ok {
		return engine.TokenPool{}, false
	}

	path, ok := decodeAddressSlice(data, pathArg)
	if !ok || len(path) == 0 {
		return engine.TokenPool{}, false
	}

	// the interesting token is the non-native end of the path
	token := dex.NormalizeToken(path[0])
	if token == d.wrappedNative {
		token = dex.NormalizeToken(path[len(path)-1])
	}
	if token == d.wrappedNative {
		return engine.TokenPool{}, false
	}

	return engine.TokenPool{Token: token}, true
}

func (d *Decoder) pairFor(pool common.Address) (*dex.Pair, bool) {
	if pair, ok := d.meta.Get(pool); ok {
		return pair, true
	}
	pair, err := d.pools.Pool(pool)
	if err != nil {
		return nil, false
	}
	d.meta.Add(pool, pair)
	return pair, true
}

// decodeAddressSlice reads a dynamic address[] argument out of router
// calldata: the argument slot holds an offset to (length, entries...).
func decodeAddressSlice(data []byte, argIndex int) ([]common.Address, bool) {
	argPos := 4 + 32*argIndex
	if len(data) < argPos+32 {
		return nil, false
	}

	offset := binary.BigEndian.Uint64(data[argPos+24 : argPos+32])
	if offset > uint64(len(data)) {
		// also rejects offsets that would overflow int
		return nil, false
	}
	lenPos := 4 + int(offset)
	if lenPos+32 > len(data) {
		return nil, false
	}

	length := binary.BigEndian.Uint64(data[lenPos+24 : lenPos+32])
	if length == 0 || length > 16 {
		return nil, false
	}

	entries := make([]common.Address, 0, length)
	for i := 0; i < int(length); i++ {
		start := lenPos + 32 + 32*i
		if start+32 > len(data) {
			return nil, false
		}
		entries = append(entries, common.BytesToAddress(data[start+12:start+32]))
	}
	return entries, true
}
