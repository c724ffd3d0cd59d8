package dex

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// NativeToken is the string form of the zero address, used to tag the
// chain's native asset before it is mapped to its wrapped representation.
const NativeToken = "0x0000000000000000000000000000000000000000"

// NormalizeToken lowercases an address into the canonical token key form.
func NormalizeToken(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// NormalizeTokenString lowercases an already-hex token string.
func NormalizeTokenString(s string) string {
	return strings.ToLower(s)
}

func IsNative(token string) bool {
	return NormalizeTokenString(token) == NativeToken
}

// A Venue is one directed trading edge through a single pool: it sells
// TokenIn for TokenOut. The same pool yields two venues, one per direction.
type Venue interface {
	PoolAddress() common.Address
	TokenIn() string
	TokenOut() string
	Protocol() string

	// Liquidity of the in-token side, used for pruning during route search.
	Liquidity() *big.Int

	// Flipped returns the opposite direction through the same pool.
	Flipped() Venue

	// AmountOut quotes a swap of amountIn locally against cached reserves.
	AmountOut(amountIn *uint256.Int) (*uint256.Int, error)
}

// Index answers "which venues sell tokenIn". A non-empty tokenOut
// restricts the counter-token; empty means any.
type Index interface {
	VenuesFor(ctx context.Context, tokenIn, tokenOut string) ([]Venue, error)
}
