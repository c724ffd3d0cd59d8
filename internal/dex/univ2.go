package dex

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// a Pair represents a uniswapv2 style AMM pool

type Pair struct {
	Address  common.Address
	Token0   string
	Token1   string
	Reserve0 *big.Int
	Reserve1 *big.Int
	DEX      string
}

// calculates output amount for a uniswapv2 swap including a 0.3% fee

func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int) *big.Int {
	if amountIn.Sign() <= 0 {
		return big.NewInt(0)
	}
	if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return big.NewInt(0)
	}

	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(997))
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)

	denominator := new(big.Int).Mul(reserveIn, big.NewInt(1000))
	denominator.Add(denominator, amountInWithFee)

	return new(big.Int).Div(numerator, denominator)
}

// PairVenue is one direction through a Pair. a2b means token0 -> token1.
type PairVenue struct {
	pair *Pair
	a2b  bool
}

func NewPairVenue(pair *Pair, a2b bool) *PairVenue {
	return &PairVenue{pair: pair, a2b: a2b}
}

// VenuesSelling returns the direction of pair that sells token, if either.
func VenuesSelling(pair *Pair, token string) (*PairVenue, bool) {
	switch NormalizeTokenString(token) {
	case pair.Token0:
		return NewPairVenue(pair, true), true
	case pair.Token1:
		return NewPairVenue(pair, false), true
	}
	return nil, false
}

func (v *PairVenue) PoolAddress() common.Address { return v.pair.Address }
func (v *PairVenue) Protocol() string            { return v.pair.DEX }

func (v *PairVenue) TokenIn() string {
	if v.a2b {
		return v.pair.Token0
	}
	return v.pair.Token1
}

func (v *PairVenue) TokenOut() string {
	if v.a2b {
		return v.pair.Token1
	}
	return v.pair.Token0
}

func (v *PairVenue) Liquidity() *big.Int {
	if v.a2b {
		return v.pair.Reserve0
	}
	return v.pair.Reserve1
}

func (v *PairVenue) Flipped() Venue {
	return &PairVenue{pair: v.pair, a2b: !v.a2b}
}

func (v *PairVenue) AmountOut(amountIn *uint256.Int) (*uint256.Int, error) {
	reserveIn, reserveOut := v.pair.Reserve0, v.pair.Reserve1
	if !v.a2b {
		reserveIn, reserveOut = reserveOut, reserveIn
	}

	out := GetAmountOut(amountIn.ToBig(), reserveIn, reserveOut)
	res, overflow := uint256.FromBig(out)
	if overflow {
		return nil, fmt.Errorf("amount out overflows uint256: %s", out)
	}
	return res, nil
}

func (v *PairVenue) String() string {
	return fmt.Sprintf("%s(%s, %s -> %s)", v.pair.DEX, v.pair.Address.Hex(), v.TokenIn(), v.TokenOut())
}
