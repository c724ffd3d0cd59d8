package route

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/pulkyeet/arb-engine/internal/dex"
)

// ErrNoViableRoute means no candidate route produced a positive output.
var ErrNoViableRoute = errors.New("no viable route")

// A Route is an ordered sequence of venues; consecutive venues share an
// intermediate token and no pool appears twice.
type Route struct {
	Hops []dex.Venue
}

func (r Route) Empty() bool {
	return len(r.Hops) == 0
}

func (r Route) TokenIn() string {
	if r.Empty() {
		return ""
	}
	return r.Hops[0].TokenIn()
}

func (r Route) TokenOut() string {
	if r.Empty() {
		return ""
	}
	return r.Hops[len(r.Hops)-1].TokenOut()
}

func (r Route) UsesPool(addr common.Address) bool {
	for _, hop := range r.Hops {
		if hop.PoolAddress() == addr {
			return true
		}
	}
	return false
}

// Reversed flips every hop and their order, turning a sell route into the
// corresponding buy route.
func (r Route) Reversed() Route {
	hops := make([]dex.Venue, len(r.Hops))
	for i, hop := range r.Hops {
		hops[len(r.Hops)-1-i] = hop.Flipped()
	}
	return Route{Hops: hops}
}

func (r Route) String() string {
	if r.Empty() {
		return "<empty>"
	}
	var b strings.Builder
	b.WriteString(r.TokenIn())
	for _, hop := range r.Hops {
		b.WriteString(" -")
		b.WriteString(hop.Protocol())
		b.WriteString("-> ")
		b.WriteString(hop.TokenOut())
	}
	return b.String()
}

// TradeQuote is the outcome of evaluating one route with one input amount.
type TradeQuote struct {
	AmountIn    *uint256.Int
	AmountOut   *uint256.Int
	GasCost     *uint256.Int
	CacheMisses uint64
}

// NetProfit is amount out minus amount in minus gas, in native units.
// It can be negative, so it is a big.Int rather than a uint256.
func (q TradeQuote) NetProfit() *big.Int {
	net := q.AmountOut.ToBig()
	net.Sub(net, q.AmountIn.ToBig())
	if q.GasCost != nil {
		net.Sub(net, q.GasCost.ToBig())
	}
	return net
}

// Better reports whether q beats other by net economic outcome. A quote
// with zero output never wins.
func (q TradeQuote) Better(other TradeQuote) bool {
	if q.AmountOut == nil || q.AmountOut.IsZero() {
		return false
	}
	if other.AmountOut == nil || other.AmountOut.IsZero() {
		return true
	}
	return q.NetProfit().Cmp(other.NetProfit()) > 0
}
