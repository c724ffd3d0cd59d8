package route

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"github.com/pulkyeet/arb-engine/internal/simulator"
)

// Quoter evaluates one route for one input amount.
type Quoter interface {
	Quote(ctx context.Context, r Route, amountIn *uint256.Int, sc simulator.SimulateCtx) (TradeQuote, error)
}

// FindBestRoute quotes every route concurrently, ignores individual
// failures, and returns the route with the greatest net outcome. Ties are
// broken by the lowest route index so the selection is deterministic.
func FindBestRoute(
	ctx context.Context,
	quoter Quoter,
	routes []Route,
	amountIn *uint256.Int,
	sc simulator.SimulateCtx,
) (Route, TradeQuote, error) {
	quotes := make([]*TradeQuote, len(routes))

	var wg sync.WaitGroup
	for idx, r := range routes {
		if r.Empty() {
			continue
		}
		wg.Add(1)
		go func(idx int, r Route) {
			defer wg.Done()
			quote, err := quoter.Quote(ctx, r, amountIn, sc)
			if err != nil {
				return
			}
			quotes[idx] = &quote
		}(idx, r)
	}
	wg.Wait()

	bestIdx := -1
	for idx, quote := range quotes {
		if quote == nil {
			continue
		}
		if bestIdx == -1 || quote.Better(*quotes[bestIdx]) {
			bestIdx = idx
		}
	}

	if bestIdx == -1 || quotes[bestIdx].AmountOut == nil || quotes[bestIdx].AmountOut.IsZero() {
		return Route{}, TradeQuote{}, ErrNoViableRoute
	}

	return routes[bestIdx], *quotes[bestIdx], nil
}

// VenueQuoter chains local constant-product math across a route's hops.
// Gas is charged per hop at the epoch's base fee.
type VenueQuoter struct {
	GasPerHop uint64
}

func (q *VenueQuoter) Quote(ctx context.Context, r Route, amountIn *uint256.Int, sc simulator.SimulateCtx) (TradeQuote, error) {
	if err := ctx.Err(); err != nil {
		return TradeQuote{}, err
	}

	amount := amountIn.Clone()
	for _, hop := range r.Hops {
		out, err := hop.AmountOut(amount)
		if err != nil {
			return TradeQuote{}, fmt.Errorf("quote hop %s: %w", hop.PoolAddress().Hex(), err)
		}
		amount = out
	}

	gasCost := uint256.NewInt(q.GasPerHop * uint64(len(r.Hops)))
	if sc.Epoch.BaseFee != nil {
		gasCost.Mul(gasCost, sc.Epoch.BaseFee)
	}

	return TradeQuote{
		AmountIn:  amountIn.Clone(),
		AmountOut: amount,
		GasCost:   gasCost,
	}, nil
}
