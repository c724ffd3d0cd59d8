package route

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/pulkyeet/arb-engine/internal/dex"
	"github.com/pulkyeet/arb-engine/internal/simulator"
)

// tableQuoter returns canned quotes keyed by the route's first pool.
type tableQuoter struct {
	quotes map[common.Address]TradeQuote
	errs   map[common.Address]error
}

func (q *tableQuoter) Quote(ctx context.Context, r Route, amountIn *uint256.Int, sc simulator.SimulateCtx) (TradeQuote, error) {
	pool := r.Hops[0].PoolAddress()
	if err, ok := q.errs[pool]; ok {
		return TradeQuote{}, err
	}
	quote, ok := q.quotes[pool]
	if !ok {
		return TradeQuote{}, errors.New("no quote for route")
	}
	return quote, nil
}

func singleHopRoute(pool byte) Route {
	p := pair(pool, tokenA, wnative, 1_000_000)
	v, _ := dex.VenuesSelling(p, tokenA)
	return Route{Hops: []dex.Venue{v}}
}

func quoteOf(in, out uint64) TradeQuote {
	return TradeQuote{
		AmountIn:  uint256.NewInt(in),
		AmountOut: uint256.NewInt(out),
		GasCost:   uint256.NewInt(0),
	}
}

func TestFindBestRoutePicksGreatestNet(t *testing.T) {
	routes := []Route{singleHopRoute(1), singleHopRoute(2), singleHopRoute(3)}
	q := &tableQuoter{quotes: map[common.Address]TradeQuote{
		poolAddr(1): quoteOf(100, 95),  // net -5
		poolAddr(2): quoteOf(100, 100), // net 0
		poolAddr(3): quoteOf(100, 112), // net +12
	}}

	best, quote, err := FindBestRoute(context.Background(), q, routes, uint256.NewInt(100), simulator.SimulateCtx{})
	if err != nil {
		t.Fatalf("FindBestRoute failed: %v", err)
	}
	if best.Hops[0].PoolAddress() != poolAddr(3) {
		t.Errorf("wrong winner: %s", best)
	}
	if quote.NetProfit().Cmp(big.NewInt(12)) != 0 {
		t.Errorf("expected net profit 12, got %s", quote.NetProfit())
	}
}

func TestFindBestRouteTieBreaksByIndex(t *testing.T) {
	routes := []Route{singleHopRoute(1), singleHopRoute(2)}
	q := &tableQuoter{quotes: map[common.Address]TradeQuote{
		poolAddr(1): quoteOf(100, 110),
		poolAddr(2): quoteOf(100, 110),
	}}

	best, _, err := FindBestRoute(context.Background(), q, routes, uint256.NewInt(100), simulator.SimulateCtx{})
	if err != nil {
		t.Fatalf("FindBestRoute failed: %v", err)
	}
	if best.Hops[0].PoolAddress() != poolAddr(1) {
		t.Error("tie not broken by lowest index")
	}
}

func TestFindBestRouteIgnoresFailedQuotes(t *testing.T) {
	routes := []Route{singleHopRoute(1), singleHopRoute(2)}
	q := &tableQuoter{
		quotes: map[common.Address]TradeQuote{poolAddr(2): quoteOf(100, 105)},
		errs:   map[common.Address]error{poolAddr(1): errors.New("stale reserves")},
	}

	best, _, err := FindBestRoute(context.Background(), q, routes, uint256.NewInt(100), simulator.SimulateCtx{})
	if err != nil {
		t.Fatalf("one failed quote must not sink the search: %v", err)
	}
	if best.Hops[0].PoolAddress() != poolAddr(2) {
		t.Error("surviving quote not selected")
	}
}

func TestFindBestRouteNoViable(t *testing.T) {
	routes := []Route{singleHopRoute(1), singleHopRoute(2)}

	// every quote errors
	q := &tableQuoter{errs: map[common.Address]error{
		poolAddr(1): errors.New("boom"),
		poolAddr(2): errors.New("boom"),
	}}
	if _, _, err := FindBestRoute(context.Background(), q, routes, uint256.NewInt(100), simulator.SimulateCtx{}); !errors.Is(err, ErrNoViableRoute) {
		t.Errorf("expected ErrNoViableRoute, got %v", err)
	}

	// every quote has zero output
	q = &tableQuoter{quotes: map[common.Address]TradeQuote{
		poolAddr(1): quoteOf(100, 0),
		poolAddr(2): quoteOf(100, 0),
	}}
	if _, _, err := FindBestRoute(context.Background(), q, routes, uint256.NewInt(100), simulator.SimulateCtx{}); !errors.Is(err, ErrNoViableRoute) {
		t.Errorf("expected ErrNoViableRoute, got %v", err)
	}

	// no routes at all
	if _, _, err := FindBestRoute(context.Background(), q, nil, uint256.NewInt(100), simulator.SimulateCtx{}); !errors.Is(err, ErrNoViableRoute) {
		t.Errorf("expected ErrNoViableRoute, got %v", err)
	}
}

// zeroQuoter succeeds but returns an entirely unset quote.
type zeroQuoter struct{}

func (zeroQuoter) Quote(ctx context.Context, r Route, amountIn *uint256.Int, sc simulator.SimulateCtx) (TradeQuote, error) {
	return TradeQuote{}, nil
}

func TestFindBestRouteNilAmountOut(t *testing.T) {
	routes := []Route{singleHopRoute(1)}

	_, _, err := FindBestRoute(context.Background(), zeroQuoter{}, routes, uint256.NewInt(100), simulator.SimulateCtx{})
	if !errors.Is(err, ErrNoViableRoute) {
		t.Errorf("zero-value quote should be non-viable, got %v", err)
	}
}

func TestVenueQuoterChainsHops(t *testing.T) {
	p1 := pair(1, tokenA, tokenB, 1_000_000)
	p2 := pair(2, tokenB, wnative, 1_000_000)
	v1, _ := dex.VenuesSelling(p1, tokenA)
	v2, _ := dex.VenuesSelling(p2, tokenB)
	r := Route{Hops: []dex.Venue{v1, v2}}

	q := &VenueQuoter{GasPerHop: 150_000}
	sc := simulator.NewCtx(simulator.SimEpoch{BaseFee: uint256.NewInt(25)})

	quote, err := q.Quote(context.Background(), r, uint256.NewInt(1000), sc)
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}

	// chain the constant-product math by hand
	mid := dex.GetAmountOut(big.NewInt(1000), p1.Reserve0, p1.Reserve1)
	want := dex.GetAmountOut(mid, p2.Reserve0, p2.Reserve1)
	if quote.AmountOut.ToBig().Cmp(want) != 0 {
		t.Errorf("AmountOut = %s, want %s", quote.AmountOut, want)
	}

	wantGas := uint256.NewInt(150_000 * 2 * 25)
	if !quote.GasCost.Eq(wantGas) {
		t.Errorf("GasCost = %s, want %s", quote.GasCost, wantGas)
	}
}

func TestNetProfitCanGoNegative(t *testing.T) {
	q := TradeQuote{
		AmountIn:  uint256.NewInt(1000),
		AmountOut: uint256.NewInt(900),
		GasCost:   uint256.NewInt(50),
	}
	if got := q.NetProfit(); got.Cmp(big.NewInt(-150)) != 0 {
		t.Errorf("NetProfit = %s, want -150", got)
	}
}
