package route

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/pulkyeet/arb-engine/internal/dex"
	"github.com/pulkyeet/arb-engine/internal/simulator"
)

// Opportunity is a simulation-ready best route with its draft transaction.
type Opportunity struct {
	Route   Route
	Quote   TradeQuote
	Tx      simulator.TxRequest
	Elapsed time.Duration
}

// Searcher turns a candidate token into an Opportunity: enumerate routes,
// probe a ladder of input amounts, keep the best quote, build the draft tx.
type Searcher struct {
	finder *PathFinder
	quoter Quoter
	log    *slog.Logger

	// ProbeAmounts is the ladder of input amounts tried per candidate.
	ProbeAmounts []*uint256.Int

	// Executor contract the draft transaction will call.
	Executor common.Address
}

func NewSearcher(finder *PathFinder, quoter Quoter, executor common.Address, probeAmounts []*uint256.Int, log *slog.Logger) *Searcher {
	return &Searcher{
		finder:       finder,
		quoter:       quoter,
		log:          log,
		ProbeAmounts: probeAmounts,
		Executor:     executor,
	}
}

// FindOpportunity returns ErrNoViableRoute (wrapped) when nothing
// profitable exists; other errors are infrastructure failures.
func (s *Searcher) FindOpportunity(
	ctx context.Context,
	token string,
	poolHint *common.Address,
	sc simulator.SimulateCtx,
) (*Opportunity, error) {
	start := time.Now()

	routes, err := s.finder.FindSellRoutes(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("find routes for %s: %w", token, err)
	}

	routes = scopeToPoolHint(routes, poolHint)
	if len(routes) == 0 {
		return nil, fmt.Errorf("token %s: %w", token, ErrNoViableRoute)
	}

	var (
		bestRoute Route
		bestQuote TradeQuote
		found     bool
	)
	for _, amountIn := range s.ProbeAmounts {
		r, quote, err := FindBestRoute(ctx, s.quoter, routes, amountIn, sc)
		if err != nil {
			continue
		}
		if !found || quote.Better(bestQuote) {
			bestRoute, bestQuote, found = r, quote, true
		}
	}

	if !found || bestQuote.NetProfit().Sign() <= 0 {
		return nil, fmt.Errorf("token %s: %w", token, ErrNoViableRoute)
	}

	tx, err := s.buildDraftTx(bestRoute, bestQuote)
	if err != nil {
		return nil, fmt.Errorf("build draft tx: %w", err)
	}

	return &Opportunity{
		Route:   bestRoute,
		Quote:   bestQuote,
		Tx:      tx,
		Elapsed: time.Since(start),
	}, nil
}

// scopeToPoolHint keeps routes whose first hop trades through the hinted
// pool. When none match, the full set stands: the hint narrows, it never
// empties.
func scopeToPoolHint(routes []Route, poolHint *common.Address) []Route {
	if poolHint == nil {
		return routes
	}

	var scoped []Route
	for _, r := range routes {
		if !r.Empty() && r.Hops[0].PoolAddress() == *poolHint {
			scoped = append(scoped, r)
		}
	}
	if len(scoped) == 0 {
		return routes
	}
	return scoped
}

func (s *Searcher) buildDraftTx(r Route, quote TradeQuote) (simulator.TxRequest, error) {
	pools := make([]common.Address, len(r.Hops))
	tokens := make([]common.Address, 0, len(r.Hops)+1)
	tokens = append(tokens, common.HexToAddress(r.TokenIn()))
	for i, hop := range r.Hops {
		pools[i] = hop.PoolAddress()
		tokens = append(tokens, common.HexToAddress(hop.TokenOut()))
	}

	calldata, err := dex.BuildExecuteCalldata(pools, tokens, quote.AmountIn, uint256.NewInt(1))
	if err != nil {
		return simulator.TxRequest{}, err
	}

	return simulator.TxRequest{
		To:    s.Executor,
		Data:  calldata,
		Value: uint256.NewInt(0),
	}, nil
}
