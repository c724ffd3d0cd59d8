package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/pulkyeet/arb-engine/internal/route"
	"github.com/pulkyeet/arb-engine/internal/simulator"
	"github.com/pulkyeet/arb-engine/internal/submit"
)

// Worker pulls candidates off the shared work channel, runs the route
// search, dry-runs the winning draft transaction, and forwards verified
// opportunities to the action sink.
type Worker struct {
	ID        int
	Work      <-chan Candidate
	Sims      *simulator.Pool
	Dedicated *simulator.Replay // optional
	Finder    OpportunityFinder
	Submitter submit.Submitter
	Sender    common.Address
	GasLimit  uint64
	GasPrice  *uint256.Int
	Log       *slog.Logger
}

// Run signals ready, then loops until ctx is done. The work channel's
// sender must outlive the workers: a closed channel here means the engine
// was torn down wrong, and that is fatal rather than recoverable.
func (w *Worker) Run(ctx context.Context, ready chan<- struct{}) {
	ready <- struct{}{}

	for {
		select {
		case <-ctx.Done():
			return
		case cand, ok := <-w.Work:
			if !ok {
				panic(fmt.Sprintf("worker %d: work channel closed while running", w.ID))
			}
			if err := w.handle(ctx, cand); err != nil {
				w.Log.Error("handle candidate failed", "token", cand.Token, "err", err)
			}
		}
	}
}

func (w *Worker) handle(ctx context.Context, cand Candidate) error {
	start := time.Now()

	opp, err := w.Finder.FindOpportunity(ctx, cand.Token, cand.PoolHint, cand.SimCtx)
	if err != nil {
		elapsed := time.Since(start)
		if errors.Is(err, route.ErrNoViableRoute) {
			w.Log.Debug("no opportunity", "token", cand.Token, "elapsed", elapsed)
			return nil
		}
		w.Log.Info("opportunity search failed", "token", cand.Token, "elapsed", elapsed, "err", err)
		return nil
	}

	cand.Origin.ArbFound = uint64(time.Now().UnixMilli())

	w.Log.Info("opportunity found",
		"token", cand.Token,
		"trigger_tx", cand.TxHash.Hex(),
		"profit", opp.Quote.NetProfit().String(),
		"route", opp.Route.String(),
		"elapsed", opp.Elapsed,
	)

	tx := w.refreshGas(opp.Tx)

	sim := w.Sims.Get()
	res, err := sim.Simulate(ctx, tx, cand.SimCtx)
	simName := sim.Name()
	w.Sims.Put(sim)
	if err != nil {
		return fmt.Errorf("dry run: %w", err)
	}
	if !res.Success {
		w.Log.Info("dry run rejected", "token", cand.Token, "reason", res.Error)
		return nil
	}
	if res.Profit == nil || res.Profit.IsZero() {
		w.Log.Info("dry run unprofitable", "token", cand.Token)
		return nil
	}

	w.Submitter.Submit(w.classify(cand, tx))

	for _, n := range submit.NewOpportunityNotifications(cand.Token, cand.TxHash, res.Profit, time.Since(start), simName) {
		w.Submitter.Submit(n)
	}

	// a fresh opportunity means the chain just moved; refresh sooner
	if w.Dedicated != nil {
		w.Dedicated.Nudge()
	}

	return nil
}

// refreshGas stamps the sender and current gas settings onto the draft
// before the dry run.
func (w *Worker) refreshGas(tx simulator.TxRequest) simulator.TxRequest {
	tx.From = w.Sender
	tx.Gas = w.GasLimit
	tx.GasPrice = w.GasPrice.Clone()
	return tx
}

func (w *Worker) classify(cand Candidate, tx simulator.TxRequest) submit.Action {
	if cand.Origin.Kind == OriginMevRelay {
		return submit.RelayBid{
			Tx:        tx,
			BidAmount: cand.Origin.BidAmount,
			OppTxHash: cand.Origin.OppTxHash,
			ArbFound:  cand.Origin.ArbFound,
			Deadline:  cand.Origin.Deadline,
		}
	}
	return submit.PublicTx{Tx: tx}
}
