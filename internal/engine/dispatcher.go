package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/pulkyeet/arb-engine/internal/simulator"
	"github.com/pulkyeet/arb-engine/internal/submit"
)

// Config bounds the dispatcher and its worker pool.
type Config struct {
	Workers        int
	CacheTTL       time.Duration
	QueueHighWater int
	QueueCap       int
	MaxRecentArbs  int

	// Draft-tx fields stamped by workers before the dry run.
	Sender   common.Address
	GasLimit uint64
	GasPrice *uint256.Int
}

// Deps are the external collaborators the engine is assembled from.
type Deps struct {
	Decoder   Decoder
	Epochs    EpochSource
	Finder    OpportunityFinder
	Sims      *simulator.Pool
	Dedicated *simulator.Replay // optional
	Submitter submit.Submitter
}

// Dispatcher is the sole owner of the admission cache and dedup window:
// it turns inbound chain events into candidate admissions and throttled
// hand-offs to the work channel.
type Dispatcher struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	cache  *Cache
	window *Window

	// work is nil until Run; its presence is the running/uninitialized
	// phase marker.
	work chan Candidate
}

func NewDispatcher(cfg Config, deps Deps, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:    cfg,
		deps:   deps,
		log:    log,
		cache:  NewCache(cfg.CacheTTL),
		window: NewWindow(cfg.MaxRecentArbs),
	}
}

// Run creates the work channel and spawns the worker pool, returning once
// every worker has reported ready. Calling it twice is a wiring bug and
// panics.
func (d *Dispatcher) Run(ctx context.Context) {
	if d.work != nil {
		panic("dispatcher: Run called twice")
	}
	d.work = make(chan Candidate, d.cfg.QueueCap)

	ready := make(chan struct{})
	for i := 0; i < d.cfg.Workers; i++ {
		w := &Worker{
			ID:        i,
			Work:      d.work,
			Sims:      d.deps.Sims,
			Dedicated: d.deps.Dedicated,
			Finder:    d.deps.Finder,
			Submitter: d.deps.Submitter,
			Sender:    d.cfg.Sender,
			GasLimit:  d.cfg.GasLimit,
			GasPrice:  d.cfg.GasPrice,
			Log:       d.log.With("worker", i),
		}
		go w.Run(ctx, ready)
	}

	for i := 0; i < d.cfg.Workers; i++ {
		<-ready
	}
	d.log.Info("worker pool ready", "workers", d.cfg.Workers)
}

// OnEvent admits candidates from one event, tops up the work channel, and
// sweeps expired entries.
func (d *Dispatcher) OnEvent(ctx context.Context, ev Event) {
	switch ev := ev.(type) {
	case ConfirmedTxEvent:
		simCtx := simulator.NewCtx(d.deps.Epochs.CurrentEpoch())
		for _, tp := range d.deps.Decoder.TokensFromLogs(ev.Logs) {
			d.cache.Insert(tp.Token, tp.Pool, ev.TxHash, simCtx, Origin{Kind: OriginPublic})
		}

	case PendingTxEvent:
		tp, ok := d.deps.Decoder.CandidateFromPendingTx(ev.Tx)
		if !ok {
			break
		}
		simCtx := simulator.NewCtx(d.deps.Epochs.CurrentEpoch())
		d.cache.Insert(tp.Token, tp.Pool, ev.Tx.Hash(), simCtx, Origin{Kind: OriginMempool})
	}

	d.drain()

	for _, key := range d.cache.RemoveExpired() {
		d.window.Remove(key)
	}
}

// drain moves candidates onto the work channel until its length reaches
// the high-water mark. Keys still inside the dedup window are dropped,
// not re-queued.
func (d *Dispatcher) drain() {
	if d.work == nil {
		// workers not spawned yet; candidates accumulate in the cache
		return
	}

	if len(d.work) >= d.cfg.QueueHighWater {
		d.log.Warn("work channel at high water, not draining",
			"queued", len(d.work), "high_water", d.cfg.QueueHighWater)
		return
	}

	for len(d.work) < d.cfg.QueueHighWater {
		cand, ok := d.cache.PopOne()
		if !ok {
			return
		}
		if d.window.Contains(cand.Token) {
			d.log.Debug("candidate suppressed by dedup window", "token", cand.Token)
			continue
		}

		d.work <- cand
		d.window.Push(cand.Token)
	}
}

// QueueLen is the current work channel depth, for tests and metrics.
func (d *Dispatcher) QueueLen() int {
	if d.work == nil {
		return 0
	}
	return len(d.work)
}
