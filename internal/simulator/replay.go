package simulator

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Replay is a dedicated low-latency simulator: it keeps its own view of
// the chain head fresh on a timer and refreshes sooner when nudged by a
// worker that just found an opportunity.
type Replay struct {
	inner    Simulator
	client   *Client
	log      *slog.Logger
	interval time.Duration

	notify chan struct{}

	mu    sync.RWMutex
	epoch SimEpoch
}

func NewReplay(inner Simulator, client *Client, interval time.Duration, log *slog.Logger) *Replay {
	return &Replay{
		inner:    inner,
		client:   client,
		log:      log,
		interval: interval,
		notify:   make(chan struct{}, 1),
	}
}

func (r *Replay) Name() string {
	return r.inner.Name() + "-replay"
}

// Nudge asks the refresh loop to update sooner. Never blocks.
func (r *Replay) Nudge() {
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

func (r *Replay) CurrentEpoch() SimEpoch {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.epoch
}

// Run refreshes the head snapshot until ctx is done.
func (r *Replay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.refresh(ctx)
		case <-r.notify:
			r.refresh(ctx)
			ticker.Reset(r.interval)
		}
	}
}

func (r *Replay) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	header, err := r.client.HeaderByNumber(ctx, nil)
	if err != nil {
		r.log.Warn("replay head refresh failed", "err", err)
		return
	}

	r.mu.Lock()
	r.epoch = EpochFromHeader(header)
	r.mu.Unlock()
}

// Simulate delegates to the wrapped simulator, upgrading the context's
// epoch when the replay view is newer.
func (r *Replay) Simulate(ctx context.Context, tx TxRequest, sc SimulateCtx) (*Result, error) {
	current := r.CurrentEpoch()
	if current.BlockNumber > sc.Epoch.BlockNumber {
		sc.Epoch = current
	}
	return r.inner.Simulate(ctx, tx, sc)
}

func (r *Replay) EstimateGas(ctx context.Context, tx TxRequest) (uint64, error) {
	return r.inner.EstimateGas(ctx, tx)
}
