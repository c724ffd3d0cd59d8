package engine

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/pulkyeet/arb-engine/internal/route"
	"github.com/pulkyeet/arb-engine/internal/simulator"
)

// OriginKind tags where a candidate came from.
type OriginKind int

const (
	OriginPublic OriginKind = iota
	OriginMempool
	OriginMevRelay
)

// Origin carries candidate provenance; relay origins also carry the bid
// parameters and timing breadcrumbs.
type Origin struct {
	Kind OriginKind

	// relay-only fields
	OppTxHash common.Hash
	BidAmount uint64
	Start     uint64
	Deadline  uint64

	// ArbFound is stamped by the worker, in unix millis, once the route
	// search yields an opportunity.
	ArbFound uint64
}

func (o Origin) String() string {
	switch o.Kind {
	case OriginPublic:
		return "public"
	case OriginMempool:
		return "mempool"
	case OriginMevRelay:
		return "mev-relay"
	}
	return fmt.Sprintf("origin(%d)", int(o.Kind))
}

// Event is the tagged union delivered by collectors.
type Event interface {
	isEvent()
}

// ConfirmedTxEvent is a transaction confirmed on chain with its logs.
type ConfirmedTxEvent struct {
	TxHash common.Hash
	Logs   []*types.Log
}

// PendingTxEvent is a transaction observed in the pending pool.
type PendingTxEvent struct {
	Tx *types.Transaction
}

func (ConfirmedTxEvent) isEvent() {}
func (PendingTxEvent) isEvent() {}

// TokenPool is a decoded (token, pool) implication of an event.
type TokenPool struct {
	Token string
	Pool  *common.Address
}

// Candidate is a token worth re-checking plus the context to re-check it.
type Candidate struct {
	Token    string
	PoolHint *common.Address
	TxHash   common.Hash
	SimCtx   simulator.SimulateCtx
	Origin   Origin
}

// Decoder extracts candidates from raw chain data. Failures to decode are
// non-fatal and yield no candidates.
type Decoder interface {
	TokensFromLogs(logs []*types.Log) []TokenPool
	CandidateFromPendingTx(tx *types.Transaction) (TokenPool, bool)
}

// EpochSource provides the current chain head snapshot.
type EpochSource interface {
	CurrentEpoch() simulator.SimEpoch
}

// OpportunityFinder is the route-search collaborator workers call.
type OpportunityFinder interface {
	FindOpportunity(ctx context.Context, token string, poolHint *common.Address, sc simulator.SimulateCtx) (*route.Opportunity, error)
}
