package submit

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/pulkyeet/arb-engine/internal/simulator"
)

// Action is the closed set of things the engine hands off for execution.
type Action interface {
	isAction()
}

// PublicTx is an ordinary public submission of a draft transaction.
type PublicTx struct {
	Tx simulator.TxRequest
}

// RelayBid is a relay-mediated submission bound to the opportunity
// transaction it bids on. ArbFound is the unix-millis timestamp the
// worker discovered the arb, for relay-side latency accounting.
type RelayBid struct {
	Tx        simulator.TxRequest
	BidAmount uint64
	OppTxHash common.Hash
	ArbFound  uint64
	Deadline  uint64
}

// Notification is an operator-facing message derived from a submission.
type Notification struct {
	Title string
	Body  string
}

func (PublicTx) isAction()     {}
func (RelayBid) isAction()     {}
func (Notification) isAction() {}

// Submitter is a shared, thread-safe sink. It performs no ordering across
// submissions and must not block the caller.
type Submitter interface {
	Submit(Action)
}

// NewOpportunityNotifications builds the messages sent alongside a
// verified opportunity.
func NewOpportunityNotifications(
	token string,
	triggerTx common.Hash,
	profit *uint256.Int,
	elapsed time.Duration,
	simulatorName string,
) []Notification {
	return []Notification{
		{
			Title: "arbitrage submitted",
			Body: fmt.Sprintf("token=%s trigger=%s profit=%s elapsed=%s sim=%s",
				token, triggerTx.Hex(), profit.Dec(), elapsed, simulatorName),
		},
	}
}

// LogSubmitter logs actions instead of sending them anywhere. Useful for
// dry deployments and the replay tool.
type LogSubmitter struct {
	log *slog.Logger
}

func NewLogSubmitter(log *slog.Logger) *LogSubmitter {
	return &LogSubmitter{log: log}
}

func (s *LogSubmitter) Submit(action Action) {
	switch a := action.(type) {
	case PublicTx:
		s.log.Info("submit public tx", "to", a.Tx.To.Hex(), "gas", a.Tx.Gas)
	case RelayBid:
		s.log.Info("submit relay bid", "to", a.Tx.To.Hex(), "bid", a.BidAmount, "opp_tx", a.OppTxHash.Hex(), "arb_found", a.ArbFound, "deadline", a.Deadline)
	case Notification:
		s.log.Info("notification", "title", a.Title, "body", a.Body)
	default:
		s.log.Warn("unknown action type", "action", fmt.Sprintf("%T", action))
	}
}
