package lifecycle

import (
	"errors"
	"time"

	"github.com/matrixise/chainbridge/internal/catalog"
	"github.com/matrixise/chainbridge/internal/quote"
	"github.com/shopspring/decimal"
)

// Status is the controller phase.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Stage is one awaited step of a submission.
type Stage string

const (
	StageApproval Stage = "approval"
	StageBridge   Stage = "bridge"
)

// Guard rejections. None of them changes the controller status.
var (
	ErrMissingSource       = errors.New("no source token selected")
	ErrMissingDestination  = errors.New("no destination token selected")
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrWalletDisconnected  = errors.New("wallet not connected")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrTransferInProgress  = errors.New("transfer in progress")
	ErrNotIdle             = errors.New("previous transfer not yet cleared")
	ErrNothingToDismiss    = errors.New("no failed transfer to dismiss")

	ErrSimulatedSettlementFailure = errors.New("simulated settlement failure")
)

// Timings are the simulated latencies of a submission.
type Timings struct {
	Approval   time.Duration
	Bridge     time.Duration
	Settlement time.Duration
	Reset      time.Duration
	// ErrorReset returns a failed controller to idle on its own. Zero
	// leaves it in error until Dismiss.
	ErrorReset time.Duration
}

// DefaultTimings mirrors the latencies of the hosted bridge page.
func DefaultTimings() Timings {
	return Timings{
		Approval:   1500 * time.Millisecond,
		Bridge:     2000 * time.Millisecond,
		Settlement: 5000 * time.Millisecond,
		Reset:      5000 * time.Millisecond,
	}
}

// Request is the selection snapshot a submission is checked against.
type Request struct {
	Source          *catalog.Token
	Destination     *catalog.Token
	Amount          string
	WalletConnected bool
}

// Transfer is one submission and its progress.
type Transfer struct {
	ID          string
	Source      catalog.Token
	Destination catalog.Token
	Amount      decimal.Decimal
	RawAmount   string
	Received    string
	Speed       quote.Speed
	Status      Status
	Stage       Stage
	Credited    bool
	Failure     error
	SubmittedAt time.Time
	SettledAt   time.Time
	CreditedAt  time.Time
}

// EventKind classifies lifecycle events.
type EventKind string

const (
	EventRejected       EventKind = "rejected"
	EventSubmitted      EventKind = "submitted"
	EventStageCompleted EventKind = "stage_completed"
	EventDebited        EventKind = "debited"
	EventSucceeded      EventKind = "succeeded"
	EventFailed         EventKind = "failed"
	EventCredited       EventKind = "credited"
	EventReset          EventKind = "reset"
	EventDismissed      EventKind = "dismissed"
)

// Event is emitted to observers on every transition and balance effect.
type Event struct {
	Kind        EventKind
	TransferID  string
	Status      Status
	Stage       Stage
	Source      catalog.Key
	Destination catalog.Key
	Amount      decimal.Decimal
	// Balance is the resulting balance for debited and credited events.
	Balance decimal.Decimal
	Err     error
	At      time.Time
}
