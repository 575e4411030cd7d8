// Package lifecycle drives a transfer from submission through simulated
// approval and bridge stages to settlement.
//
// The controller is a state machine over idle, pending, success and error.
// The source debit happens before the success transition; the destination
// credit is a separate task that fires later, so status can read success
// while the destination balance is still unchanged. All work runs on the
// injected Scheduler, which must execute tasks on the same goroutine as
// the controller's callers.
package lifecycle

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/matrixise/chainbridge/internal/amount"
	"github.com/matrixise/chainbridge/internal/catalog"
	"github.com/matrixise/chainbridge/internal/quote"
	"github.com/shopspring/decimal"
)

// Scheduler runs delayed tasks keyed by transfer id.
type Scheduler interface {
	After(key string, d time.Duration, fn func())
	Now() time.Time
}

// Ledger is the balance store as seen by the controller.
type Ledger interface {
	Get(symbol string, family catalog.Family) decimal.Decimal
	Debit(symbol string, family catalog.Family, amount decimal.Decimal) (decimal.Decimal, error)
	Credit(symbol string, family catalog.Family, amount decimal.Decimal) (decimal.Decimal, error)
}

// FaultHook is consulted after each stage delay; a non-nil error fails the
// transfer at that stage.
type FaultHook func(stage Stage, transferID string) error

// Observer receives lifecycle events.
type Observer func(Event)

// Controller owns the TransferStatus of one session.
type Controller struct {
	sched     Scheduler
	ledger    Ledger
	timings   Timings
	status    Status
	current   *Transfer
	fault     FaultHook
	observers []Observer
	onReset   func()
	newID     func() string
	logger    *slog.Logger
}

// Option configures a Controller.
type Option func(*Controller)

func WithTimings(t Timings) Option {
	return func(c *Controller) { c.timings = t }
}

func WithFaultHook(h FaultHook) Option {
	return func(c *Controller) { c.fault = h }
}

func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observers = append(c.observers, o) }
}

// WithResetHook is called when a successful transfer returns to idle;
// the session uses it to clear the amount.
func WithResetHook(fn func()) Option {
	return func(c *Controller) { c.onReset = fn }
}

func WithIDGenerator(fn func() string) Option {
	return func(c *Controller) { c.newID = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// NewController creates an idle controller.
func NewController(sched Scheduler, ledger Ledger, opts ...Option) *Controller {
	c := &Controller{
		sched:   sched,
		ledger:  ledger,
		timings: DefaultTimings(),
		status:  StatusIdle,
		newID:   uuid.NewString,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetFaultHook replaces the fault hook; nil disables fault injection.
func (c *Controller) SetFaultHook(h FaultHook) {
	c.fault = h
}

// Status returns the current phase.
func (c *Controller) Status() Status {
	return c.status
}

// Current returns a copy of the latest transfer, nil before the first
// submission.
func (c *Controller) Current() *Transfer {
	if c.current == nil {
		return nil
	}
	t := *c.current
	return &t
}

// Submit checks the guards and, when they pass, moves idle to pending and
// schedules the approval stage. Rejections leave the status unchanged.
func (c *Controller) Submit(req Request) (*Transfer, error) {
	amt, err := c.check(req)
	if err != nil {
		c.emit(Event{Kind: EventRejected, Status: c.status, Err: err})
		c.logger.Debug("Transfer rejected", "status", c.status, "error", err)
		return nil, err
	}

	t := &Transfer{
		ID:          c.newID(),
		Source:      *req.Source,
		Destination: *req.Destination,
		Amount:      amt,
		RawAmount:   req.Amount,
		Received:    quote.ReceivedAmount(req.Amount, req.Destination),
		Speed:       quote.SettlementTime(*req.Source, *req.Destination),
		Status:      StatusPending,
		SubmittedAt: c.sched.Now(),
	}
	c.current = t
	c.status = StatusPending

	c.logger.Info("Transfer submitted",
		"transfer_id", t.ID,
		"source", t.Source.Key().String(),
		"destination", t.Destination.Key().String(),
		"amount", t.Amount.String(),
	)
	c.emit(c.event(EventSubmitted, t))

	c.sched.After(t.ID, c.timings.Approval, func() { c.runStage(t, StageApproval) })
	return c.Current(), nil
}

func (c *Controller) check(req Request) (decimal.Decimal, error) {
	switch c.status {
	case StatusPending:
		return decimal.Zero, ErrTransferInProgress
	case StatusIdle:
	default:
		return decimal.Zero, fmt.Errorf("%w: status %s", ErrNotIdle, c.status)
	}

	if req.Source == nil {
		return decimal.Zero, ErrMissingSource
	}
	if req.Destination == nil {
		return decimal.Zero, ErrMissingDestination
	}
	amt, ok := amount.Positive(req.Amount)
	if !ok {
		return decimal.Zero, ErrInvalidAmount
	}
	if !req.WalletConnected {
		return decimal.Zero, ErrWalletDisconnected
	}
	if avail := c.ledger.Get(req.Source.Symbol, req.Source.Family); amt.GreaterThan(avail) {
		return decimal.Zero, fmt.Errorf("%w: %s available, %s requested", ErrInsufficientBalance, avail, amt)
	}
	return amt, nil
}

func (c *Controller) runStage(t *Transfer, stage Stage) {
	t.Stage = stage
	if c.fault != nil {
		if err := c.fault(stage, t.ID); err != nil {
			c.fail(t, fmt.Errorf("%s stage: %w", stage, err))
			return
		}
	}

	c.logger.Debug("Transfer stage completed", "transfer_id", t.ID, "stage", stage)
	c.emit(c.event(EventStageCompleted, t))

	switch stage {
	case StageApproval:
		c.sched.After(t.ID, c.timings.Bridge, func() { c.runStage(t, StageBridge) })
	case StageBridge:
		c.settle(t)
	}
}

func (c *Controller) settle(t *Transfer) {
	remaining, err := c.ledger.Debit(t.Source.Symbol, t.Source.Family, t.Amount)
	if err != nil {
		c.fail(t, err)
		return
	}
	debited := c.event(EventDebited, t)
	debited.Balance = remaining
	c.emit(debited)

	t.Status = StatusSuccess
	t.SettledAt = c.sched.Now()
	c.status = StatusSuccess
	c.logger.Info("Transfer succeeded", "transfer_id", t.ID, "source_balance", remaining.String())
	c.emit(c.event(EventSucceeded, t))

	c.sched.After(t.ID, c.timings.Settlement, func() { c.credit(t) })
	c.sched.After(t.ID, c.timings.Reset, func() { c.resetAfterSuccess(t) })
}

func (c *Controller) credit(t *Transfer) {
	balance, err := c.ledger.Credit(t.Destination.Symbol, t.Destination.Family, t.Amount)
	if err != nil {
		c.logger.Error("Destination credit failed", "transfer_id", t.ID, "error", err)
		return
	}
	t.Credited = true
	t.CreditedAt = c.sched.Now()

	c.logger.Info("Destination credited",
		"transfer_id", t.ID,
		"destination", t.Destination.Key().String(),
		"balance", balance.String(),
	)
	ev := c.event(EventCredited, t)
	ev.Balance = balance
	c.emit(ev)
}

func (c *Controller) resetAfterSuccess(t *Transfer) {
	if c.status != StatusSuccess || c.current != t {
		return
	}
	c.status = StatusIdle
	if c.onReset != nil {
		c.onReset()
	}
	c.emit(c.event(EventReset, t))
}

func (c *Controller) fail(t *Transfer, err error) {
	t.Status = StatusError
	t.Failure = err
	c.status = StatusError

	c.logger.Warn("Transfer failed", "transfer_id", t.ID, "stage", t.Stage, "error", err)
	ev := c.event(EventFailed, t)
	ev.Err = err
	c.emit(ev)

	if c.timings.ErrorReset > 0 {
		c.sched.After(t.ID, c.timings.ErrorReset, func() {
			if c.status == StatusError && c.current == t {
				c.dismiss()
			}
		})
	}
}

// Dismiss acknowledges a failed transfer and returns to idle.
func (c *Controller) Dismiss() error {
	if c.status != StatusError {
		return ErrNothingToDismiss
	}
	c.dismiss()
	return nil
}

func (c *Controller) dismiss() {
	c.status = StatusIdle
	ev := Event{Kind: EventDismissed, Status: c.status, At: c.sched.Now()}
	if c.current != nil {
		ev.TransferID = c.current.ID
	}
	c.emit(ev)
}

func (c *Controller) event(kind EventKind, t *Transfer) Event {
	return Event{
		Kind:        kind,
		TransferID:  t.ID,
		Status:      c.status,
		Stage:       t.Stage,
		Source:      t.Source.Key(),
		Destination: t.Destination.Key(),
		Amount:      t.Amount,
		At:          c.sched.Now(),
	}
}

func (c *Controller) emit(ev Event) {
	if ev.At.IsZero() {
		ev.At = c.sched.Now()
	}
	for _, o := range c.observers {
		o(ev)
	}
}
