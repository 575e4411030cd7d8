package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/matrixise/chainbridge/internal/balance"
	"github.com/matrixise/chainbridge/internal/catalog"
	"github.com/matrixise/chainbridge/internal/eventloop"
	"github.com/matrixise/chainbridge/internal/oracle"
	"github.com/matrixise/chainbridge/internal/quote"
	"github.com/matrixise/chainbridge/internal/wallet"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ethA  = catalog.Key{Symbol: "ETH", Family: catalog.FamilyERC20}
	usdtA = catalog.Key{Symbol: "USDT", Family: catalog.FamilyERC20}
	usdtB = catalog.Key{Symbol: "USDT", Family: catalog.FamilyTRC20}
)

type fixture struct {
	queue  *eventloop.Queue
	store  *balance.Store
	ctrl   *Controller
	events []Event
	resets int
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{queue: eventloop.NewQueue(epoch)}

	o := oracle.NewStatic(map[catalog.Key]decimal.Decimal{
		ethA:  decimal.RequireFromString("10"),
		usdtA: decimal.RequireFromString("500"),
		usdtB: decimal.RequireFromString("20"),
	})
	f.store = balance.NewStore(catalog.Default(), o, nil)
	_, err := f.store.Refresh(context.Background(), wallet.Connection{
		Address:   "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0",
		Connected: true,
		Network:   "ethereum",
	})
	require.NoError(t, err)

	n := 0
	base := []Option{
		WithObserver(func(ev Event) { f.events = append(f.events, ev) }),
		WithResetHook(func() { f.resets++ }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("tx-%d", n)
		}),
	}
	f.ctrl = NewController(f.queue, f.store, append(base, opts...)...)
	return f
}

func token(t *testing.T, k catalog.Key) *catalog.Token {
	t.Helper()
	tok, ok := catalog.Default().Lookup(k)
	require.True(t, ok, k.String())
	return &tok
}

func (f *fixture) request(t *testing.T, src, dst catalog.Key, amt string) Request {
	return Request{
		Source:          token(t, src),
		Destination:     token(t, dst),
		Amount:          amt,
		WalletConnected: true,
	}
}

func (f *fixture) kinds() []EventKind {
	var out []EventKind
	for _, ev := range f.events {
		out = append(out, ev.Kind)
	}
	return out
}

func TestSubmitRunsFullLifecycle(t *testing.T) {
	f := newFixture(t)

	tr, err := f.ctrl.Submit(f.request(t, ethA, usdtB, "1"))
	require.NoError(t, err)
	assert.Equal(t, "tx-1", tr.ID)
	assert.Equal(t, StatusPending, f.ctrl.Status())
	assert.Equal(t, quote.SpeedSlow, tr.Speed)

	// approval
	f.queue.Advance(1500 * time.Millisecond)
	assert.Equal(t, StatusPending, f.ctrl.Status())
	assert.Equal(t, "10.0000", f.store.Format(*token(t, ethA)))

	// bridge: debit then success
	f.queue.Advance(2000 * time.Millisecond)
	assert.Equal(t, StatusSuccess, f.ctrl.Status())
	assert.Equal(t, "9.0000", f.store.Format(*token(t, ethA)))
	assert.Equal(t, "20.00", f.store.Format(*token(t, usdtB)), "credit is not immediate")

	f.queue.Advance(5000 * time.Millisecond)
	assert.Equal(t, "21.00", f.store.Format(*token(t, usdtB)))
	assert.Equal(t, StatusIdle, f.ctrl.Status())
	assert.Equal(t, 1, f.resets)

	cur := f.ctrl.Current()
	require.NotNil(t, cur)
	assert.True(t, cur.Credited)
	assert.Equal(t, StatusSuccess, cur.Status)
	assert.Equal(t, epoch.Add(3500*time.Millisecond), cur.SettledAt)
	assert.Equal(t, epoch.Add(8500*time.Millisecond), cur.CreditedAt)

	assert.Equal(t, []EventKind{
		EventSubmitted,
		EventStageCompleted,
		EventStageCompleted,
		EventDebited,
		EventSucceeded,
		EventCredited,
		EventReset,
	}, f.kinds())
	assert.Equal(t, 0, f.queue.Len())
}

func TestDebitPrecedesSuccess(t *testing.T) {
	f := newFixture(t)
	var balanceAtSuccess string
	f.ctrl.observers = append(f.ctrl.observers, func(ev Event) {
		if ev.Kind == EventSucceeded {
			balanceAtSuccess = f.store.Format(*token(t, ethA))
		}
	})

	_, err := f.ctrl.Submit(f.request(t, ethA, usdtA, "2.5"))
	require.NoError(t, err)
	f.queue.RunUntilIdle()

	assert.Equal(t, "7.5000", balanceAtSuccess)
}

func TestSubmitRejectedWhilePending(t *testing.T) {
	f := newFixture(t)

	_, err := f.ctrl.Submit(f.request(t, ethA, usdtB, "1"))
	require.NoError(t, err)

	_, err = f.ctrl.Submit(f.request(t, ethA, usdtB, "1"))
	assert.ErrorIs(t, err, ErrTransferInProgress)
	assert.Equal(t, StatusPending, f.ctrl.Status())

	f.queue.RunUntilIdle()

	// exactly one debit happened
	assert.Equal(t, "9.0000", f.store.Format(*token(t, ethA)))
	assert.Equal(t, "21.00", f.store.Format(*token(t, usdtB)))
}

func TestSubmitRejectedUntilReset(t *testing.T) {
	f := newFixture(t)

	_, err := f.ctrl.Submit(f.request(t, ethA, usdtB, "1"))
	require.NoError(t, err)
	f.queue.Advance(3500 * time.Millisecond)
	require.Equal(t, StatusSuccess, f.ctrl.Status())

	_, err = f.ctrl.Submit(f.request(t, ethA, usdtB, "1"))
	assert.ErrorIs(t, err, ErrNotIdle)

	f.queue.Advance(5 * time.Second)
	_, err = f.ctrl.Submit(f.request(t, ethA, usdtB, "1"))
	assert.NoError(t, err)
}

func TestSubmitGuards(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
		want   error
	}{
		{"missing source", func(r *Request) { r.Source = nil }, ErrMissingSource},
		{"missing destination", func(r *Request) { r.Destination = nil }, ErrMissingDestination},
		{"empty amount", func(r *Request) { r.Amount = "" }, ErrInvalidAmount},
		{"zero amount", func(r *Request) { r.Amount = "0" }, ErrInvalidAmount},
		{"garbage amount", func(r *Request) { r.Amount = "." }, ErrInvalidAmount},
		{"disconnected", func(r *Request) { r.WalletConnected = false }, ErrWalletDisconnected},
		{"over balance", func(r *Request) { r.Amount = "10.00001" }, ErrInsufficientBalance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := f.request(t, ethA, usdtB, "1")
			tt.mutate(&req)

			tr, err := f.ctrl.Submit(req)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, tr)
			assert.Equal(t, StatusIdle, f.ctrl.Status())
			assert.Equal(t, 0, f.queue.Len())
			assert.Equal(t, []EventKind{EventRejected}, f.kinds())
		})
	}
}

func TestSubmitWholeBalance(t *testing.T) {
	f := newFixture(t)

	_, err := f.ctrl.Submit(f.request(t, ethA, usdtA, "10"))
	require.NoError(t, err)
	f.queue.RunUntilIdle()

	assert.Equal(t, "0.0000", f.store.Format(*token(t, ethA)))
	assert.Equal(t, "510.00", f.store.Format(*token(t, usdtA)))
}

func TestSubCentTransferMovesExactAmount(t *testing.T) {
	f := newFixture(t)

	_, err := f.ctrl.Submit(f.request(t, usdtA, usdtB, "0.001"))
	require.NoError(t, err)
	f.queue.RunUntilIdle()

	assert.Equal(t, "499.999", f.store.Get("USDT", catalog.FamilyERC20).String())
	assert.Equal(t, "20.001", f.store.Get("USDT", catalog.FamilyTRC20).String())
	assert.Equal(t, "499.99", f.store.Format(*token(t, usdtA)))
}

func TestFaultAtBridgeStage(t *testing.T) {
	var seen []Stage
	f := newFixture(t, WithFaultHook(func(stage Stage, id string) error {
		seen = append(seen, stage)
		if stage == StageBridge {
			return ErrSimulatedSettlementFailure
		}
		return nil
	}))

	_, err := f.ctrl.Submit(f.request(t, ethA, usdtB, "1"))
	require.NoError(t, err)
	f.queue.RunUntilIdle()

	assert.Equal(t, []Stage{StageApproval, StageBridge}, seen)
	assert.Equal(t, StatusError, f.ctrl.Status())
	assert.Equal(t, "10.0000", f.store.Format(*token(t, ethA)))
	assert.Equal(t, "20.00", f.store.Format(*token(t, usdtB)))

	cur := f.ctrl.Current()
	require.NotNil(t, cur)
	assert.ErrorIs(t, cur.Failure, ErrSimulatedSettlementFailure)
	assert.Equal(t, StageBridge, cur.Stage)

	// error is sticky until dismissed
	_, err = f.ctrl.Submit(f.request(t, ethA, usdtB, "1"))
	assert.ErrorIs(t, err, ErrNotIdle)

	require.NoError(t, f.ctrl.Dismiss())
	assert.Equal(t, StatusIdle, f.ctrl.Status())
	assert.ErrorIs(t, f.ctrl.Dismiss(), ErrNothingToDismiss)
	assert.Equal(t, 0, f.resets, "dismiss keeps the amount")
}

func TestFaultAtApprovalSkipsBridge(t *testing.T) {
	f := newFixture(t)
	calls := 0
	f.ctrl.SetFaultHook(func(stage Stage, id string) error {
		calls++
		return errors.New("user rejected approval")
	})

	_, err := f.ctrl.Submit(f.request(t, ethA, usdtB, "1"))
	require.NoError(t, err)
	f.queue.RunUntilIdle()

	assert.Equal(t, 1, calls)
	assert.Equal(t, StatusError, f.ctrl.Status())
	assert.Equal(t, StageApproval, f.ctrl.Current().Stage)
}

func TestErrorAutoReset(t *testing.T) {
	timings := DefaultTimings()
	timings.ErrorReset = 3 * time.Second
	f := newFixture(t, WithTimings(timings), WithFaultHook(func(Stage, string) error {
		return ErrSimulatedSettlementFailure
	}))

	_, err := f.ctrl.Submit(f.request(t, ethA, usdtB, "1"))
	require.NoError(t, err)

	f.queue.Advance(1500 * time.Millisecond)
	assert.Equal(t, StatusError, f.ctrl.Status())

	f.queue.Advance(3 * time.Second)
	assert.Equal(t, StatusIdle, f.ctrl.Status())
	assert.Equal(t, EventDismissed, f.events[len(f.events)-1].Kind)
}

func TestDismissOnlyFromError(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.ctrl.Dismiss(), ErrNothingToDismiss)

	_, err := f.ctrl.Submit(f.request(t, ethA, usdtB, "1"))
	require.NoError(t, err)
	assert.ErrorIs(t, f.ctrl.Dismiss(), ErrNothingToDismiss)
	assert.Equal(t, StatusPending, f.ctrl.Status())
}
