// Package session wires the bridge core into one owned object: the token
// catalog, the balance store, the selection, the quote calculator, the
// lifecycle controller and the wallet adapter.
//
// A Session is not safe for concurrent use. Every command and every
// scheduled task must run on the same goroutine, normally an
// eventloop.Runner or, in tests and simulations, an eventloop.Queue.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/matrixise/chainbridge/internal/balance"
	"github.com/matrixise/chainbridge/internal/catalog"
	"github.com/matrixise/chainbridge/internal/lifecycle"
	"github.com/matrixise/chainbridge/internal/quote"
	"github.com/matrixise/chainbridge/internal/selection"
	"github.com/matrixise/chainbridge/internal/wallet"
)

// ErrUnknownToken is returned when a command names a token that is not in
// the catalog.
var ErrUnknownToken = errors.New("unknown token")

// Options configures a Session.
type Options struct {
	Catalog    *catalog.Catalog
	Oracle     balance.Oracle
	Connectors []wallet.Connector
	Scheduler  lifecycle.Scheduler
	Timings    lifecycle.Timings
	Networks   []string
	// Jitter feeds the fee estimate; nil uses math/rand.
	Jitter func() float64
	// Observers receive every lifecycle event.
	Observers []lifecycle.Observer
	// WalletObserver receives every connector attempt.
	WalletObserver wallet.AttemptObserver
	// RefreshObserver is told about every balance refresh.
	RefreshObserver func(err error)
	Logger          *slog.Logger
}

// Session is the state of one user of the bridge.
type Session struct {
	catalog    *catalog.Catalog
	store      *balance.Store
	selection  *selection.Selection
	calculator *quote.Calculator
	controller *lifecycle.Controller
	wallet     *wallet.Adapter
	logger     *slog.Logger
	onRefresh  func(error)

	lastRejection error
	refreshErr    error
}

// New builds a session. Catalog defaults to the built-in token list and
// zero Timings to lifecycle.DefaultTimings.
func New(opts Options) (*Session, error) {
	if opts.Scheduler == nil {
		return nil, errors.New("session: scheduler is required")
	}
	if opts.Oracle == nil {
		return nil, errors.New("session: oracle is required")
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.Default()
	}
	if opts.Timings == (lifecycle.Timings{}) {
		opts.Timings = lifecycle.DefaultTimings()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Session{
		catalog:    opts.Catalog,
		calculator: quote.NewCalculator(opts.Jitter),
		logger:     opts.Logger,
		onRefresh:  opts.RefreshObserver,
	}
	s.store = balance.NewStore(opts.Catalog, opts.Oracle, opts.Logger)
	s.selection = selection.New(opts.Catalog, s.store)

	walletOpts := []wallet.Option{wallet.WithLogger(opts.Logger)}
	if len(opts.Networks) > 0 {
		walletOpts = append(walletOpts, wallet.WithNetworks(opts.Networks...))
	}
	if opts.WalletObserver != nil {
		walletOpts = append(walletOpts, wallet.WithObserver(opts.WalletObserver))
	}
	s.wallet = wallet.NewAdapter(opts.Connectors, walletOpts...)

	ctrlOpts := []lifecycle.Option{
		lifecycle.WithTimings(opts.Timings),
		lifecycle.WithLogger(opts.Logger),
		lifecycle.WithResetHook(s.selection.ClearAmount),
		lifecycle.WithObserver(s.observe),
	}
	for _, o := range opts.Observers {
		ctrlOpts = append(ctrlOpts, lifecycle.WithObserver(o))
	}
	s.controller = lifecycle.NewController(opts.Scheduler, s.store, ctrlOpts...)

	return s, nil
}

// Catalog returns the token catalog.
func (s *Session) Catalog() *catalog.Catalog {
	return s.catalog
}

// Controller exposes the lifecycle controller, mainly for fault injection.
func (s *Session) Controller() *lifecycle.Controller {
	return s.controller
}

// Connect runs the wallet fallback chain and, on success, refreshes the
// balances. A failed chain is not an error: the connection simply stays
// unestablished and the cause shows up in the snapshot.
func (s *Session) Connect(ctx context.Context) wallet.Connection {
	conn := s.wallet.Connect(ctx)
	if !conn.Connected {
		return conn
	}
	if _, err := s.RefreshBalances(ctx); err != nil {
		s.logger.Warn("Initial balance refresh failed", "error", err)
	}
	return conn
}

// WalletError is the cause of the last failed connect, nil after a
// success.
func (s *Session) WalletError() error {
	return s.wallet.LastError()
}

// Disconnect clears the wallet connection and zeroes the balances.
func (s *Session) Disconnect() {
	s.wallet.Disconnect()
	s.store.Reset()
	s.refreshErr = nil
}

// SwitchNetwork changes the wallet network.
func (s *Session) SwitchNetwork(network string) error {
	return s.wallet.SwitchNetwork(network)
}

// RefreshBalances reloads every balance from the oracle. On failure the
// previous balances are kept.
func (s *Session) RefreshBalances(ctx context.Context) (int, error) {
	snap, err := s.store.Refresh(ctx, s.wallet.Connection())
	s.refreshErr = err
	if s.onRefresh != nil {
		s.onRefresh(err)
	}
	if err != nil {
		return 0, err
	}
	return len(snap), nil
}

// SelectSource selects the source token by symbol and family.
func (s *Session) SelectSource(symbol, family string) error {
	t, err := s.lookup(symbol, family)
	if err != nil {
		return err
	}
	return s.selection.SelectSource(t)
}

// SelectDestination selects the destination token by symbol and family.
func (s *Session) SelectDestination(symbol, family string) error {
	t, err := s.lookup(symbol, family)
	if err != nil {
		return err
	}
	return s.selection.SelectDestination(t)
}

func (s *Session) lookup(symbol, family string) (catalog.Token, error) {
	f, err := catalog.ParseFamily(family)
	if err != nil {
		return catalog.Token{}, err
	}
	t, ok := s.catalog.Find(strings.ToUpper(symbol), f)
	if !ok {
		return catalog.Token{}, fmt.Errorf("%w: %s-%s", ErrUnknownToken, symbol, f)
	}
	return t, nil
}

// SetAmount updates the amount. A malformed value is rejected and the
// previous amount kept; the returned error wraps selection.ErrValidation.
func (s *Session) SetAmount(raw string) error {
	return s.selection.SetAmount(raw)
}

// Swap exchanges source and destination.
func (s *Session) Swap() {
	s.selection.Swap()
}

// MaxAmount sets the amount to the full source balance.
func (s *Session) MaxAmount() error {
	return s.selection.MaxAmount()
}

// Submit starts a transfer from the current selection. Guard failures are
// returned and also recorded as the last rejection.
func (s *Session) Submit() (*lifecycle.Transfer, error) {
	tr, err := s.controller.Submit(lifecycle.Request{
		Source:          s.selection.Source(),
		Destination:     s.selection.Destination(),
		Amount:          s.selection.Amount(),
		WalletConnected: s.wallet.Connection().Connected,
	})
	s.lastRejection = err
	return tr, err
}

// Dismiss clears a failed transfer.
func (s *Session) Dismiss() error {
	return s.controller.Dismiss()
}

// observe clears the last rejection whenever an error is dismissed,
// explicitly or by the timed error reset.
func (s *Session) observe(ev lifecycle.Event) {
	if ev.Kind == lifecycle.EventDismissed {
		s.lastRejection = nil
	}
}

// Quote returns the current quote.
func (s *Session) Quote() quote.Quote {
	return s.calculator.Quote(s.selection.Source(), s.selection.Destination(), s.selection.Amount())
}

// Status returns the lifecycle status.
func (s *Session) Status() lifecycle.Status {
	return s.controller.Status()
}

// Balance returns the formatted balance of a token, "0" style when absent.
func (s *Session) Balance(symbol, family string) (string, error) {
	t, err := s.lookup(symbol, family)
	if err != nil {
		return "", err
	}
	return s.store.Format(t), nil
}
