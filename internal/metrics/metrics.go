// Package metrics exposes bridge activity as Prometheus collectors.
package metrics

import (
	"errors"
	"time"

	"github.com/matrixise/chainbridge/internal/lifecycle"
	"github.com/matrixise/chainbridge/internal/wallet"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chainbridge"

// Metrics holds every collector. Create one per registry.
type Metrics struct {
	transfers      *prometheus.CounterVec
	rejections     *prometheus.CounterVec
	stageFailures  *prometheus.CounterVec
	volume         *prometheus.CounterVec
	status         *prometheus.GaugeVec
	settlementTime prometheus.Histogram
	walletAttempts *prometheus.CounterVec
	refreshes      *prometheus.CounterVec

	submitted map[string]time.Time
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transfers_total",
			Help:      "Transfers by final outcome.",
		}, []string{"outcome", "route"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submit_rejections_total",
			Help:      "Submit calls rejected by a guard.",
		}, []string{"reason"}),
		stageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Transfers failed at a given stage.",
		}, []string{"stage"}),
		volume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credited_amount_total",
			Help:      "Amount credited to destination balances, per token.",
		}, []string{"token"}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transfer_status",
			Help:      "1 for the current lifecycle status, 0 otherwise.",
		}, []string{"status"}),
		settlementTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "settlement_seconds",
			Help:      "Time from submission to destination credit.",
			Buckets:   []float64{1, 2.5, 5, 10, 30, 60, 300},
		}),
		walletAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_connect_attempts_total",
			Help:      "Wallet connector attempts by strategy and result.",
		}, []string{"strategy", "result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_refreshes_total",
			Help:      "Balance refreshes by result.",
		}, []string{"result"}),
		submitted: make(map[string]time.Time),
	}

	reg.MustRegister(
		m.transfers,
		m.rejections,
		m.stageFailures,
		m.volume,
		m.status,
		m.settlementTime,
		m.walletAttempts,
		m.refreshes,
	)
	m.setStatus(lifecycle.StatusIdle)
	return m
}

// ObserveTransfer is a lifecycle.Observer.
func (m *Metrics) ObserveTransfer(ev lifecycle.Event) {
	m.setStatus(ev.Status)

	route := ev.Source.String() + ">" + ev.Destination.String()
	switch ev.Kind {
	case lifecycle.EventRejected:
		m.rejections.WithLabelValues(reason(ev.Err)).Inc()
	case lifecycle.EventSubmitted:
		m.submitted[ev.TransferID] = ev.At
	case lifecycle.EventSucceeded:
		m.transfers.WithLabelValues("success", route).Inc()
	case lifecycle.EventFailed:
		m.transfers.WithLabelValues("error", route).Inc()
		m.stageFailures.WithLabelValues(string(ev.Stage)).Inc()
		delete(m.submitted, ev.TransferID)
	case lifecycle.EventCredited:
		amt, _ := ev.Amount.Float64()
		m.volume.WithLabelValues(ev.Destination.String()).Add(amt)
		if start, ok := m.submitted[ev.TransferID]; ok {
			m.settlementTime.Observe(ev.At.Sub(start).Seconds())
			delete(m.submitted, ev.TransferID)
		}
	}
}

// ObserveWallet is a wallet.AttemptObserver.
func (m *Metrics) ObserveWallet(s wallet.Strategy, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.walletAttempts.WithLabelValues(string(s), result).Inc()
}

// ObserveRefresh counts a balance refresh.
func (m *Metrics) ObserveRefresh(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) setStatus(current lifecycle.Status) {
	for _, s := range []lifecycle.Status{
		lifecycle.StatusIdle,
		lifecycle.StatusPending,
		lifecycle.StatusSuccess,
		lifecycle.StatusError,
	} {
		v := 0.0
		if s == current {
			v = 1
		}
		m.status.WithLabelValues(string(s)).Set(v)
	}
}

func reason(err error) string {
	switch {
	case errors.Is(err, lifecycle.ErrTransferInProgress):
		return "in_progress"
	case errors.Is(err, lifecycle.ErrNotIdle):
		return "not_idle"
	case errors.Is(err, lifecycle.ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, lifecycle.ErrWalletDisconnected):
		return "wallet_disconnected"
	case errors.Is(err, lifecycle.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, lifecycle.ErrMissingSource), errors.Is(err, lifecycle.ErrMissingDestination):
		return "incomplete_selection"
	default:
		return "other"
	}
}
