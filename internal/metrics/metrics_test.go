package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/matrixise/chainbridge/internal/catalog"
	"github.com/matrixise/chainbridge/internal/lifecycle"
	"github.com/matrixise/chainbridge/internal/wallet"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var (
	ethA  = catalog.Key{Symbol: "ETH", Family: catalog.FamilyERC20}
	usdtB = catalog.Key{Symbol: "USDT", Family: catalog.FamilyTRC20}
)

func TestTransferLifecycleMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	base := lifecycle.Event{TransferID: "tx-1", Source: ethA, Destination: usdtB, Amount: decimal.NewFromInt(2)}

	ev := base
	ev.Kind, ev.Status, ev.At = lifecycle.EventSubmitted, lifecycle.StatusPending, start
	m.ObserveTransfer(ev)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.status.WithLabelValues("pending")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.status.WithLabelValues("idle")))

	ev.Kind, ev.Status, ev.At = lifecycle.EventSucceeded, lifecycle.StatusSuccess, start.Add(3500*time.Millisecond)
	m.ObserveTransfer(ev)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transfers.WithLabelValues("success", "ETH-ERC20>USDT-TRC20")))

	ev.Kind, ev.At = lifecycle.EventCredited, start.Add(8500*time.Millisecond)
	m.ObserveTransfer(ev)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.volume.WithLabelValues("USDT-TRC20")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.settlementTime))
	assert.Empty(t, m.submitted)
}

func TestRejectionReasons(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	for _, err := range []error{
		lifecycle.ErrTransferInProgress,
		lifecycle.ErrTransferInProgress,
		lifecycle.ErrMissingDestination,
		errors.New("boom"),
	} {
		m.ObserveTransfer(lifecycle.Event{Kind: lifecycle.EventRejected, Status: lifecycle.StatusPending, Err: err})
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.rejections.WithLabelValues("in_progress")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("incomplete_selection")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues("other")))
}

func TestFailureCountsStage(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveTransfer(lifecycle.Event{
		Kind:   lifecycle.EventFailed,
		Status: lifecycle.StatusError,
		Stage:  lifecycle.StageBridge,
		Source: ethA, Destination: usdtB,
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.stageFailures.WithLabelValues("bridge")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.status.WithLabelValues("error")))
}

func TestWalletAndRefreshCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveWallet(wallet.StrategyMetaMask, wallet.ErrConnectorUnavailable)
	m.ObserveWallet(wallet.StrategyInjected, nil)
	m.ObserveRefresh(nil)
	m.ObserveRefresh(errors.New("rpc down"))
	m.ObserveRefresh(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.walletAttempts.WithLabelValues("metamask", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.walletAttempts.WithLabelValues("injected", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.refreshes.WithLabelValues("ok")))
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)
	assert.Panics(t, func() { NewMetrics(reg) })
}
