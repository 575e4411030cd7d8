package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0"

// recordingConnector counts attempts and fails with err when set.
type recordingConnector struct {
	kind     Strategy
	err      error
	attempts int
}

func (c *recordingConnector) Strategy() Strategy { return c.kind }

func (c *recordingConnector) AttemptConnect(ctx context.Context) (Account, error) {
	c.attempts++
	if c.err != nil {
		return Account{}, c.err
	}
	return Account{Address: testAddress, Network: "ethereum"}, nil
}

func TestConnectFallbackOrder(t *testing.T) {
	tests := []struct {
		name         string
		failing      []bool
		wantAttempts []int
		wantOK       bool
	}{
		{"primary succeeds", []bool{false, false, false}, []int{1, 0, 0}, true},
		{"falls back to injected", []bool{true, false, false}, []int{1, 1, 0}, true},
		{"falls back to walletconnect", []bool{true, true, false}, []int{1, 1, 1}, true},
		{"all fail", []bool{true, true, true}, []int{1, 1, 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var chain []Connector
			var recs []*recordingConnector
			for i, s := range DefaultOrder {
				rc := &recordingConnector{kind: s}
				if tt.failing[i] {
					rc.err = errors.New("boom")
				}
				recs = append(recs, rc)
				chain = append(chain, rc)
			}

			a := NewAdapter(chain)
			conn := a.Connect(context.Background())

			assert.Equal(t, tt.wantOK, conn.Connected)
			for i, rc := range recs {
				assert.Equal(t, tt.wantAttempts[i], rc.attempts, "attempts for %s", rc.kind)
			}
			if tt.wantOK {
				assert.Equal(t, testAddress, a.CurrentAddress())
				assert.NoError(t, a.LastError())
			} else {
				assert.Empty(t, a.CurrentAddress())
				assert.ErrorIs(t, a.LastError(), ErrWalletUnavailable)
			}
		})
	}
}

func TestConnectWithoutConnectors(t *testing.T) {
	a := NewAdapter(nil)
	conn := a.Connect(context.Background())

	assert.False(t, conn.Connected)
	assert.ErrorIs(t, a.LastError(), ErrWalletUnavailable)
}

func TestConnectWhenAlreadyConnected(t *testing.T) {
	rc := &recordingConnector{kind: StrategyMetaMask}
	a := NewAdapter([]Connector{rc})

	a.Connect(context.Background())
	a.Connect(context.Background())

	assert.Equal(t, 1, rc.attempts)
}

func TestObserverSeesEveryAttempt(t *testing.T) {
	var seen []Strategy
	var failures int
	a := NewAdapter(SimulatedChain(testAddress, "ethereum", "", []Strategy{StrategyInjected}),
		WithObserver(func(s Strategy, err error) {
			seen = append(seen, s)
			if err != nil {
				failures++
			}
		}))

	conn := a.Connect(context.Background())
	require.True(t, conn.Connected)
	assert.Equal(t, []Strategy{StrategyMetaMask, StrategyInjected}, seen)
	assert.Equal(t, 1, failures)
}

func TestSimulatedWalletConnectNeedsProjectID(t *testing.T) {
	a := NewAdapter(SimulatedChain(testAddress, "ethereum", "", []Strategy{StrategyWalletConnect}))
	conn := a.Connect(context.Background())

	assert.False(t, conn.Connected)
	assert.ErrorIs(t, a.LastError(), ErrMissingProjectID)
	assert.ErrorIs(t, a.LastError(), ErrConnectorUnavailable)

	a = NewAdapter(SimulatedChain(testAddress, "ethereum", "project", []Strategy{StrategyWalletConnect}))
	conn = a.Connect(context.Background())
	assert.True(t, conn.Connected)
}

func TestDisconnect(t *testing.T) {
	a := NewAdapter(SimulatedChain(testAddress, "ethereum", "", DefaultOrder))
	a.Connect(context.Background())
	require.True(t, a.Connection().Connected)

	a.Disconnect()
	assert.Equal(t, Connection{}, a.Connection())
	assert.Empty(t, a.CurrentAddress())
}

func TestSwitchNetwork(t *testing.T) {
	a := NewAdapter(SimulatedChain(testAddress, "ethereum", "", DefaultOrder), WithNetworks("ethereum", "tron"))

	assert.ErrorIs(t, a.SwitchNetwork("tron"), ErrNotConnected)

	a.Connect(context.Background())
	require.NoError(t, a.SwitchNetwork("tron"))
	assert.Equal(t, "tron", a.Connection().Network)

	assert.ErrorIs(t, a.SwitchNetwork("solana"), ErrUnsupportedNetwork)
	assert.Equal(t, "tron", a.Connection().Network)
}

func TestShortAddress(t *testing.T) {
	assert.Equal(t, "0x742d...bEb0", ShortAddress(testAddress))
	assert.Equal(t, "", ShortAddress(""))
	assert.Equal(t, "short", ShortAddress("short"))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("MetaMask")
	require.NoError(t, err)
	assert.Equal(t, StrategyMetaMask, s)

	_, err = ParseStrategy("ledger")
	assert.Error(t, err)
}
