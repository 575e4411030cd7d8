package oracle

import (
	"context"
	"math/big"
	"testing"

	"github.com/matrixise/chainbridge/internal/catalog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bigFromString(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok)
	return v
}

func TestToDecimal(t *testing.T) {
	tests := []struct {
		name     string
		raw      *big.Int
		decimals int32
		want     string
	}{
		{"nil", nil, 18, "0"},
		{"zero balance", big.NewInt(0), 18, "0"},
		{"1 wei with 18 decimals", big.NewInt(1), 18, "0.000000000000000001"},
		{"1 token (18 decimals)", big.NewInt(1000000000000000000), 18, "1"},
		{"1.5 tokens (18 decimals)", big.NewInt(1500000000000000000), 18, "1.5"},
		{"6 decimals token (USDT-like)", big.NewInt(1500000), 6, "1.5"},
		{"0 decimals token", big.NewInt(100), 0, "100"},
		{"large balance", nil, 18, "123456789"},
	}
	tests[len(tests)-1].raw = bigFromString(t, "123456789000000000000000000")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToDecimal(tt.raw, tt.decimals).String())
		})
	}
}

func TestToDecimalPreservesInput(t *testing.T) {
	raw := big.NewInt(1000000000000000000)
	_ = ToDecimal(raw, 18)
	assert.Equal(t, "1000000000000000000", raw.String())
}

func TestSimulatedCoversCatalog(t *testing.T) {
	c := catalog.Default()
	o := NewSimulated(c, 42)

	got, err := o.FetchBalances(context.Background(), "0x742d35Cc6634C0532925a3b844Bc9e7595f0bEb0")
	require.NoError(t, err)
	require.Len(t, got, c.Len())

	hundred := decimal.NewFromInt(100)
	for _, tok := range c.List() {
		v, ok := got[tok.Key()]
		require.True(t, ok, tok.Key().String())
		assert.False(t, v.IsNegative())
		assert.True(t, v.LessThan(hundred))
		assert.LessOrEqual(t, -v.Exponent(), tok.DisplayDecimals, "precision of %s", tok.Key())
	}
}

func TestSimulatedIsSeeded(t *testing.T) {
	c := catalog.Default()

	a, err := NewSimulated(c, 7).FetchBalances(context.Background(), "addr")
	require.NoError(t, err)
	b, err := NewSimulated(c, 7).FetchBalances(context.Background(), "addr")
	require.NoError(t, err)

	for k, v := range a {
		assert.True(t, v.Equal(b[k]), k.String())
	}
}

func TestSimulatedHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewSimulated(catalog.Default(), 1).FetchBalances(ctx, "addr")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatic(t *testing.T) {
	key := catalog.Key{Symbol: "ETH", Family: catalog.FamilyERC20}
	s := NewStatic(map[catalog.Key]decimal.Decimal{key: decimal.NewFromInt(10)})

	got, err := s.FetchBalances(context.Background(), "addr")
	require.NoError(t, err)
	assert.Equal(t, "10", got[key].String())

	got[key] = decimal.Zero
	again, _ := s.FetchBalances(context.Background(), "addr")
	assert.Equal(t, "10", again[key].String())

	s.SetDown(true)
	_, err = s.FetchBalances(context.Background(), "addr")
	assert.ErrorIs(t, err, ErrStaticUnavailable)
	assert.Equal(t, 3, s.Calls())
}

func TestNewEndpointPoolRequiresURL(t *testing.T) {
	_, err := NewEndpointPool(context.Background(), nil)
	assert.Error(t, err)
}
