package quote

import (
	"testing"

	"github.com/matrixise/chainbridge/internal/catalog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func token(t *testing.T, symbol string, family catalog.Family) *catalog.Token {
	t.Helper()
	tok, ok := catalog.Default().Find(symbol, family)
	require.True(t, ok)
	return &tok
}

func fixedJitter(v float64) func() float64 {
	return func() float64 { return v }
}

func TestEstimatedFeeDeterministicJitter(t *testing.T) {
	eth := token(t, "ETH", catalog.FamilyERC20)
	usdtA := token(t, "USDT", catalog.FamilyERC20)
	usdtB := token(t, "USDT", catalog.FamilyTRC20)

	tests := []struct {
		name   string
		src    *catalog.Token
		dst    *catalog.Token
		amount string
		jitter float64
		want   string
	}{
		{"cross family no jitter", eth, usdtB, "1", 0, "0.00435"},
		{"cross family half jitter", eth, usdtB, "1", 0.5, "0.00460"},
		{"same family", eth, usdtA, "100", 0, "0.00760"},
		{"partial input", eth, usdtA, "1.", 0, "0.00265"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCalculator(fixedJitter(tt.jitter))
			assert.Equal(t, tt.want, c.EstimatedFee(tt.src, tt.dst, tt.amount))
		})
	}
}

func TestEstimatedFeeRange(t *testing.T) {
	eth := token(t, "ETH", catalog.FamilyERC20)
	usdtB := token(t, "USDT", catalog.FamilyTRC20)
	c := NewCalculator(nil)

	low, high := FeeBounds(*eth, *usdtB, decimal.NewFromInt(3))
	for range 200 {
		fee, err := decimal.NewFromString(c.EstimatedFee(eth, usdtB, "3"))
		require.NoError(t, err)
		assert.True(t, fee.GreaterThanOrEqual(low.Round(FeeDigits)), "fee %s below %s", fee, low)
		assert.True(t, fee.LessThanOrEqual(high.Round(FeeDigits)), "fee %s above %s", fee, high)
	}
}

func TestEstimatedFeeIncompleteInputs(t *testing.T) {
	eth := token(t, "ETH", catalog.FamilyERC20)
	usdtB := token(t, "USDT", catalog.FamilyTRC20)
	c := NewCalculator(fixedJitter(0.3))

	assert.Equal(t, "0", c.EstimatedFee(nil, usdtB, "1"))
	assert.Equal(t, "0", c.EstimatedFee(eth, nil, "1"))
	assert.Equal(t, "0", c.EstimatedFee(eth, usdtB, ""))
	assert.Equal(t, "0", c.EstimatedFee(eth, usdtB, "0"))
	assert.Equal(t, "0", c.EstimatedFee(eth, usdtB, "."))
	assert.Equal(t, "0", c.EstimatedFee(eth, usdtB, "abc"))
}

func TestReceivedAmount(t *testing.T) {
	eth := token(t, "ETH", catalog.FamilyERC20)
	usdtA := token(t, "USDT", catalog.FamilyERC20)
	usdtB := token(t, "USDT", catalog.FamilyTRC20)

	tests := []struct {
		name   string
		amount string
		dst    *catalog.Token
		want   string
	}{
		{"native destination", "100", eth, "99.8"},
		{"stablecoin destination", "100", usdtA, "99.8"},
		{"floored to two places", "10.005", usdtB, "9.98"},
		{"floored to four places", "1.23456789", eth, "1.232"},
		{"zero", "0", usdtB, "0"},
		{"missing destination", "100", nil, ""},
		{"empty amount", "", usdtB, ""},
		{"not a number", ".", usdtB, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReceivedAmount(tt.amount, tt.dst))
		})
	}
}

func TestSettlementTime(t *testing.T) {
	eth := token(t, "ETH", catalog.FamilyERC20)
	usdtA := token(t, "USDT", catalog.FamilyERC20)
	usdtB := token(t, "USDT", catalog.FamilyTRC20)

	assert.Equal(t, SpeedFast, SettlementTime(*eth, *usdtA))
	assert.Equal(t, SpeedSlow, SettlementTime(*eth, *usdtB))
	assert.Equal(t, "~5 minutes", SpeedFast.Estimate())
	assert.Equal(t, "~30 minutes", SpeedSlow.Estimate())
}

func TestQuote(t *testing.T) {
	eth := token(t, "ETH", catalog.FamilyERC20)
	usdtB := token(t, "USDT", catalog.FamilyTRC20)
	c := NewCalculator(fixedJitter(0))

	q := c.Quote(eth, usdtB, "1")
	assert.Equal(t, Quote{Fee: "0.00435", Received: "0.99", Speed: SpeedSlow}, q)

	q = c.Quote(nil, usdtB, "1")
	assert.Equal(t, Quote{Fee: "0"}, q)
}
