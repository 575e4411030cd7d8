// Package quote derives fee, received amount and settlement estimates from
// a transfer selection. All functions are pure apart from the fee jitter.
package quote

import (
	"math/rand/v2"

	"github.com/matrixise/chainbridge/internal/amount"
	"github.com/matrixise/chainbridge/internal/catalog"
	"github.com/shopspring/decimal"
)

// FeeDigits is the fractional precision of the fee estimate.
const FeeDigits = 5

var (
	baseFee        = decimal.RequireFromString("0.0018")
	amountFeeRate  = decimal.RequireFromString("0.00005")
	crossFamilyFee = decimal.RequireFromString("0.0025")
	sameFamilyFee  = decimal.RequireFromString("0.0008")
	maxJitter      = decimal.RequireFromString("0.0005")

	// BridgeFeeRate is the protocol fee deducted from the displayed
	// received amount. It does not reduce the credited quantity.
	BridgeFeeRate = decimal.RequireFromString("0.002")
)

// Speed is the settlement time class of a route.
type Speed string

const (
	SpeedFast Speed = "fast"
	SpeedSlow Speed = "slow"
)

// Estimate is the human-readable duration of the speed class.
func (s Speed) Estimate() string {
	if s == SpeedFast {
		return "~5 minutes"
	}
	return "~30 minutes"
}

// Quote bundles every derived value for one selection.
type Quote struct {
	Fee      string
	Received string
	Speed    Speed
}

// Calculator computes quotes. The jitter source returns values in [0, 1).
type Calculator struct {
	jitter func() float64
}

// NewCalculator uses jitter for the fee noise; nil picks math/rand.
func NewCalculator(jitter func() float64) *Calculator {
	if jitter == nil {
		jitter = rand.Float64
	}
	return &Calculator{jitter: jitter}
}

// Quote computes all estimates. Received is only computed when a source is
// selected as well.
func (c *Calculator) Quote(source, destination *catalog.Token, raw string) Quote {
	q := Quote{Fee: c.EstimatedFee(source, destination, raw)}
	if source != nil {
		q.Received = ReceivedAmount(raw, destination)
	}
	if source != nil && destination != nil {
		q.Speed = SettlementTime(*source, *destination)
	}
	return q
}

// EstimatedFee returns the network fee with five fractional digits, or "0"
// when the selection is incomplete or the amount is not positive.
func (c *Calculator) EstimatedFee(source, destination *catalog.Token, raw string) string {
	if source == nil || destination == nil {
		return "0"
	}
	v, ok := amount.Positive(raw)
	if !ok {
		return "0"
	}

	routeFee := sameFamilyFee
	if source.Family != destination.Family {
		routeFee = crossFamilyFee
	}
	jitter := decimal.NewFromFloat(c.jitter()).Mul(maxJitter)

	return baseFee.
		Add(v.Mul(amountFeeRate)).
		Add(routeFee).
		Add(jitter).
		StringFixed(FeeDigits)
}

// FeeBounds returns the inclusive lower and exclusive upper bound of
// EstimatedFee for the route and amount.
func FeeBounds(source, destination catalog.Token, v decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	routeFee := sameFamilyFee
	if source.Family != destination.Family {
		routeFee = crossFamilyFee
	}
	low := baseFee.Add(v.Mul(amountFeeRate)).Add(routeFee)
	return low, low.Add(maxJitter)
}

// ReceivedAmount is amount minus the 0.2% bridge fee, floored to the
// destination's display precision. It returns "" when the destination is
// missing or the amount does not parse.
func ReceivedAmount(raw string, destination *catalog.Token) string {
	if destination == nil {
		return ""
	}
	v, ok := amount.Parse(raw)
	if !ok {
		return ""
	}
	net := v.Sub(v.Mul(BridgeFeeRate))
	return net.RoundFloor(destination.DisplayDecimals).String()
}

// SettlementTime is fast within a family and slow across families.
func SettlementTime(source, destination catalog.Token) Speed {
	if source.Family == destination.Family {
		return SpeedFast
	}
	return SpeedSlow
}
