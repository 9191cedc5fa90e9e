package strategy

import (
	"github.com/shopspring/decimal"
)

// QuantizeToTick rounds price to the nearest integer multiple of the
// instrument tick size. Every price sent to the venue must pass through here.
func QuantizeToTick(price, tickSize float64) float64 {
	if tickSize <= 0 {
		tickSize = 0.01
	}

	p := decimal.NewFromFloat(price)
	tick := decimal.NewFromFloat(tickSize)

	ticks := p.Div(tick).Round(0)
	out, _ := ticks.Mul(tick).Float64()
	return out
}
