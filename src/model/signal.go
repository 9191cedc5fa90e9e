package model

// Direction is the trade direction derived from the signal bar.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
	DirectionNone Direction = "NONE"
)

// Opposite returns the closing side for an open position in this direction.
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionBuy:
		return DirectionSell
	case DirectionSell:
		return DirectionBuy
	default:
		return DirectionNone
	}
}

// Signal is the per-cycle trading decision derived from the latest completed
// bar. Prices are already quantized to the instrument tick size.
type Signal struct {
	Direction          Direction
	ReferencePrice     float64 // signal bar close, used as the entry limit price
	ReferenceStopPrice float64 // close -/+ R depending on direction
	PctChange          float64 // (close-open)/open*100, kept for logging
	R                  float64 // ATR * 0.1
}

// SizingResult is the position size under joint risk and leverage constraints.
// Quantity = min(RiskBasedQty, LeverageBasedQty), each floored to >= 1; a
// one-shot post clamp may shrink Quantity further but never below 1.
type SizingResult struct {
	Quantity         int
	RiskBasedQty     int
	LeverageBasedQty int
	RiskAmount       float64 // Quantity * R
	PositionValue    float64 // Quantity * price
	ActualLeverage   float64 // PositionValue / accountSize
}
