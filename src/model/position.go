package model

import "time"

// Position is the single live position owned by a run. Created only after the
// entry order reaches Filled; destroyed when the venue reports zero holdings
// or the exit executor confirms a fill.
type Position struct {
	Action     Direction
	Quantity   int
	EntryPrice float64
	EntryTime  time.Time
	StopPrice  float64
}
