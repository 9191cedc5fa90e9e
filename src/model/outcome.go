package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ExitOutcome is the economics of one closed trade, applied to the matching
// TradeRecord exactly once.
type ExitOutcome struct {
	ExitTime   time.Time
	ExitPrice  float64
	Pnl        float64
	PnlPercent float64
	Duration   string
	Result     string
	Reason     string
}

// ComputeOutcome derives signed PnL and duration for a closed position.
// Long: (exit-entry)*qty. Short: (entry-exit)*qty. Monetary values are
// rounded to cents.
func ComputeOutcome(action Direction, entryPrice, exitPrice float64, qty int, entryTime, exitTime time.Time, reason string) ExitOutcome {
	entry := decimal.NewFromFloat(entryPrice)
	exit := decimal.NewFromFloat(exitPrice)
	quantity := decimal.NewFromInt(int64(qty))

	diff := exit.Sub(entry)
	if action == DirectionSell {
		diff = entry.Sub(exit)
	}

	pnl := diff.Mul(quantity).Round(2)
	pnlPct := decimal.Zero
	if !entry.IsZero() {
		pnlPct = diff.Div(entry).Mul(decimal.NewFromInt(100)).Round(2)
	}

	pnlF, _ := pnl.Float64()
	pnlPctF, _ := pnlPct.Float64()

	return ExitOutcome{
		ExitTime:   exitTime,
		ExitPrice:  exitPrice,
		Pnl:        pnlF,
		PnlPercent: pnlPctF,
		Duration:   FormatDuration(exitTime.Sub(entryTime)),
		Result:     ClassifyResult(pnlF),
		Reason:     reason,
	}
}

// FormatDuration renders a holding time as "1h3m5s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	return fmt.Sprintf("%dh%dm%ds", hours, minutes, seconds)
}
