package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestComputeOutcome_LongProfit(t *testing.T) {
	entryTime := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	exitTime := entryTime.Add(63*time.Minute + 5*time.Second)

	outcome := ComputeOutcome(DirectionBuy, 2000.0, 2010.0, 2, entryTime, exitTime, ExitReasonEODClose)

	require.Equal(t, 20.0, outcome.Pnl)
	require.Equal(t, 0.5, outcome.PnlPercent)
	require.Equal(t, TradeResultProfit, outcome.Result)
	require.Equal(t, "1h3m5s", outcome.Duration)
	require.Equal(t, ExitReasonEODClose, outcome.Reason)
}

func TestComputeOutcome_ShortProfit(t *testing.T) {
	entryTime := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	exitTime := entryTime.Add(30 * time.Minute)

	outcome := ComputeOutcome(DirectionSell, 2000.0, 1990.0, 3, entryTime, exitTime, ExitReasonStopLoss)

	require.Equal(t, 30.0, outcome.Pnl)
	require.Equal(t, TradeResultProfit, outcome.Result)
}

func TestComputeOutcome_StopLossAtRecordedStop(t *testing.T) {
	entryTime := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	exitTime := entryTime.Add(10 * time.Minute)

	outcome := ComputeOutcome(DirectionBuy, 2000.0, 1998.0, 10, entryTime, exitTime, ExitReasonStopLoss)

	require.Equal(t, -20.0, outcome.Pnl)
	require.Equal(t, -0.1, outcome.PnlPercent)
	require.Equal(t, TradeResultLoss, outcome.Result)
}

func TestComputeOutcome_Breakeven(t *testing.T) {
	entryTime := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	outcome := ComputeOutcome(DirectionBuy, 2000.0, 2000.0, 1, entryTime, entryTime.Add(time.Minute), ExitReasonEODClose)

	require.Zero(t, outcome.Pnl)
	require.Equal(t, TradeResultBreakeven, outcome.Result)
}

func TestComputeOutcome_RoundsToCents(t *testing.T) {
	entryTime := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	outcome := ComputeOutcome(DirectionBuy, 100.0, 100.333333, 3, entryTime, entryTime.Add(time.Minute), ExitReasonEODClose)

	require.Equal(t, 1.0, outcome.Pnl)
	require.Equal(t, 0.33, outcome.PnlPercent)
}

func TestFormatDuration(t *testing.T) {
	require.Equal(t, "0h0m0s", FormatDuration(0))
	require.Equal(t, "0h5m30s", FormatDuration(5*time.Minute+30*time.Second))
	require.Equal(t, "2h0m1s", FormatDuration(2*time.Hour+time.Second))
	require.Equal(t, "0h0m0s", FormatDuration(-time.Minute))
}

func TestClassifyResult(t *testing.T) {
	require.Equal(t, TradeResultProfit, ClassifyResult(0.01))
	require.Equal(t, TradeResultLoss, ClassifyResult(-0.01))
	require.Equal(t, TradeResultBreakeven, ClassifyResult(0))
}

func TestDirectionOpposite(t *testing.T) {
	require.Equal(t, DirectionSell, DirectionBuy.Opposite())
	require.Equal(t, DirectionBuy, DirectionSell.Opposite())
}
