package volatility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"orbexecutor/src/model"
)

func dailyBar(day int, open, high, low, closeP float64) model.Bar {
	return model.Bar{
		Timestamp: time.Date(2026, 2, day, 0, 0, 0, 0, time.UTC),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closeP,
	}
}

func TestFromBars_ConstantRange(t *testing.T) {
	// 14 bars with high-low = 10 and no gaps: ATR is exactly 10.
	bars := make([]model.Bar, 0, 14)
	for i := 1; i <= 14; i++ {
		bars = append(bars, dailyBar(i, 100, 105, 95, 100))
	}

	atr, err := FromBars(bars, 14)
	require.NoError(t, err)
	require.Equal(t, 10.0, atr)
}

func TestFromBars_GapUpUsesTrueRange(t *testing.T) {
	// Second bar gaps above the previous close: TR = high - prevClose.
	bars := []model.Bar{
		dailyBar(1, 100, 101, 99, 100), // TR = 2 (first bar, plain range)
		dailyBar(2, 110, 112, 109, 110), // TR = 112-100 = 12
	}

	atr, err := FromBars(bars, 2)
	require.NoError(t, err)
	require.Equal(t, 7.0, atr) // (2+12)/2
}

func TestFromBars_GapDownUsesTrueRange(t *testing.T) {
	bars := []model.Bar{
		dailyBar(1, 100, 101, 99, 100),
		dailyBar(2, 90, 91, 89, 90), // TR = 100-89 = 11
	}

	atr, err := FromBars(bars, 2)
	require.NoError(t, err)
	require.Equal(t, 6.5, atr) // (2+11)/2
}

func TestFromBars_SlidingWindowDropsOldSamples(t *testing.T) {
	// 15 bars for a 14 window: the first bar's sample must be dropped.
	bars := make([]model.Bar, 0, 15)
	bars = append(bars, dailyBar(1, 100, 200, 0, 100)) // huge range, must not count
	for i := 2; i <= 15; i++ {
		bars = append(bars, dailyBar(i, 100, 105, 95, 100))
	}

	atr, err := FromBars(bars, 14)
	require.NoError(t, err)
	// Bar 2's TR includes the gap vs bar 1's close (none here: same close), so
	// every remaining sample is 10.
	require.Equal(t, 10.0, atr)
}

func TestFromBars_InsufficientHistory(t *testing.T) {
	bars := []model.Bar{dailyBar(1, 100, 105, 95, 100)}

	_, err := FromBars(bars, 14)
	require.Error(t, err)
	require.Contains(t, err.Error(), "insufficient daily bars")
}

func TestFromBars_RejectsZeroRange(t *testing.T) {
	// All-identical prices produce a zero ATR, which is unusable for sizing.
	bars := make([]model.Bar, 0, 14)
	for i := 1; i <= 14; i++ {
		bars = append(bars, dailyBar(i, 100, 100, 100, 100))
	}

	_, err := FromBars(bars, 14)
	require.Error(t, err)
}

func TestEstimator_NotReadyUntilWindowFull(t *testing.T) {
	est := NewEstimator(3)
	est.AddBar(dailyBar(1, 100, 105, 95, 100))
	est.AddBar(dailyBar(2, 100, 105, 95, 100))

	_, ok := est.Average()
	require.False(t, ok)

	est.AddBar(dailyBar(3, 100, 105, 95, 100))
	atr, ok := est.Average()
	require.True(t, ok)
	require.Equal(t, 10.0, atr)
}
