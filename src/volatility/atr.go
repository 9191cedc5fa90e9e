package volatility

import (
	"fmt"
	"math"

	"orbexecutor/src/model"
)

// DefaultPeriod is the ATR lookback window.
const DefaultPeriod = 14

// Estimator keeps a rolling window of true-range samples over daily bars.
// The average is undefined until the window holds `period` samples.
type Estimator struct {
	period    int
	prevClose float64
	hasPrev   bool
	window    []float64
}

func NewEstimator(period int) *Estimator {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Estimator{period: period}
}

// AddBar folds one completed daily bar into the window.
func (e *Estimator) AddBar(bar model.Bar) {
	tr := bar.High - bar.Low
	if e.hasPrev {
		hpc := math.Abs(bar.High - e.prevClose)
		lpc := math.Abs(bar.Low - e.prevClose)
		tr = math.Max(tr, math.Max(hpc, lpc))
	}

	e.window = append(e.window, tr)
	if len(e.window) > e.period {
		e.window = e.window[1:]
	}

	e.prevClose = bar.Close
	e.hasPrev = true
}

// Average returns the current ATR. ok is false until the window is full.
func (e *Estimator) Average() (atr float64, ok bool) {
	if len(e.window) < e.period {
		return 0, false
	}
	var sum float64
	for _, tr := range e.window {
		sum += tr
	}
	return sum / float64(e.period), true
}

// FromBars computes the ATR over a bar series in one shot. It errors when the
// series is too short or the result is not a positive finite number; both are
// fatal upstream, no orders may be sized from a broken ATR.
func FromBars(bars []model.Bar, period int) (float64, error) {
	if period <= 0 {
		period = DefaultPeriod
	}
	if len(bars) < period {
		return 0, fmt.Errorf("insufficient daily bars for ATR: have %d, need %d", len(bars), period)
	}

	est := NewEstimator(period)
	for _, bar := range bars {
		est.AddBar(bar)
	}

	atr, ok := est.Average()
	if !ok {
		return 0, fmt.Errorf("ATR window not filled with %d bars", len(bars))
	}
	if math.IsNaN(atr) || math.IsInf(atr, 0) || atr <= 0 {
		return 0, fmt.Errorf("ATR is not a positive finite number: %f", atr)
	}
	return atr, nil
}
