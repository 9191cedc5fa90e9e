package strategy

import (
	"fmt"
	"math"

	logger "github.com/sirupsen/logrus"

	"orbexecutor/src/model"
)

// RMultipleFactor converts the ATR into the R unit used for both the stop
// distance and risk-based sizing.
const RMultipleFactor = 0.1

// Generator classifies a completed bar into a directional signal. Pure; the
// only inputs are the bar, the ATR and the instrument tick size.
type Generator struct {
	TickSize float64
}

func NewGenerator(tickSize float64) *Generator {
	return &Generator{TickSize: tickSize}
}

// FromBar derives the per-cycle signal. BUY when the bar closed above its
// open, SELL below, NONE on a flat bar. The reference stop sits one R from
// the close on the protective side. All returned prices are tick-quantized.
func (g *Generator) FromBar(bar model.Bar, atr float64) (model.Signal, error) {
	if math.IsNaN(atr) || math.IsInf(atr, 0) || atr <= 0 {
		return model.Signal{}, fmt.Errorf("invalid ATR for signal generation: %f", atr)
	}
	if bar.Open == 0 {
		return model.Signal{}, fmt.Errorf("signal bar has zero open price")
	}

	r := atr * RMultipleFactor
	pctChange := (bar.Close - bar.Open) / bar.Open * 100

	signal := model.Signal{
		Direction:      model.DirectionNone,
		ReferencePrice: QuantizeToTick(bar.Close, g.TickSize),
		PctChange:      pctChange,
		R:              r,
	}

	switch {
	case pctChange > 0:
		signal.Direction = model.DirectionBuy
		signal.ReferenceStopPrice = QuantizeToTick(bar.Close-r, g.TickSize)
	case pctChange < 0:
		signal.Direction = model.DirectionSell
		signal.ReferenceStopPrice = QuantizeToTick(bar.Close+r, g.TickSize)
	}

	logger.WithFields(map[string]interface{}{
		"direction":  signal.Direction,
		"pct_change": fmt.Sprintf("%.2f%%", pctChange),
		"close":      bar.Close,
		"ref_stop":   signal.ReferenceStopPrice,
		"r":          r,
	}).Info("signal derived from completed bar")

	return signal, nil
}
