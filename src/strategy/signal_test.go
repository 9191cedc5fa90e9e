package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"orbexecutor/src/model"
)

func bar(open, high, low, closeP float64) model.Bar {
	return model.Bar{
		Timestamp: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closeP,
	}
}

func TestGenerator_BullishBarProducesBuy(t *testing.T) {
	gen := NewGenerator(0.01)

	// ATR 20 => R = 2
	signal, err := gen.FromBar(bar(2000, 2012, 1999, 2010), 20.0)
	require.NoError(t, err)

	require.Equal(t, model.DirectionBuy, signal.Direction)
	require.Equal(t, 2010.0, signal.ReferencePrice)
	require.Equal(t, 2008.0, signal.ReferenceStopPrice) // close - R
	require.Equal(t, 2.0, signal.R)
	require.InDelta(t, 0.5, signal.PctChange, 1e-9)
}

func TestGenerator_BearishBarProducesSell(t *testing.T) {
	gen := NewGenerator(0.01)

	signal, err := gen.FromBar(bar(2010, 2011, 1998, 2000), 20.0)
	require.NoError(t, err)

	require.Equal(t, model.DirectionSell, signal.Direction)
	require.Equal(t, 2000.0, signal.ReferencePrice)
	require.Equal(t, 2002.0, signal.ReferenceStopPrice) // close + R
}

func TestGenerator_FlatBarProducesNone(t *testing.T) {
	gen := NewGenerator(0.01)

	signal, err := gen.FromBar(bar(2000, 2005, 1995, 2000), 20.0)
	require.NoError(t, err)
	require.Equal(t, model.DirectionNone, signal.Direction)
	require.Zero(t, signal.ReferenceStopPrice)
}

func TestGenerator_RejectsInvalidATR(t *testing.T) {
	gen := NewGenerator(0.01)

	_, err := gen.FromBar(bar(2000, 2005, 1995, 2010), 0)
	require.Error(t, err)

	_, err = gen.FromBar(bar(2000, 2005, 1995, 2010), -1)
	require.Error(t, err)
}

func TestGenerator_RejectsZeroOpen(t *testing.T) {
	gen := NewGenerator(0.01)

	_, err := gen.FromBar(bar(0, 2005, 1995, 2010), 20.0)
	require.Error(t, err)
}

func TestQuantizeToTick(t *testing.T) {
	require.Equal(t, 2008.45, QuantizeToTick(2008.4501, 0.01))
	require.Equal(t, 2008.46, QuantizeToTick(2008.456, 0.01))
	require.Equal(t, 2008.5, QuantizeToTick(2008.4, 0.25))
	require.Equal(t, 100.0, QuantizeToTick(100.0, 0.01))

	// A non-positive tick falls back to cents.
	require.Equal(t, 99.99, QuantizeToTick(99.991, 0))
}
