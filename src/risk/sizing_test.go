package risk

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func defaultConfig() SizingConfig {
	return SizingConfig{
		AccountSize:  25000,
		RiskFraction: 0.01,
		LeverageCap:  4,
	}
}

func TestCalculateSize_RiskBudgetBinds(t *testing.T) {
	// riskQty = floor(250/2) = 125, levQty = floor(100000/2000) = 50.
	result, err := CalculateSize(defaultConfig(), 2.0, 2000.0)
	require.NoError(t, err)

	require.Equal(t, 125, result.RiskBasedQty)
	require.Equal(t, 50, result.LeverageBasedQty)
	require.Equal(t, 50, result.Quantity)
	require.Equal(t, 100000.0, result.PositionValue)
	require.Equal(t, 4.0, result.ActualLeverage)
}

func TestCalculateSize_LeverageCapBinds(t *testing.T) {
	// riskQty = floor(250/50) = 5, levQty = floor(100000/1000) = 100.
	result, err := CalculateSize(defaultConfig(), 50.0, 1000.0)
	require.NoError(t, err)

	require.Equal(t, 5, result.RiskBasedQty)
	require.Equal(t, 100, result.LeverageBasedQty)
	require.Equal(t, 5, result.Quantity)
	require.Equal(t, 250.0, result.RiskAmount)
}

func TestCalculateSize_MinimumOneUnit(t *testing.T) {
	// A tiny account still trades one unit even when floor() yields zero.
	cfg := SizingConfig{AccountSize: 100, RiskFraction: 0.01, LeverageCap: 100}
	result, err := CalculateSize(cfg, 5.0, 50.0)
	require.NoError(t, err)
	require.Equal(t, 1, result.Quantity)
}

func TestCalculateSize_PostHocLeverageClamp(t *testing.T) {
	// Both floors hit the >=1 minimum and the single unit still exceeds the
	// cap; the one-shot correction cannot go below 1.
	cfg := SizingConfig{AccountSize: 1000, RiskFraction: 0.01, LeverageCap: 2}
	result, err := CalculateSize(cfg, 100.0, 50000.0)
	require.NoError(t, err)
	require.Equal(t, 1, result.Quantity)
	require.Greater(t, result.ActualLeverage, cfg.LeverageCap)
}

func TestCalculateSize_RejectsBadInputs(t *testing.T) {
	_, err := CalculateSize(defaultConfig(), 0, 2000.0)
	require.Error(t, err)

	_, err = CalculateSize(defaultConfig(), 2.0, 0)
	require.Error(t, err)

	_, err = CalculateSize(SizingConfig{}, 2.0, 2000.0)
	require.Error(t, err)
}
