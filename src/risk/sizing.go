package risk

import (
	"fmt"
	"math"

	logger "github.com/sirupsen/logrus"

	"orbexecutor/src/model"
)

// SizingConfig carries the per-run risk parameters.
type SizingConfig struct {
	AccountSize  float64
	RiskFraction float64 // e.g. 0.01 risks 1% of the account per trade
	LeverageCap  float64 // gross position value may not exceed account * cap
}

// CalculateSize converts the risk budget and the leverage cap into an order
// quantity. Deterministic and side-effect free given its inputs.
//
// quantity = min(floor(account*riskFraction/R), floor(account*leverage/price)),
// each floored to >= 1. If the resulting gross exposure still exceeds the
// leverage cap, one corrective recompute shrinks the quantity (never below 1);
// the correction is one-shot, not iterative.
func CalculateSize(cfg SizingConfig, r, price float64) (model.SizingResult, error) {
	if cfg.AccountSize <= 0 || cfg.RiskFraction <= 0 || cfg.LeverageCap <= 0 {
		return model.SizingResult{}, fmt.Errorf("sizing config must be positive: account=%f riskFraction=%f leverage=%f",
			cfg.AccountSize, cfg.RiskFraction, cfg.LeverageCap)
	}
	if r <= 0 || price <= 0 {
		return model.SizingResult{}, fmt.Errorf("sizing inputs must be positive: r=%f price=%f", r, price)
	}

	riskQty := int(math.Floor(cfg.AccountSize * cfg.RiskFraction / r))
	if riskQty < 1 {
		riskQty = 1
	}

	levQty := int(math.Floor(cfg.AccountSize * cfg.LeverageCap / price))
	if levQty < 1 {
		levQty = 1
	}

	qty := riskQty
	if levQty < qty {
		qty = levQty
	}

	// Post-hoc clamp: floor rounding of riskQty=1 can still overshoot the cap
	// for large-priced instruments.
	if float64(qty)*price/cfg.AccountSize > cfg.LeverageCap {
		adjusted := int(math.Floor(cfg.AccountSize * cfg.LeverageCap / price))
		if adjusted < 1 {
			adjusted = 1
		}
		logger.WithFields(map[string]interface{}{
			"qty":      qty,
			"adjusted": adjusted,
			"price":    price,
		}).Warn("leverage cap exceeded, shrinking quantity")
		qty = adjusted
	}

	result := model.SizingResult{
		Quantity:         qty,
		RiskBasedQty:     riskQty,
		LeverageBasedQty: levQty,
		RiskAmount:       float64(qty) * r,
		PositionValue:    float64(qty) * price,
		ActualLeverage:   float64(qty) * price / cfg.AccountSize,
	}

	logger.WithFields(map[string]interface{}{
		"risk_qty":     riskQty,
		"leverage_qty": levQty,
		"quantity":     qty,
		"risk_amount":  result.RiskAmount,
		"leverage":     fmt.Sprintf("%.2fx", result.ActualLeverage),
	}).Info("position sized")

	return result, nil
}
