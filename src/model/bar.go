package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bar is a completed price bar as delivered by the broker session.
// Immutable once received.
type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// DailyBar is a cached daily bar persisted in the ledger database. It is the
// fallback source for the ATR window when the venue returns no history.
type DailyBar struct {
	ID       uint            `gorm:"primaryKey" json:"id"`
	Datetime time.Time       `gorm:"index:idx_daily_bars_symbol_dt,unique" json:"datetime"`
	Symbol   string          `gorm:"size:30;index:idx_daily_bars_symbol_dt,unique" json:"symbol"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"volume"`
}

func (DailyBar) TableName() string {
	return "daily_bars"
}

// ToBar converts a cached row back to the in-memory bar used by the
// volatility estimator.
func (d *DailyBar) ToBar() Bar {
	open, _ := d.Open.Float64()
	high, _ := d.High.Float64()
	low, _ := d.Low.Float64()
	closeP, _ := d.Close.Float64()
	vol, _ := d.Volume.Float64()

	return Bar{
		Timestamp: d.Datetime,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     closeP,
		Volume:    vol,
	}
}
