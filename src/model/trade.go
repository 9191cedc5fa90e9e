package model

import "time"

const (
	TradeResultProfit    = "Profit"
	TradeResultLoss      = "Loss"
	TradeResultBreakeven = "Breakeven"
)

// Exit reasons written verbatim into the trade record. MaxDurationReason is a
// format because the configured minutes are part of the literal string.
const (
	ExitReasonStopLoss          = "Stop Loss Triggered"
	ExitReasonEODClose          = "EOD Market Close"
	ExitReasonMaxDurationFormat = "Max Duration (%d min) Reached"
)

// TradeRecord is one row of the trade ledger. Appended at entry with the exit
// fields zeroed, mutated exactly once at exit, append-only thereafter.
type TradeRecord struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Symbol     string    `gorm:"size:30;index" json:"symbol"`
	Direction  Direction `gorm:"size:10" json:"direction"`
	EntryTime  time.Time `gorm:"index" json:"entry_time"`
	EntryPrice float64   `json:"entry_price"`
	Quantity   int       `json:"quantity"`
	StopPrice  float64   `json:"stop_price"`

	ExitTime   *time.Time `json:"exit_time,omitempty"`
	ExitPrice  float64    `json:"exit_price"`
	Pnl        float64    `json:"pnl"`
	PnlPercent float64    `json:"pnl_percent"`
	Duration   string     `gorm:"size:30" json:"duration"`
	ExitReason string     `gorm:"size:60" json:"exit_reason"`
	Result     string     `gorm:"size:20" json:"result"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (TradeRecord) TableName() string {
	return "trade_records"
}

// Closed reports whether the exit side of the record has been written.
func (t *TradeRecord) Closed() bool {
	return t.ExitReason != ""
}

// ClassifyResult maps a signed PnL to the literal result string.
func ClassifyResult(pnl float64) string {
	switch {
	case pnl > 0:
		return TradeResultProfit
	case pnl < 0:
		return TradeResultLoss
	default:
		return TradeResultBreakeven
	}
}
