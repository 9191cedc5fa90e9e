package repository

import (
	"context"
	"math"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"orbexecutor/src/database"
	"orbexecutor/src/model"
)

// entryPriceTolerance is the maximum entry-price difference for two records
// to be considered the same trade when matching and deduplicating.
const entryPriceTolerance = 0.1

// TradeRepository handles persistence of trade records in the ledger.
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a repository bound to the main ledger database.
func NewTradeRepository() *TradeRepository {
	return &TradeRepository{
		db: database.MainDB,
	}
}

// NewTradeRepositoryWithDB creates a repository using the given gorm DB.
func NewTradeRepositoryWithDB(db *gorm.DB) *TradeRepository {
	return &TradeRepository{
		db: db,
	}
}

// Append persists a new trade record.
func (r *TradeRepository) Append(ctx context.Context, record *model.TradeRecord) error {
	logger.WithFields(map[string]interface{}{
		"symbol":      record.Symbol,
		"direction":   record.Direction,
		"qty":         record.Quantity,
		"entry_price": record.EntryPrice,
	}).Info("Persisting new trade record")

	return r.db.WithContext(ctx).Create(record).Error
}

// CloseMatching applies the exit economics to the most recent open record
// whose entry price is within tolerance of the given one. A missing match is
// reported with gorm.ErrRecordNotFound.
func (r *TradeRepository) CloseMatching(ctx context.Context, entryPrice float64, outcome model.ExitOutcome) error {
	var record model.TradeRecord
	err := r.db.WithContext(ctx).
		Where("exit_reason = '' AND entry_price > ? AND entry_price < ?",
			entryPrice-entryPriceTolerance, entryPrice+entryPriceTolerance).
		Order("entry_time DESC").
		First(&record).Error
	if err != nil {
		return err
	}

	exitTime := outcome.ExitTime
	record.ExitPrice = outcome.ExitPrice
	record.ExitTime = &exitTime
	record.ExitReason = outcome.Reason
	record.Pnl = outcome.Pnl
	record.PnlPercent = outcome.PnlPercent
	record.Duration = outcome.Duration
	record.Result = outcome.Result

	logger.WithFields(map[string]interface{}{
		"id":     record.ID,
		"pnl":    record.Pnl,
		"result": record.Result,
		"reason": record.ExitReason,
	}).Info("Closing trade record")

	return r.db.WithContext(ctx).Save(&record).Error
}

// FindAll returns every trade record in chronological order.
func (r *TradeRepository) FindAll(ctx context.Context) ([]model.TradeRecord, error) {
	var records []model.TradeRecord
	err := r.db.WithContext(ctx).
		Order("entry_time ASC").
		Find(&records).Error
	return records, err
}

// FindClosed returns the completed trades in chronological order.
func (r *TradeRepository) FindClosed(ctx context.Context) ([]model.TradeRecord, error) {
	var records []model.TradeRecord
	err := r.db.WithContext(ctx).
		Where("exit_reason <> ''").
		Order("entry_time ASC").
		Find(&records).Error
	return records, err
}

// MergeAndPersist inserts the given records, skipping any that duplicate an
// existing row (same entry time and entry price within tolerance). Returns
// the number of records actually inserted.
func (r *TradeRepository) MergeAndPersist(ctx context.Context, records []model.TradeRecord) (int, error) {
	inserted := 0
	for i := range records {
		rec := records[i]

		var count int64
		err := r.db.WithContext(ctx).
			Model(&model.TradeRecord{}).
			Where("entry_time = ? AND entry_price > ? AND entry_price < ?",
				rec.EntryTime, rec.EntryPrice-entryPriceTolerance, rec.EntryPrice+entryPriceTolerance).
			Count(&count).Error
		if err != nil {
			return inserted, err
		}
		if count > 0 {
			continue
		}

		if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
			return inserted, err
		}
		inserted++
	}

	if inserted > 0 {
		logger.WithField("inserted", inserted).Info("Merged trade records into ledger")
	}
	return inserted, nil
}

// Summary aggregates the completed trades.
type Summary struct {
	TotalTrades int             `json:"total_trades"`
	Wins        int             `json:"wins"`
	Losses      int             `json:"losses"`
	Breakevens  int             `json:"breakevens"`
	WinRate     float64         `json:"win_rate"`
	TotalPnl    decimal.Decimal `json:"total_pnl"`
}

// Summarize computes aggregate statistics over the closed trades.
func (r *TradeRepository) Summarize(ctx context.Context) (Summary, error) {
	records, err := r.FindClosed(ctx)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{TotalTrades: len(records), TotalPnl: decimal.Zero}
	for _, rec := range records {
		switch rec.Result {
		case model.TradeResultProfit:
			summary.Wins++
		case model.TradeResultLoss:
			summary.Losses++
		case model.TradeResultBreakeven:
			summary.Breakevens++
		}
		summary.TotalPnl = summary.TotalPnl.Add(decimal.NewFromFloat(rec.Pnl))
	}
	if summary.TotalTrades > 0 {
		summary.WinRate = math.Round(float64(summary.Wins)/float64(summary.TotalTrades)*10000) / 100
	}
	return summary, nil
}
