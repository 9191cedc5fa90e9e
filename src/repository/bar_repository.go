package repository

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"orbexecutor/src/database"
	"orbexecutor/src/model"
)

// BarRepository handles persistence of cached daily bars used for the
// volatility estimate when the gateway history endpoint is unavailable.
type BarRepository struct {
	db *gorm.DB
}

// NewBarRepository creates a repository bound to the main ledger database.
func NewBarRepository() *BarRepository {
	return &BarRepository{
		db: database.MainDB,
	}
}

// NewBarRepositoryWithDB creates a repository using the given gorm DB.
func NewBarRepositoryWithDB(db *gorm.DB) *BarRepository {
	return &BarRepository{
		db: db,
	}
}

// UpsertDailyBars inserts the given bars, updating OHLCV values on conflict
// so a re-run of the cache refresh is idempotent.
func (r *BarRepository) UpsertDailyBars(ctx context.Context, bars []model.DailyBar) error {
	if len(bars) == 0 {
		return nil
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "datetime"}, {Name: "symbol"}},
			DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
		}).
		Create(&bars).Error
	if err != nil {
		return err
	}

	logger.WithFields(map[string]interface{}{
		"symbol": bars[0].Symbol,
		"count":  len(bars),
	}).Info("Upserted daily bars")
	return nil
}

// FindRecent returns the most recent daily bars for the symbol in ascending
// chronological order.
func (r *BarRepository) FindRecent(ctx context.Context, symbol string, to time.Time, limit int) ([]model.DailyBar, error) {
	if limit <= 0 {
		limit = 30
	}

	var rows []model.DailyBar
	err := r.db.WithContext(ctx).
		Where("symbol = ? AND datetime <= ?", symbol, to).
		Order("datetime DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	// reverse to ascending chronological order for easier logic
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
