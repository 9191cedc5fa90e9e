package database

import (
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"orbexecutor/src/model"
)

// MainDB is the ledger database connection used by the application.
var MainDB *gorm.DB

// InitMainDB initializes the ledger database connection and runs migrations.
// This should be called once at application startup (e.g. in main()).
func InitMainDB() error {
	config := GetConfig()

	dialector := openDialector(config.DatabaseURL)
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to connect to ledger database")
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		logrus.WithError(err).Error("Failed to get DB from GORM")
		return err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	// Assign to the global variable only after a successful connection.
	MainDB = db

	logrus.Info("[database] ledger connection established")

	if err := MainDB.AutoMigrate(
		&model.TradeRecord{},
		&model.DailyBar{},
		&model.Exception{},
	); err != nil {
		logrus.WithError(err).Error("Failed to migrate ledger database")
		return err
	}

	return nil
}

func openDialector(url string) gorm.Dialector {
	if strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://") {
		return postgres.Open(url)
	}
	return sqlite.Open(url)
}
