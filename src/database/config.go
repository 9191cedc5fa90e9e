package database

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// DatabaseURL selects the driver by scheme: postgres:// DSNs use the
	// postgres driver, anything else is treated as a sqlite file path.
	DatabaseURL  string `envconfig:"DATABASE_URL" default:"orb_trades.db"`
	GormLogLevel int    `envconfig:"GORM_LOG_LEVEL" default:"2"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
