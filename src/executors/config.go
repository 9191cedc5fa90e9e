package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	TargetSymbol string `envconfig:"TARGET_SYMBOL" default:"XAUUSD"`
	SecType      string `envconfig:"SEC_TYPE" default:"CMDTY"`
	Exchange     string `envconfig:"EXCHANGE" default:"SMART"`
	Currency     string `envconfig:"CURRENCY" default:"USD"`

	AccountSize float64 `envconfig:"ACCOUNT_SIZE" default:"25000"`
	RiskPct     float64 `envconfig:"RISK_PCT" default:"0.01"`
	Leverage    float64 `envconfig:"LEVERAGE" default:"4"`

	// ExitStrategy selects the single active policy close: EOD or MAX_DURATION.
	ExitStrategy   string `envconfig:"EXIT_STRATEGY" default:"EOD"`
	MaxHoldMinutes int    `envconfig:"MAX_HOLD_DURATION_MINUTES" default:"60"`
	EODHour        int    `envconfig:"EOD_HOUR" default:"15"`
	EODMinute      int    `envconfig:"EOD_MINUTE" default:"50"`

	SignalBarSize     string        `envconfig:"SIGNAL_BAR_SIZE" default:"5min"`
	SignalBarDuration string        `envconfig:"SIGNAL_BAR_DURATION" default:"1h"`
	SignalMaxAge      time.Duration `envconfig:"SIGNAL_MAX_AGE" default:"300s"`
	WaitForBarClose   bool          `envconfig:"WAIT_FOR_BAR_CLOSE" default:"true"`

	DailyBarDuration string `envconfig:"DAILY_BAR_DURATION" default:"30d"`
	ATRPeriod        int    `envconfig:"ATR_PERIOD" default:"14"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
