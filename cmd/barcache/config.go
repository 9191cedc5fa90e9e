package barcache

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// ProxySymbol is the pair fetched from the public reference exchange. The
	// bars are cached under CacheSymbol so the executor fallback finds them.
	ProxySymbol string    `envconfig:"BARCACHE_SYMBOL" default:"PAXG"`
	ProxyQuote  string    `envconfig:"BARCACHE_QUOTE" default:"USDT"`
	CacheSymbol string    `envconfig:"BARCACHE_TARGET_SYMBOL" default:"XAUUSD"`
	StartDt     time.Time `envconfig:"BARCACHE_START_DATE" default:"2026-01-01T00:00:00Z"`
	Limit       int       `envconfig:"BARCACHE_LIMIT" default:"60"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
