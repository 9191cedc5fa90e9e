package barcache

import (
	"context"
	"net/http"
	"time"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"orbexecutor/src/model"
	"orbexecutor/src/repository"
)

// BarCache refreshes the local daily-bar table from a public reference
// exchange. The cache backs the ATR window when the gateway history endpoint
// is down; a liquid proxy pair stands in for the traded contract.
type BarCache struct {
	Log      *logger.Entry
	DB       *gorm.DB
	Config   *Config
	exchange goex.API
}

func (b *BarCache) Start() error {
	b.Config = GetConfig()

	if b.exchange == nil {
		b.exchange = newBinanceInstance()
	}

	klines, err := b.fetchDailyKlines()
	if err != nil {
		b.Log.WithError(err).Error("failed to fetch daily klines")
		return err
	}

	bars := make([]model.DailyBar, 0, len(klines))
	for i := range klines {
		k := klines[i]
		bars = append(bars, model.DailyBar{
			Datetime: time.Unix(k.Timestamp, 0).UTC(),
			Symbol:   b.Config.CacheSymbol,
			Open:     decimal.NewFromFloat(k.Open),
			High:     decimal.NewFromFloat(k.High),
			Low:      decimal.NewFromFloat(k.Low),
			Close:    decimal.NewFromFloat(k.Close),
			Volume:   decimal.NewFromFloat(k.Vol),
		})
	}

	repo := repository.NewBarRepositoryWithDB(b.DB)
	if err := repo.UpsertDailyBars(context.Background(), bars); err != nil {
		b.Log.WithError(err).Error("failed to upsert daily bars")
		return err
	}

	b.Log.WithFields(logger.Fields{
		"proxy":  b.Config.ProxySymbol + "_" + b.Config.ProxyQuote,
		"symbol": b.Config.CacheSymbol,
		"bars":   len(bars),
	}).Info("daily bar cache refreshed")
	return nil
}

func newBinanceInstance() *binance.Binance {
	apiConfig := &goex.APIConfig{
		HttpClient: http.DefaultClient,
		Endpoint:   binance.GLOBAL_API_BASE_URL,
	}
	return binance.NewWithConfig(apiConfig)
}

func (b *BarCache) fetchDailyKlines() ([]goex.Kline, error) {
	pair := goex.NewCurrencyPair(
		goex.Currency{Symbol: b.Config.ProxySymbol},
		goex.Currency{Symbol: b.Config.ProxyQuote},
	)

	const millis = 1000
	return b.exchange.GetKlineRecords(
		pair,
		goex.KLINE_PERIOD_1DAY,
		b.Config.Limit,
		goex.OptionalParameter{}.
			Optional("startTime", b.Config.StartDt.Unix()*millis).
			Optional("endTime", time.Now().Unix()*millis),
	)
}
