package executors

import (
	"context"
	"fmt"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"orbexecutor/src/connectors"
	"orbexecutor/src/controller"
	"orbexecutor/src/executor"
	"orbexecutor/src/model"
	"orbexecutor/src/repository"
	"orbexecutor/src/risk"
	"orbexecutor/src/utils"
)

const signalBarInterval = 5 * time.Minute

// GatewaySession is the broker surface one cycle needs: the execution
// session plus contract resolution.
type GatewaySession interface {
	connectors.Session
	ResolveInstrument(ctx context.Context, symbol, secType, exchange, currency string) (*connectors.Instrument, error)
}

// RunCycle executes one signal-to-exit cycle against the gateway: resolve
// the contract, wait for the signal bar to complete, fetch market data and
// hand over to the trade controller. Returns controller.ErrNoSignal on a
// flat bar and a controller.FatalError when the run cannot continue.
func RunCycle(ctx context.Context, session GatewaySession, clock executor.Clock) error {
	config := GetConfig()

	// Contract resolution failure means nothing downstream can run.
	instrument, err := session.ResolveInstrument(ctx, config.TargetSymbol, config.SecType, config.Exchange, config.Currency)
	if err != nil {
		return controller.Fatal("instrument resolution", err)
	}
	logger.WithFields(map[string]interface{}{
		"symbol": instrument.Symbol,
		"conid":  instrument.ConID,
		"tick":   instrument.TickSize,
	}).Info("instrument resolved")

	if config.WaitForBarClose {
		if err := waitForBarClose(ctx, clock); err != nil {
			return err
		}
	}

	now := clock.Now()

	signalBar, err := fetchSignalBar(ctx, session, instrument.ConID, now, config)
	if err != nil {
		return controller.Fatal("signal bar fetch", err)
	}

	dailyBars, err := fetchDailyBars(ctx, session, instrument, now, config)
	if err != nil {
		return controller.Fatal("daily history fetch", err)
	}

	tc := controller.NewTradeController(session, clock, *instrument)
	return tc.Run(ctx, controller.CycleInput{
		DailyBars: dailyBars,
		SignalBar: signalBar,
		ATRPeriod: config.ATRPeriod,
		Sizing: risk.SizingConfig{
			AccountSize:  config.AccountSize,
			RiskFraction: config.RiskPct,
			LeverageCap:  config.Leverage,
		},
		Policy: exitPolicy(config),
	})
}

// waitForBarClose blocks until just past the next bar boundary so the signal
// bar read afterwards is a completed one.
func waitForBarClose(ctx context.Context, clock executor.Clock) error {
	now := clock.Now()
	boundary := utils.NextBarBoundary(now, signalBarInterval)
	wait := boundary.Sub(now) + time.Second

	logger.WithFields(map[string]interface{}{
		"boundary": boundary.Format(time.RFC3339),
		"wait":     wait.Round(time.Second).String(),
	}).Info("waiting for the signal bar to complete")

	return clock.Sleep(ctx, wait)
}

// fetchSignalBar returns the latest completed signal bar and rejects stale
// data: a bar older than the configured maximum age means the feed is not
// keeping up and no order may be derived from it.
func fetchSignalBar(ctx context.Context, session connectors.Session, conID int, now time.Time, config Config) (model.Bar, error) {
	bars, err := session.HistoricalBars(ctx, conID, now, config.SignalBarDuration, config.SignalBarSize)
	if err != nil {
		return model.Bar{}, err
	}
	if len(bars) == 0 {
		return model.Bar{}, fmt.Errorf("gateway returned no %s bars", config.SignalBarSize)
	}

	bar := bars[len(bars)-1]
	// The last bar may still be forming. Step back one if its window has not
	// closed yet.
	if now.Sub(bar.Timestamp) < signalBarInterval && len(bars) > 1 {
		bar = bars[len(bars)-2]
	}

	if age := now.Sub(bar.Timestamp.Add(signalBarInterval)); age > config.SignalMaxAge {
		return model.Bar{}, fmt.Errorf("signal bar is stale: closed %s ago, max age %s", age.Round(time.Second), config.SignalMaxAge)
	}

	logger.WithFields(map[string]interface{}{
		"open":  bar.Open,
		"close": bar.Close,
		"time":  bar.Timestamp.Format(time.RFC3339),
	}).Info("signal bar fetched")
	return bar, nil
}

// fetchDailyBars loads the ATR window from the gateway, falling back to the
// local daily-bar cache when the history endpoint fails.
func fetchDailyBars(ctx context.Context, session connectors.Session, instrument *connectors.Instrument, now time.Time, config Config) ([]model.Bar, error) {
	bars, err := session.HistoricalBars(ctx, instrument.ConID, now, config.DailyBarDuration, "1d")
	if err == nil && len(bars) >= config.ATRPeriod {
		return bars, nil
	}
	if err != nil {
		logger.WithError(err).Warn("gateway daily history failed, falling back to the local bar cache")
	} else {
		logger.WithField("bars", len(bars)).Warn("gateway daily history too short, falling back to the local bar cache")
	}

	cached, cacheErr := repository.NewBarRepository().FindRecent(ctx, instrument.Symbol, now, config.ATRPeriod*2)
	if cacheErr != nil {
		return nil, fmt.Errorf("daily history unavailable: gateway: %v, cache: %w", err, cacheErr)
	}
	if len(cached) < config.ATRPeriod {
		return nil, fmt.Errorf("daily history unavailable: cache holds %d bars, need %d", len(cached), config.ATRPeriod)
	}

	out := make([]model.Bar, 0, len(cached))
	for i := range cached {
		out = append(out, cached[i].ToBar())
	}
	logger.WithField("bars", len(out)).Info("ATR window loaded from the local bar cache")
	return out, nil
}

func exitPolicy(config Config) executor.ExitPolicy {
	strategyName := strings.ToUpper(strings.TrimSpace(config.ExitStrategy))
	if strategyName == string(executor.PolicyMaxDuration) {
		return executor.ExitPolicy{
			Kind:    executor.PolicyMaxDuration,
			MaxHold: time.Duration(config.MaxHoldMinutes) * time.Minute,
		}
	}
	if strategyName != string(executor.PolicyEOD) {
		logger.WithField("exit_strategy", config.ExitStrategy).Warn("unknown exit strategy, defaulting to EOD")
	}
	return executor.ExitPolicy{
		Kind:           executor.PolicyEOD,
		EODHour:        config.EODHour,
		EODMinuteStart: config.EODMinute,
	}
}
