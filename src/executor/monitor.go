package executor

import (
	"context"
	"fmt"
	"math"
	"time"

	logger "github.com/sirupsen/logrus"

	"orbexecutor/src/connectors"
	"orbexecutor/src/model"
)

// ExitPolicyKind selects the trigger condition the monitor enforces.
type ExitPolicyKind string

const (
	PolicyEOD         ExitPolicyKind = "EOD"
	PolicyMaxDuration ExitPolicyKind = "MAX_DURATION"
)

// ExitPolicy is the single active exit rule for a run.
type ExitPolicy struct {
	Kind           ExitPolicyKind
	EODHour        int // wall-clock hour in US/Eastern
	EODMinuteStart int
	MaxHold        time.Duration
}

const (
	monitorWakeInterval    = 5 * time.Second
	monitorRefreshInterval = 60 * time.Second

	// Price tolerance when matching the broker-held stop and the ledger record.
	priceMatchTolerance = 0.1
)

// Monitor supervises the open position until exactly one of three terminal
// transitions fires: the policy close (EOD or max duration), or a
// stop-trigger inferred from the position vanishing at the venue.
//
// The vanish inference cannot distinguish a true stop fill from a manual
// out-of-band close or a data glitch; the exit is synthesized at the recorded
// stop price either way. Known limitation.
type Monitor struct {
	session    connectors.Session
	clock      Clock
	instrument connectors.Instrument
	exit       *ExitExecutor
	ledger     RecordCloser

	WakeInterval    time.Duration
	RefreshInterval time.Duration

	location *time.Location
}

func NewMonitor(session connectors.Session, clock Clock, instrument connectors.Instrument, exit *ExitExecutor, ledger RecordCloser) *Monitor {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		logger.WithError(err).Warn("failed to load US/Eastern timezone, EOD checks fall back to UTC")
		loc = time.UTC
	}

	return &Monitor{
		session:         session,
		clock:           clock,
		instrument:      instrument,
		exit:            exit,
		ledger:          ledger,
		WakeInterval:    monitorWakeInterval,
		RefreshInterval: monitorRefreshInterval,
		location:        loc,
	}
}

// Run blocks until a terminal transition and returns the exit reason. The
// only error paths are context cancellation and an unrecoverable policy-close
// failure already logged by the exit executor.
func (m *Monitor) Run(ctx context.Context, pos model.Position, policy ExitPolicy) (string, error) {
	logger.WithFields(map[string]interface{}{
		"direction": pos.Action,
		"qty":       pos.Quantity,
		"entry":     pos.EntryPrice,
		"stop":      pos.StopPrice,
		"policy":    policy.Kind,
	}).Info("monitoring open position")

	m.verifyStopOrder(ctx, pos.StopPrice)

	lastRefresh := m.clock.Now()

	for {
		now := m.clock.Now()
		elapsed := now.Sub(pos.EntryTime)

		if reason := m.policyReason(now, elapsed, policy); reason != "" {
			logger.WithField("reason", reason).Info("exit policy triggered, closing at market")
			if _, err := m.exit.Close(ctx, pos, reason); err != nil {
				logger.WithError(err).Error("policy close failed, position may still be open")
			}
			return reason, nil
		}

		open, err := m.positionStillOpen(ctx)
		if err != nil {
			logger.WithError(err).Warn("position query failed, retrying next wake")
		} else if !open {
			return m.handleStopTriggered(ctx, pos)
		}

		if now.Sub(lastRefresh) >= m.RefreshInterval {
			m.refreshStatus(ctx, pos, elapsed)
			lastRefresh = now
		}

		if err := m.clock.Sleep(ctx, m.WakeInterval); err != nil {
			return "", err
		}
	}
}

func (m *Monitor) policyReason(now time.Time, elapsed time.Duration, policy ExitPolicy) string {
	switch policy.Kind {
	case PolicyEOD:
		et := now.In(m.location)
		if et.Hour() > policy.EODHour || (et.Hour() == policy.EODHour && et.Minute() >= policy.EODMinuteStart) {
			return model.ExitReasonEODClose
		}
	case PolicyMaxDuration:
		if elapsed >= policy.MaxHold {
			return fmt.Sprintf(model.ExitReasonMaxDurationFormat, int(policy.MaxHold.Minutes()))
		}
	}
	return ""
}

func (m *Monitor) positionStillOpen(ctx context.Context) (bool, error) {
	positions, err := m.session.Positions(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range positions {
		if p.ConID == m.instrument.ConID && p.Quantity != 0 {
			return true, nil
		}
	}
	return false, nil
}

// handleStopTriggered synthesizes the exit at the recorded stop price once
// the venue no longer reports the position.
func (m *Monitor) handleStopTriggered(ctx context.Context, pos model.Position) (string, error) {
	now := m.clock.Now()
	outcome := model.ComputeOutcome(pos.Action, pos.EntryPrice, pos.StopPrice, pos.Quantity, pos.EntryTime, now, model.ExitReasonStopLoss)

	logger.WithFields(map[string]interface{}{
		"entry":    pos.EntryPrice,
		"exit":     outcome.ExitPrice,
		"pnl":      outcome.Pnl,
		"pnl_pct":  fmt.Sprintf("%.2f%%", outcome.PnlPercent),
		"duration": outcome.Duration,
		"result":   outcome.Result,
	}).Info("position no longer reported by the venue, recording stop-loss exit")

	if err := m.ledger.CloseMatching(ctx, pos.EntryPrice, outcome); err != nil {
		logger.WithError(err).Error("failed to update trade record after stop trigger")
	}
	return model.ExitReasonStopLoss, nil
}

// verifyStopOrder warns when no broker-held stop near the recorded price is
// working. The broker stop is the actual enforcement mechanism; without it
// the position runs unguarded until the policy close.
func (m *Monitor) verifyStopOrder(ctx context.Context, stopPrice float64) {
	open, err := m.session.OpenOrders(ctx)
	if err != nil {
		logger.WithError(err).Warn("failed to list open orders for stop verification")
		return
	}

	for _, o := range open {
		if isStopType(o.Handle.Type) && math.Abs(o.AuxPrice-stopPrice) < priceMatchTolerance {
			logger.WithFields(map[string]interface{}{
				"order_id": o.Handle.ID,
				"price":    o.AuxPrice,
			}).Info("active stop order confirmed")
			return
		}
	}
	logger.WithField("stop", stopPrice).Warn("no active stop order detected, manual intervention may be required")
}

// refreshStatus logs unrealized PnL on the coarse cadence. Purely
// observational: a crossed stop here only warns, the broker-held stop order
// does the enforcement.
func (m *Monitor) refreshStatus(ctx context.Context, pos model.Position, elapsed time.Duration) {
	price, err := m.session.MarketPrice(ctx, m.instrument.ConID)
	if err != nil {
		logger.WithError(err).Warn("market price fetch failed during status refresh")
		return
	}

	diff := price - pos.EntryPrice
	if pos.Action == model.DirectionSell {
		diff = pos.EntryPrice - price
	}
	unrealized := diff * float64(pos.Quantity)
	pct := 0.0
	if pos.EntryPrice != 0 {
		pct = diff / pos.EntryPrice * 100
	}

	logger.WithFields(map[string]interface{}{
		"held":       model.FormatDuration(elapsed),
		"market":     price,
		"entry":      pos.EntryPrice,
		"stop":       pos.StopPrice,
		"unrealized": fmt.Sprintf("%.2f", unrealized),
		"pct":        fmt.Sprintf("%.2f%%", pct),
	}).Info("position status")

	crossed := (pos.Action == model.DirectionBuy && price <= pos.StopPrice) ||
		(pos.Action == model.DirectionSell && price >= pos.StopPrice)
	if crossed {
		logger.WithFields(map[string]interface{}{
			"market": price,
			"stop":   pos.StopPrice,
		}).Warn("market price has crossed the stop level, stop order may trigger shortly")
	}
}
