package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"orbexecutor/src/connectors"
	"orbexecutor/src/model"
	"orbexecutor/src/strategy"
)

const (
	entryMaxAttempts  = 40
	entryRepriceAfter = 20 * time.Second
	entryMaxReprices  = 2
	entryRepricePct   = 0.001 // 0.1% improvement per reprice
)

// FillResult is the outcome of a filled entry order.
type FillResult struct {
	Price float64
	Time  time.Time
}

// EntryExecutor places the entry limit order and reprices it while it sits
// unfilled. At most one live entry order exists at any instant: every
// resubmission is preceded by a cancel of the previous one.
type EntryExecutor struct {
	session    connectors.Session
	clock      Clock
	instrument connectors.Instrument

	MaxAttempts  int
	RepriceAfter time.Duration
	MaxReprices  int
}

func NewEntryExecutor(session connectors.Session, clock Clock, instrument connectors.Instrument) *EntryExecutor {
	return &EntryExecutor{
		session:      session,
		clock:        clock,
		instrument:   instrument,
		MaxAttempts:  entryMaxAttempts,
		RepriceAfter: entryRepriceAfter,
		MaxReprices:  entryMaxReprices,
	}
}

// Execute runs the entry state machine. A nil FillResult with nil error means
// the order terminated without a fill (cancelled externally, or the attempt
// budget ran out); the final outstanding order is always cancelled before
// returning on that path.
func (e *EntryExecutor) Execute(ctx context.Context, direction model.Direction, qty int, limitPrice float64) (*FillResult, error) {
	if err := CancelAllOpenOrders(ctx, e.session, e.clock); err != nil {
		return nil, err
	}

	limit := strategy.QuantizeToTick(limitPrice, e.instrument.TickSize)

	handle, err := e.submitLimit(ctx, direction, qty, limit, fmt.Sprintf("Entry_%s", shortRef()))
	if err != nil {
		return nil, err
	}

	submittedAt := e.clock.Now()
	reprices := 0

	for attempt := 0; attempt < e.MaxAttempts; attempt++ {
		if err := e.clock.Sleep(ctx, time.Second); err != nil {
			_ = e.session.CancelOrder(ctx, handle)
			return nil, err
		}

		state, err := e.session.PollStatus(ctx, handle)
		if err != nil {
			logger.WithError(err).WithField("order_id", handle.ID).Warn("entry status poll failed")
			continue
		}

		if attempt%3 == 0 || connectors.IsTerminalStatus(state.Status) {
			logger.WithFields(map[string]interface{}{
				"status":  state.Status,
				"filled":  state.FilledQty,
				"qty":     qty,
				"attempt": fmt.Sprintf("%d/%d", attempt+1, e.MaxAttempts),
			}).Info("entry order status")
		}

		switch state.Status {
		case connectors.StatusFilled:
			fill := &FillResult{Price: state.AvgFillPrice, Time: e.clock.Now()}
			logger.WithFields(map[string]interface{}{
				"avg_price": fill.Price,
				"qty":       qty,
			}).Info("entry order filled")
			return fill, nil

		case connectors.StatusCancelled, connectors.StatusApiCancelled, connectors.StatusInactive:
			logger.WithField("status", state.Status).Warn("entry order cancelled or inactive")
			return nil, nil
		}

		if state.Status == connectors.StatusSubmitted &&
			e.clock.Now().Sub(submittedAt) > e.RepriceAfter &&
			reprices < e.MaxReprices {

			reprices++

			newLimit := limit * (1 + entryRepricePct)
			if direction == model.DirectionSell {
				newLimit = limit * (1 - entryRepricePct)
			}
			newLimit = strategy.QuantizeToTick(newLimit, e.instrument.TickSize)

			logger.WithFields(map[string]interface{}{
				"old_price": limit,
				"new_price": newLimit,
				"reprice":   fmt.Sprintf("%d/%d", reprices, e.MaxReprices),
			}).Info("entry order stuck, repricing")

			if err := e.session.CancelOrder(ctx, handle); err != nil {
				logger.WithError(err).WithField("order_id", handle.ID).Warn("failed to cancel stuck entry order")
			}
			if err := e.clock.Sleep(ctx, time.Second); err != nil {
				return nil, err
			}

			limit = newLimit
			handle, err = e.submitLimit(ctx, direction, qty, limit, fmt.Sprintf("EntryAdj%d_%s", reprices, shortRef()))
			if err != nil {
				return nil, err
			}
			submittedAt = e.clock.Now()
		}
	}

	logger.WithField("attempts", e.MaxAttempts).Warn("entry order not filled within the attempt budget, cancelling")
	if err := e.session.CancelOrder(ctx, handle); err != nil {
		logger.WithError(err).WithField("order_id", handle.ID).Error("failed to cancel expired entry order")
	}
	return nil, nil
}

func (e *EntryExecutor) submitLimit(ctx context.Context, direction model.Direction, qty int, price float64, ref string) (*connectors.OrderHandle, error) {
	return e.session.SubmitOrder(ctx, connectors.OrderRequest{
		Instrument: e.instrument,
		Side:       string(direction),
		Type:       connectors.OrderTypeLimit,
		Quantity:   qty,
		LimitPrice: price,
		TIF:        connectors.TIFDay,
		OutsideRTH: true,
		Ref:        ref,
	})
}

func shortRef() string {
	return uuid.NewString()[:8]
}
