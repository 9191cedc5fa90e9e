package executor

import (
	"context"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"orbexecutor/src/connectors"
	"orbexecutor/src/model"
	"orbexecutor/src/strategy"
)

const (
	stopMaxAttempts    = 10
	stopRetryThreshold = 8     // PendingSubmit at or past this attempt triggers the single resubmit
	stopMinOffsetPct   = 0.001 // the stop sits at least 0.1% beyond the fill price
)

// StopResult carries the stop price actually working at the venue and whether
// its acceptance could be confirmed.
type StopResult struct {
	StopPrice float64
	Confirmed bool
}

// StopLossManager attaches the protective stop order after an entry fill.
// An unconfirmed stop is a partial failure: the caller logs it and keeps
// monitoring, the position just runs without a confirmed broker-side guard.
type StopLossManager struct {
	session    connectors.Session
	clock      Clock
	instrument connectors.Instrument

	MaxAttempts int
}

func NewStopLossManager(session connectors.Session, clock Clock, instrument connectors.Instrument) *StopLossManager {
	return &StopLossManager{
		session:     session,
		clock:       clock,
		instrument:  instrument,
		MaxAttempts: stopMaxAttempts,
	}
}

// Place cancels all open orders, submits a GTC stop on the protective side
// and polls until the venue accepts it. The stop price is the tighter of the
// reference stop and the minimum offset from the fill: for a long the stop
// must sit at or below fill*0.999, for a short at or above fill*1.001.
func (m *StopLossManager) Place(ctx context.Context, entryDirection model.Direction, qty int, referenceStop, fillPrice float64) (StopResult, error) {
	slSide := entryDirection.Opposite()

	if err := CancelAllOpenOrders(ctx, m.session, m.clock); err != nil {
		return StopResult{StopPrice: referenceStop}, err
	}

	stop := referenceStop
	if slSide == model.DirectionSell {
		// Guarding a long: stop below the fill.
		if limit := fillPrice * (1 - stopMinOffsetPct); stop > limit {
			stop = limit
		}
	} else {
		// Guarding a short: stop above the fill.
		if limit := fillPrice * (1 + stopMinOffsetPct); stop < limit {
			stop = limit
		}
	}
	stop = strategy.QuantizeToTick(stop, m.instrument.TickSize)

	logger.WithFields(map[string]interface{}{
		"side":  slSide,
		"qty":   qty,
		"price": stop,
	}).Info("placing stop loss order")

	handle, err := m.submitStop(ctx, slSide, qty, stop, fmt.Sprintf("Stop_%s", shortRef()))
	if err != nil {
		return StopResult{StopPrice: stop}, err
	}

	retried := false
	for attempt := 0; attempt < m.MaxAttempts; attempt++ {
		if err := m.clock.Sleep(ctx, time.Second); err != nil {
			_ = m.session.CancelOrder(ctx, handle)
			return StopResult{StopPrice: stop}, err
		}

		state, err := m.session.PollStatus(ctx, handle)
		if err != nil {
			logger.WithError(err).WithField("order_id", handle.ID).Warn("stop order status poll failed")
			continue
		}

		if attempt%3 == 0 || state.Status != "" {
			logger.WithFields(map[string]interface{}{
				"status":  state.Status,
				"attempt": fmt.Sprintf("%d/%d", attempt+1, m.MaxAttempts),
			}).Info("stop order status")
		}

		switch state.Status {
		case connectors.StatusSubmitted, connectors.StatusPreSubmitted, connectors.StatusFilled:
			logger.WithField("status", state.Status).Info("stop order accepted")
			return StopResult{StopPrice: stop, Confirmed: true}, nil
		}

		if state.Status == connectors.StatusPendingSubmit && attempt >= m.retryThreshold() && !retried {
			retried = true
			logger.Warn("stop order stuck in PendingSubmit, nudging price and resubmitting")

			if err := m.session.CancelOrder(ctx, handle); err != nil {
				logger.WithError(err).Warn("failed to cancel stuck stop order")
			}
			if err := m.clock.Sleep(ctx, 2*time.Second); err != nil {
				return StopResult{StopPrice: stop}, err
			}

			// One tick further in the protective direction.
			nudge := m.instrument.TickSize
			if slSide == model.DirectionSell {
				nudge = -nudge
			}
			stop = strategy.QuantizeToTick(stop+nudge, m.instrument.TickSize)

			handle, err = m.submitStop(ctx, slSide, qty, stop, fmt.Sprintf("StopRetry_%s", shortRef()))
			if err != nil {
				return StopResult{StopPrice: stop}, err
			}

			if err := m.clock.Sleep(ctx, 3*time.Second); err != nil {
				_ = m.session.CancelOrder(ctx, handle)
				return StopResult{StopPrice: stop}, err
			}
			if state, err := m.session.PollStatus(ctx, handle); err == nil {
				logger.WithField("status", state.Status).Info("resubmitted stop order status")
				if state.Status == connectors.StatusSubmitted || state.Status == connectors.StatusPreSubmitted {
					return StopResult{StopPrice: stop, Confirmed: true}, nil
				}
			}
		}
	}

	// Last resort: re-list open orders and look for a working stop on the
	// protective side.
	if open, err := m.session.OpenOrders(ctx); err == nil {
		for _, o := range open {
			if isStopType(o.Handle.Type) && o.Handle.Side == string(slSide) {
				logger.WithFields(map[string]interface{}{
					"order_id": o.Handle.ID,
					"aux":      o.AuxPrice,
				}).Info("stop order confirmed via open order listing")
				return StopResult{StopPrice: stop, Confirmed: true}, nil
			}
		}
	}

	logger.WithField("price", stop).Warn("unable to confirm stop order acceptance, manual intervention may be required")
	return StopResult{StopPrice: stop, Confirmed: false}, nil
}

func (m *StopLossManager) retryThreshold() int {
	if m.MaxAttempts < stopMaxAttempts {
		// Keep the single retry near the end of a shortened budget.
		return m.MaxAttempts - 2
	}
	return stopRetryThreshold
}

func (m *StopLossManager) submitStop(ctx context.Context, side model.Direction, qty int, stopPrice float64, ref string) (*connectors.OrderHandle, error) {
	return m.session.SubmitOrder(ctx, connectors.OrderRequest{
		Instrument: m.instrument,
		Side:       string(side),
		Type:       connectors.OrderTypeStop,
		Quantity:   qty,
		StopPrice:  stopPrice,
		TIF:        connectors.TIFGTC,
		OutsideRTH: true,
		Ref:        ref,
	})
}

func isStopType(orderType string) bool {
	return orderType == connectors.OrderTypeStop || orderType == "STOP"
}
