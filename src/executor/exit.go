package executor

import (
	"context"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"orbexecutor/src/connectors"
	"orbexecutor/src/model"
)

const exitMaxAttempts = 40

// RecordCloser applies the exit economics to the ledger record matching the
// entry price within the dedup tolerance.
type RecordCloser interface {
	CloseMatching(ctx context.Context, entryPrice float64, outcome model.ExitOutcome) error
}

// ExitExecutor forces a market-price close of the open position and finalizes
// the trade economics.
type ExitExecutor struct {
	session    connectors.Session
	clock      Clock
	instrument connectors.Instrument
	ledger     RecordCloser

	MaxAttempts int
}

func NewExitExecutor(session connectors.Session, clock Clock, instrument connectors.Instrument, ledger RecordCloser) *ExitExecutor {
	return &ExitExecutor{
		session:     session,
		clock:       clock,
		instrument:  instrument,
		ledger:      ledger,
		MaxAttempts: exitMaxAttempts,
	}
}

// Close cancels everything open, submits a market order opposite to the
// position and waits for the fill. On success the matching trade record is
// updated with the outcome; a failed close is logged and not retried within
// the same run.
func (x *ExitExecutor) Close(ctx context.Context, pos model.Position, reason string) (*model.ExitOutcome, error) {
	closeSide := pos.Action.Opposite()

	logger.WithFields(map[string]interface{}{
		"side":   closeSide,
		"qty":    pos.Quantity,
		"reason": reason,
	}).Info("executing market close")

	if err := CancelAllOpenOrders(ctx, x.session, x.clock); err != nil {
		return nil, err
	}

	handle, err := x.session.SubmitOrder(ctx, connectors.OrderRequest{
		Instrument: x.instrument,
		Side:       string(closeSide),
		Type:       connectors.OrderTypeMarket,
		Quantity:   pos.Quantity,
		TIF:        connectors.TIFDay,
		OutsideRTH: true,
		Ref:        fmt.Sprintf("Close_%s", shortRef()),
	})
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < x.MaxAttempts; attempt++ {
		if err := x.clock.Sleep(ctx, time.Second); err != nil {
			_ = x.session.CancelOrder(ctx, handle)
			return nil, err
		}

		state, err := x.session.PollStatus(ctx, handle)
		if err != nil {
			logger.WithError(err).WithField("order_id", handle.ID).Warn("close order status poll failed")
			continue
		}

		if attempt%3 == 0 || state.Status == connectors.StatusFilled {
			logger.WithFields(map[string]interface{}{
				"status":  state.Status,
				"attempt": fmt.Sprintf("%d/%d", attempt+1, x.MaxAttempts),
			}).Info("close order status")
		}

		if state.Status == connectors.StatusFilled {
			outcome := model.ComputeOutcome(pos.Action, pos.EntryPrice, state.AvgFillPrice, pos.Quantity, pos.EntryTime, x.clock.Now(), reason)

			if err := x.ledger.CloseMatching(ctx, pos.EntryPrice, outcome); err != nil {
				logger.WithError(err).Error("failed to update trade record after close")
			}

			logger.WithFields(map[string]interface{}{
				"direction": pos.Action,
				"qty":       pos.Quantity,
				"entry":     pos.EntryPrice,
				"exit":      outcome.ExitPrice,
				"pnl":       outcome.Pnl,
				"pnl_pct":   fmt.Sprintf("%.2f%%", outcome.PnlPercent),
				"duration":  outcome.Duration,
				"result":    outcome.Result,
				"reason":    reason,
			}).Info("trade closed")

			return &outcome, nil
		}
	}

	logger.WithField("attempts", x.MaxAttempts).Error("close order not filled within the attempt budget")
	return nil, fmt.Errorf("market close order not filled after %d attempts", x.MaxAttempts)
}
