package executor

import (
	"context"
	"time"

	logger "github.com/sirupsen/logrus"

	"orbexecutor/src/connectors"
)

// CancelAllOpenOrders cancels every open order on the session. It precedes
// every new submission so at most one live order per side can exist. Missing
// or zero-id orders are skipped; individual cancel failures are logged and do
// not stop the sweep. After any cancel, a short settle pause lets the venue
// process the requests.
func CancelAllOpenOrders(ctx context.Context, session connectors.Session, clock Clock) error {
	open, err := session.OpenOrders(ctx)
	if err != nil {
		logger.WithError(err).Error("failed to list open orders for cancellation")
		return err
	}
	if len(open) == 0 {
		logger.Debug("no open orders to cancel")
		return nil
	}

	cancelled := 0
	for i := range open {
		o := open[i]
		if o.Handle.ID == "" || o.Handle.ID == "0" {
			logger.WithField("ref", o.Handle.Ref).Debug("skipping order without a usable id")
			continue
		}
		if connectors.IsTerminalStatus(o.Status) {
			continue
		}

		if err := session.CancelOrder(ctx, &o.Handle); err != nil {
			logger.WithError(err).WithField("order_id", o.Handle.ID).Warn("failed to cancel open order")
			continue
		}
		cancelled++
	}

	if cancelled > 0 {
		logger.WithField("cancelled", cancelled).Info("cancelled open orders, waiting for the venue to settle")
		if err := clock.Sleep(ctx, 2*time.Second); err != nil {
			return err
		}
	}
	return nil
}
