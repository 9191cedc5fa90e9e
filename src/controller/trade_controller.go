package controller

import (
	"context"
	"fmt"

	logger "github.com/sirupsen/logrus"

	"orbexecutor/src/connectors"
	"orbexecutor/src/executor"
	"orbexecutor/src/model"
	"orbexecutor/src/repository"
	"orbexecutor/src/risk"
	"orbexecutor/src/strategy"
	"orbexecutor/src/volatility"
)

// CycleInput carries everything one trade cycle needs besides the live
// session: the completed signal bar, the daily history for the volatility
// estimate, and the per-run risk and exit parameters.
type CycleInput struct {
	DailyBars []model.Bar
	SignalBar model.Bar
	ATRPeriod int
	Sizing    risk.SizingConfig
	Policy    executor.ExitPolicy
}

// TradeController drives one full position lifecycle. Flow:
// 1) compute ATR over the daily bars
// 2) derive the directional signal from the completed signal bar
// 3) size the position from the risk budget and leverage cap
// 4) execute the repricing limit entry
// 5) recompute the working stop one R from the actual fill
// 6) attach the protective stop order
// 7) append the open trade to the ledger
// 8) monitor until a terminal exit and finalize the record
type TradeController struct {
	session    connectors.Session
	clock      executor.Clock
	instrument connectors.Instrument

	tradeRepo     *repository.TradeRepository
	exceptionRepo *repository.ExceptionRepository
}

func NewTradeController(session connectors.Session, clock executor.Clock, instrument connectors.Instrument) *TradeController {
	return &TradeController{
		session:       session,
		clock:         clock,
		instrument:    instrument,
		tradeRepo:     repository.NewTradeRepository(),
		exceptionRepo: repository.NewExceptionRepository(),
	}
}

// NewTradeControllerWithRepos allows injecting the repositories, mainly for
// tests against an in-memory database.
func NewTradeControllerWithRepos(
	session connectors.Session,
	clock executor.Clock,
	instrument connectors.Instrument,
	tradeRepo *repository.TradeRepository,
	exceptionRepo *repository.ExceptionRepository,
) *TradeController {
	return &TradeController{
		session:       session,
		clock:         clock,
		instrument:    instrument,
		tradeRepo:     tradeRepo,
		exceptionRepo: exceptionRepo,
	}
}

// Run executes one trade cycle. It returns ErrNoSignal when the signal bar is
// flat, nil when the cycle completed (including a no-fill entry, which leaves
// no position behind), and a FatalError when the run cannot continue.
func (tc *TradeController) Run(ctx context.Context, in CycleInput) error {
	// ------------------------------------------------------------------
	// 1) Volatility estimate from the daily history
	// ------------------------------------------------------------------
	atr, err := volatility.FromBars(in.DailyBars, in.ATRPeriod)
	if err != nil {
		Capture(ctx, tc.exceptionRepo, "TradeController", "controller", "volatility.FromBars", "fatal", err, map[string]interface{}{
			"bars": len(in.DailyBars),
		})
		return Fatal("volatility estimate", err)
	}
	logger.WithFields(map[string]interface{}{
		"atr":    fmt.Sprintf("%.4f", atr),
		"period": in.ATRPeriod,
	}).Info("volatility estimate ready")

	// ------------------------------------------------------------------
	// 2) Directional signal from the completed bar
	// ------------------------------------------------------------------
	gen := strategy.NewGenerator(tc.instrument.TickSize)
	signal, err := gen.FromBar(in.SignalBar, atr)
	if err != nil {
		Capture(ctx, tc.exceptionRepo, "TradeController", "controller", "strategy.FromBar", "fatal", err, map[string]interface{}{})
		return Fatal("signal generation", err)
	}
	if signal.Direction == model.DirectionNone {
		logger.Info("signal bar closed flat, no trade this cycle")
		return ErrNoSignal
	}

	// ------------------------------------------------------------------
	// 3) Position sizing
	// ------------------------------------------------------------------
	sizing, err := risk.CalculateSize(in.Sizing, signal.R, signal.ReferencePrice)
	if err != nil {
		Capture(ctx, tc.exceptionRepo, "TradeController", "controller", "risk.CalculateSize", "fatal", err, map[string]interface{}{
			"r":     signal.R,
			"price": signal.ReferencePrice,
		})
		return Fatal("position sizing", err)
	}

	// ------------------------------------------------------------------
	// 4) Entry limit order at the signal bar close
	// ------------------------------------------------------------------
	entry := executor.NewEntryExecutor(tc.session, tc.clock, tc.instrument)
	fill, err := entry.Execute(ctx, signal.Direction, sizing.Quantity, signal.ReferencePrice)
	if err != nil {
		Capture(ctx, tc.exceptionRepo, "TradeController", "controller", "entry.Execute", "error", err, map[string]interface{}{
			"direction": signal.Direction,
			"qty":       sizing.Quantity,
		})
		return err
	}
	if fill == nil {
		logger.Info("entry order did not fill, cycle ends with no position")
		return nil
	}

	// ------------------------------------------------------------------
	// 5) Recompute the working stop one R from the actual fill price. The
	//    reference stop was anchored on the signal close; the fill may differ.
	// ------------------------------------------------------------------
	workingStop := fill.Price - signal.R
	if signal.Direction == model.DirectionSell {
		workingStop = fill.Price + signal.R
	}
	workingStop = strategy.QuantizeToTick(workingStop, tc.instrument.TickSize)

	// ------------------------------------------------------------------
	// 6) Protective stop order
	// ------------------------------------------------------------------
	stopMgr := executor.NewStopLossManager(tc.session, tc.clock, tc.instrument)
	stopRes, err := stopMgr.Place(ctx, signal.Direction, sizing.Quantity, workingStop, fill.Price)
	if err != nil {
		Capture(ctx, tc.exceptionRepo, "TradeController", "controller", "stopMgr.Place", "error", err, map[string]interface{}{
			"stop": workingStop,
		})
		return err
	}
	if !stopRes.Confirmed {
		logger.Warn("stop order unconfirmed, continuing with monitoring only")
	}

	pos := model.Position{
		Action:     signal.Direction,
		Quantity:   sizing.Quantity,
		EntryPrice: fill.Price,
		EntryTime:  fill.Time,
		StopPrice:  stopRes.StopPrice,
	}

	// ------------------------------------------------------------------
	// 7) Append the open trade to the ledger. A persistence failure is
	//    logged but never aborts the run: the live position takes priority.
	// ------------------------------------------------------------------
	record := &model.TradeRecord{
		Symbol:     tc.instrument.Symbol,
		Direction:  pos.Action,
		EntryTime:  pos.EntryTime,
		EntryPrice: pos.EntryPrice,
		Quantity:   pos.Quantity,
		StopPrice:  pos.StopPrice,
	}
	if err := tc.tradeRepo.Append(ctx, record); err != nil {
		Capture(ctx, tc.exceptionRepo, "TradeController", "controller", "tradeRepo.Append", "error", err, map[string]interface{}{
			"entry_price": pos.EntryPrice,
		})
	}

	// ------------------------------------------------------------------
	// 8) Monitor until a terminal exit
	// ------------------------------------------------------------------
	exit := executor.NewExitExecutor(tc.session, tc.clock, tc.instrument, tc.tradeRepo)
	monitor := executor.NewMonitor(tc.session, tc.clock, tc.instrument, exit, tc.tradeRepo)

	reason, err := monitor.Run(ctx, pos, in.Policy)
	if err != nil {
		Capture(ctx, tc.exceptionRepo, "TradeController", "controller", "monitor.Run", "error", err, map[string]interface{}{})
		return err
	}

	logger.WithField("reason", reason).Info("trade cycle completed")
	return nil
}
