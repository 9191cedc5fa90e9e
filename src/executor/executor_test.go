package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"orbexecutor/src/connectors"
	"orbexecutor/src/model"
)

// fakeClock advances virtual time on every Sleep so polling loops run
// instantly in tests.
type fakeClock struct {
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.now = c.now.Add(d)
	return nil
}

// fakeSession is a scriptable broker session. Tests set the hooks they need;
// unset hooks fall back to benign defaults.
type fakeSession struct {
	mu sync.Mutex

	submitted []connectors.OrderRequest
	cancelled []string
	nextID    int

	onSubmit    func(req connectors.OrderRequest, h *connectors.OrderHandle) error
	onPoll      func(h *connectors.OrderHandle, poll int) (*connectors.OrderState, error)
	onPositions func(call int) ([]connectors.PositionInfo, error)

	openOrders  []connectors.OpenOrder
	positions   []connectors.PositionInfo
	marketPrice float64

	pollCount     int
	positionCalls int
}

func newFakeSession() *fakeSession {
	return &fakeSession{}
}

func (s *fakeSession) SubmitOrder(_ context.Context, req connectors.OrderRequest) (*connectors.OrderHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	h := &connectors.OrderHandle{
		ID:       fmt.Sprintf("%d", s.nextID),
		Ref:      req.Ref,
		Side:     req.Side,
		Type:     req.Type,
		Quantity: req.Quantity,
	}
	switch req.Type {
	case connectors.OrderTypeLimit:
		h.Price = req.LimitPrice
	case connectors.OrderTypeStop:
		h.Price = req.StopPrice
	}

	if s.onSubmit != nil {
		if err := s.onSubmit(req, h); err != nil {
			return nil, err
		}
	}
	s.submitted = append(s.submitted, req)
	return h, nil
}

func (s *fakeSession) CancelOrder(_ context.Context, h *connectors.OrderHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = append(s.cancelled, h.ID)
	return nil
}

func (s *fakeSession) PollStatus(_ context.Context, h *connectors.OrderHandle) (*connectors.OrderState, error) {
	s.mu.Lock()
	s.pollCount++
	poll := s.pollCount
	s.mu.Unlock()

	if s.onPoll != nil {
		return s.onPoll(h, poll)
	}
	return &connectors.OrderState{Status: connectors.StatusSubmitted}, nil
}

func (s *fakeSession) OpenOrders(_ context.Context) ([]connectors.OpenOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openOrders, nil
}

func (s *fakeSession) Positions(_ context.Context) ([]connectors.PositionInfo, error) {
	s.mu.Lock()
	s.positionCalls++
	call := s.positionCalls
	s.mu.Unlock()

	if s.onPositions != nil {
		return s.onPositions(call)
	}
	return s.positions, nil
}

func (s *fakeSession) MarketPrice(_ context.Context, _ int) (float64, error) {
	return s.marketPrice, nil
}

func (s *fakeSession) HistoricalBars(_ context.Context, _ int, _ time.Time, _, _ string) ([]model.Bar, error) {
	return nil, nil
}

func (s *fakeSession) submittedOfType(orderType string) []connectors.OrderRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []connectors.OrderRequest
	for _, req := range s.submitted {
		if req.Type == orderType {
			out = append(out, req)
		}
	}
	return out
}

// fakeLedger records CloseMatching calls.
type fakeLedger struct {
	mu       sync.Mutex
	closed   []model.ExitOutcome
	entryRef []float64
}

func (l *fakeLedger) CloseMatching(_ context.Context, entryPrice float64, outcome model.ExitOutcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = append(l.closed, outcome)
	l.entryRef = append(l.entryRef, entryPrice)
	return nil
}

var testInstrument = connectors.Instrument{
	ConID:    1234,
	Symbol:   "XAUUSD",
	SecType:  "CMDTY",
	Exchange: "SMART",
	Currency: "USD",
	TickSize: 0.01,
}
