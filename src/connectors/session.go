package connectors

import (
	"context"
	"time"

	"orbexecutor/src/model"
)

// Order sides and types as the gateway spells them.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"

	OrderTypeLimit  = "LMT"
	OrderTypeStop   = "STP"
	OrderTypeMarket = "MKT"

	TIFDay = "DAY"
	TIFGTC = "GTC"
)

// Order statuses reported by the gateway.
const (
	StatusPendingSubmit = "PendingSubmit"
	StatusPreSubmitted  = "PreSubmitted"
	StatusSubmitted     = "Submitted"
	StatusFilled        = "Filled"
	StatusCancelled     = "Cancelled"
	StatusApiCancelled  = "ApiCancelled"
	StatusInactive      = "Inactive"
)

// IsTerminalStatus reports whether no further transitions are possible.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusFilled, StatusCancelled, StatusApiCancelled, StatusInactive:
		return true
	}
	return false
}

// Instrument is a resolved, tradable contract plus its venue tick size.
// Contract-type branching (future/stock/forex/commodity) is the resolver's
// business; everything downstream only consumes this handle.
type Instrument struct {
	ConID    int
	Symbol   string
	SecType  string
	Exchange string
	Currency string
	TickSize float64
}

// OrderRequest describes one order to submit.
type OrderRequest struct {
	Instrument Instrument
	Side       string // BUY / SELL
	Type       string // LMT / STP / MKT
	Quantity   int
	LimitPrice float64 // LMT only
	StopPrice  float64 // STP only
	TIF        string  // DAY / GTC
	OutsideRTH bool
	Ref        string // client order reference, unique per submission
}

// OrderHandle identifies one submitted order. Owned exclusively by the
// issuing state machine until the order is terminal.
type OrderHandle struct {
	ID       string
	Ref      string
	Side     string
	Type     string
	Price    float64
	Quantity int
}

// OrderState is the authoritative status snapshot for a handle.
type OrderState struct {
	Status       string
	FilledQty    float64
	AvgFillPrice float64
}

// OpenOrder is one entry of the venue's open-order list.
type OpenOrder struct {
	Handle   OrderHandle
	Status   string
	AuxPrice float64 // stop trigger price for STP orders
}

// PositionInfo is one entry of the venue's position list.
type PositionInfo struct {
	ConID    int
	Symbol   string
	Quantity float64
	AvgCost  float64
}

// Session is the broker surface the execution core needs. All mutation and
// all reads go through it sequentially; every polling step re-reads this
// authoritative state instead of trusting previous local state.
type Session interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (*OrderHandle, error)
	CancelOrder(ctx context.Context, h *OrderHandle) error
	PollStatus(ctx context.Context, h *OrderHandle) (*OrderState, error)
	OpenOrders(ctx context.Context) ([]OpenOrder, error)
	Positions(ctx context.Context) ([]PositionInfo, error)
	MarketPrice(ctx context.Context, conID int) (float64, error)
	HistoricalBars(ctx context.Context, conID int, end time.Time, duration, barSize string) ([]model.Bar, error)
}
