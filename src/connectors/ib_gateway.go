package connectors

// REST client for the IB Client Portal gateway (local /v1/api surface).
// RESTY ONLY + INTERNAL RETRY

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	logger "github.com/sirupsen/logrus"

	"orbexecutor/src/model"
)

const (
	defaultRetryAttempts   = 5
	defaultRetryBaseDelay  = 500 * time.Millisecond
	defaultRetryMaxBackoff = 8 * time.Second
)

// -----------------------------
// WIRE TYPES
// -----------------------------

type gatewayOrderPayload struct {
	ConID      int     `json:"conid"`
	OrderType  string  `json:"orderType"`
	Side       string  `json:"side"`
	Quantity   int     `json:"quantity"`
	Price      float64 `json:"price,omitempty"`
	AuxPrice   float64 `json:"auxPrice,omitempty"`
	TIF        string  `json:"tif"`
	OutsideRTH bool    `json:"outsideRTH"`
	COID       string  `json:"cOID,omitempty"`
}

type gatewaySubmitResponse struct {
	OrderID     string   `json:"order_id"`
	OrderStatus string   `json:"order_status"`
	ID          string   `json:"id"`      // confirmation prompt id, when present
	Message     []string `json:"message"` // confirmation prompt text
}

type gatewayOrderStatus struct {
	OrderID      int    `json:"order_id"`
	OrderStatus  string `json:"order_status"`
	CumFill      string `json:"cum_fill"`
	AvgFillPrice string `json:"average_price"`
}

type gatewayLiveOrder struct {
	OrderID   int     `json:"orderId"`
	ConID     int     `json:"conid"`
	Status    string  `json:"status"`
	Side      string  `json:"side"`
	OrderType string  `json:"orderType"`
	Price     float64 `json:"price"`
	StopPrice float64 `json:"stop_price"`
	Quantity  float64 `json:"totalSize"`
	OrderRef  string  `json:"order_ref"`
}

type gatewayLiveOrdersResponse struct {
	Orders []gatewayLiveOrder `json:"orders"`
}

type gatewayPosition struct {
	ConID        int     `json:"conid"`
	ContractDesc string  `json:"contractDesc"`
	Position     float64 `json:"position"`
	AvgCost      float64 `json:"avgCost"`
}

type gatewaySnapshotEntry struct {
	ConID     int    `json:"conid"`
	LastPrice string `json:"31"` // field 31 = last price
}

type gatewayHistoryBar struct {
	T int64   `json:"t"` // epoch millis
	O float64 `json:"o"`
	H float64 `json:"h"`
	L float64 `json:"l"`
	C float64 `json:"c"`
	V float64 `json:"v"`
}

type gatewayHistoryResponse struct {
	Data []gatewayHistoryBar `json:"data"`
}

type gatewaySecdefEntry struct {
	ConID       string `json:"conid"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Sections    []struct {
		SecType  string `json:"secType"`
		Exchange string `json:"exchange"`
	} `json:"sections"`
}

type gatewayContractRules struct {
	Rules struct {
		Increment float64 `json:"increment"`
	} `json:"rules"`
}

// -----------------------------
// CLIENT
// -----------------------------

// IBGatewayClient talks to a locally running Client Portal gateway. The
// gateway owns authentication; this client only assumes an established
// brokerage session.
type IBGatewayClient struct {
	accountID string
	baseURL   string
	http      *resty.Client
	stream    *MarketDataStream // optional, see WithStream
}

func NewIBGatewayClient(accountID, baseURL string, insecureTLS bool) *IBGatewayClient {
	retryCount := defaultRetryAttempts - 1

	if strings.TrimSpace(baseURL) == "" {
		baseURL = GetConfig().GatewayBaseURL
		logger.Warnf("No base URL provided, using default: %s", baseURL)
	}
	baseURL = strings.TrimRight(baseURL, "/")

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(GetConfig().GatewayTimeout).
		SetRetryCount(retryCount).
		SetRetryWaitTime(defaultRetryBaseDelay).
		SetRetryMaxWaitTime(defaultRetryMaxBackoff).
		AddRetryCondition(isRetryableResp)

	if insecureTLS {
		// The gateway ships with a self-signed certificate on localhost.
		httpClient.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return &IBGatewayClient{
		accountID: accountID,
		baseURL:   baseURL,
		http:      httpClient,
	}
}

// WithStream attaches a market-data stream; MarketPrice prefers the stream's
// last tick and falls back to a REST snapshot.
func (c *IBGatewayClient) WithStream(s *MarketDataStream) *IBGatewayClient {
	c.stream = s
	return c
}

func isRetryableResp(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == 408 || code == 429 || code >= 500
}

// -----------------------------
// ORDERS
// -----------------------------

// SubmitOrder posts the order and answers one round of gateway confirmation
// prompts (price-cap / outside-RTH warnings) before returning the handle.
func (c *IBGatewayClient) SubmitOrder(ctx context.Context, req OrderRequest) (*OrderHandle, error) {
	payload := map[string]interface{}{
		"orders": []gatewayOrderPayload{{
			ConID:      req.Instrument.ConID,
			OrderType:  req.Type,
			Side:       req.Side,
			Quantity:   req.Quantity,
			Price:      req.LimitPrice,
			AuxPrice:   req.StopPrice,
			TIF:        req.TIF,
			OutsideRTH: req.OutsideRTH,
			COID:       req.Ref,
		}},
	}

	var out []gatewaySubmitResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&out).
		Post(fmt.Sprintf("/iserver/account/%s/orders", c.accountID))
	if err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("submit order: gateway returned %d: %s", resp.StatusCode(), resp.String())
	}
	if len(out) == 0 {
		return nil, errors.New("submit order: empty gateway response")
	}

	first := out[0]
	if first.OrderID == "" && first.ID != "" {
		confirmed, err := c.confirmReply(ctx, first.ID)
		if err != nil {
			return nil, err
		}
		first = confirmed
	}
	if first.OrderID == "" {
		return nil, fmt.Errorf("submit order: no order id in gateway response (messages: %s)", strings.Join(first.Message, "; "))
	}

	price := req.LimitPrice
	if req.Type == OrderTypeStop {
		price = req.StopPrice
	}

	logger.WithFields(map[string]interface{}{
		"order_id": first.OrderID,
		"ref":      req.Ref,
		"side":     req.Side,
		"type":     req.Type,
		"qty":      req.Quantity,
		"price":    price,
	}).Info("gateway - order submitted")

	return &OrderHandle{
		ID:       first.OrderID,
		Ref:      req.Ref,
		Side:     req.Side,
		Type:     req.Type,
		Price:    price,
		Quantity: req.Quantity,
	}, nil
}

func (c *IBGatewayClient) confirmReply(ctx context.Context, replyID string) (gatewaySubmitResponse, error) {
	var out []gatewaySubmitResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]bool{"confirmed": true}).
		SetResult(&out).
		Post("/iserver/reply/" + replyID)
	if err != nil {
		return gatewaySubmitResponse{}, fmt.Errorf("confirm order reply: %w", err)
	}
	if resp.IsError() || len(out) == 0 {
		return gatewaySubmitResponse{}, fmt.Errorf("confirm order reply: gateway returned %d: %s", resp.StatusCode(), resp.String())
	}
	return out[0], nil
}

func (c *IBGatewayClient) CancelOrder(ctx context.Context, h *OrderHandle) error {
	if h == nil || h.ID == "" {
		return nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		Delete(fmt.Sprintf("/iserver/account/%s/order/%s", c.accountID, h.ID))
	if err != nil {
		return fmt.Errorf("cancel order %s: %w", h.ID, err)
	}
	if resp.IsError() {
		return fmt.Errorf("cancel order %s: gateway returned %d: %s", h.ID, resp.StatusCode(), resp.String())
	}

	logger.WithField("order_id", h.ID).Info("gateway - cancel requested")
	return nil
}

func (c *IBGatewayClient) PollStatus(ctx context.Context, h *OrderHandle) (*OrderState, error) {
	if h == nil || h.ID == "" {
		return nil, errors.New("poll status: nil or unsubmitted handle")
	}

	var out gatewayOrderStatus
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/iserver/account/order/status/" + h.ID)
	if err != nil {
		return nil, fmt.Errorf("poll status %s: %w", h.ID, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("poll status %s: gateway returned %d: %s", h.ID, resp.StatusCode(), resp.String())
	}

	filled, _ := strconv.ParseFloat(out.CumFill, 64)
	avg, _ := strconv.ParseFloat(out.AvgFillPrice, 64)

	return &OrderState{
		Status:       out.OrderStatus,
		FilledQty:    filled,
		AvgFillPrice: avg,
	}, nil
}

func (c *IBGatewayClient) OpenOrders(ctx context.Context) ([]OpenOrder, error) {
	var out gatewayLiveOrdersResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/iserver/account/orders")
	if err != nil {
		return nil, fmt.Errorf("open orders: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("open orders: gateway returned %d: %s", resp.StatusCode(), resp.String())
	}

	orders := make([]OpenOrder, 0, len(out.Orders))
	for _, o := range out.Orders {
		if IsTerminalStatus(o.Status) {
			continue
		}
		price := o.Price
		aux := o.StopPrice
		orders = append(orders, OpenOrder{
			Handle: OrderHandle{
				ID:       strconv.Itoa(o.OrderID),
				Ref:      o.OrderRef,
				Side:     o.Side,
				Type:     o.OrderType,
				Price:    price,
				Quantity: int(o.Quantity),
			},
			Status:   o.Status,
			AuxPrice: aux,
		})
	}
	return orders, nil
}

// -----------------------------
// ACCOUNT / MARKET DATA
// -----------------------------

func (c *IBGatewayClient) Positions(ctx context.Context) ([]PositionInfo, error) {
	var out []gatewayPosition
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/portfolio/%s/positions/0", c.accountID))
	if err != nil {
		return nil, fmt.Errorf("positions: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("positions: gateway returned %d: %s", resp.StatusCode(), resp.String())
	}

	positions := make([]PositionInfo, 0, len(out))
	for _, p := range out {
		positions = append(positions, PositionInfo{
			ConID:    p.ConID,
			Symbol:   p.ContractDesc,
			Quantity: p.Position,
			AvgCost:  p.AvgCost,
		})
	}
	return positions, nil
}

func (c *IBGatewayClient) MarketPrice(ctx context.Context, conID int) (float64, error) {
	if c.stream != nil {
		if price, ok := c.stream.LastPrice(conID); ok {
			return price, nil
		}
	}

	var out []gatewaySnapshotEntry
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"conids": strconv.Itoa(conID),
			"fields": "31",
		}).
		SetResult(&out).
		Get("/iserver/marketdata/snapshot")
	if err != nil {
		return 0, fmt.Errorf("market price: %w", err)
	}
	if resp.IsError() || len(out) == 0 {
		return 0, fmt.Errorf("market price: gateway returned %d: %s", resp.StatusCode(), resp.String())
	}

	price, err := strconv.ParseFloat(out[0].LastPrice, 64)
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("market price: invalid last price %q for conid %d", out[0].LastPrice, conID)
	}
	return price, nil
}

func (c *IBGatewayClient) HistoricalBars(ctx context.Context, conID int, end time.Time, duration, barSize string) ([]model.Bar, error) {
	params := map[string]string{
		"conid":      strconv.Itoa(conID),
		"period":     duration,
		"bar":        barSize,
		"outsideRth": "true",
	}
	if !end.IsZero() {
		params["startTime"] = end.UTC().Format("20060102-15:04:05")
	}

	var out gatewayHistoryResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&out).
		Get("/iserver/marketdata/history")
	if err != nil {
		return nil, fmt.Errorf("historical bars: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("historical bars: gateway returned %d: %s", resp.StatusCode(), resp.String())
	}

	bars := make([]model.Bar, 0, len(out.Data))
	for _, b := range out.Data {
		bars = append(bars, model.Bar{
			Timestamp: time.UnixMilli(b.T).UTC(),
			Open:      b.O,
			High:      b.H,
			Low:       b.L,
			Close:     b.C,
			Volume:    b.V,
		})
	}
	return bars, nil
}

// -----------------------------
// INSTRUMENT RESOLUTION
// -----------------------------

// ResolveInstrument maps a configured symbol to a qualified contract and its
// tick size. Resolution failure is fatal upstream: no orders are placed
// without a qualified contract.
func (c *IBGatewayClient) ResolveInstrument(ctx context.Context, symbol, secType, exchange, currency string) (*Instrument, error) {
	var out []gatewaySecdefEntry
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbol":  symbol,
			"secType": secType,
		}).
		SetResult(&out).
		Get("/iserver/secdef/search")
	if err != nil {
		return nil, fmt.Errorf("resolve instrument %s: %w", symbol, err)
	}
	if resp.IsError() || len(out) == 0 {
		return nil, fmt.Errorf("resolve instrument %s: no contract found (%d)", symbol, resp.StatusCode())
	}

	var conID int
	for _, entry := range out {
		for _, section := range entry.Sections {
			if section.SecType == secType {
				conID, _ = strconv.Atoi(entry.ConID)
				break
			}
		}
		if conID != 0 {
			break
		}
	}
	if conID == 0 {
		return nil, fmt.Errorf("resolve instrument %s: no %s section in search results", symbol, secType)
	}

	tick, err := c.fetchTickSize(ctx, conID)
	if err != nil {
		return nil, err
	}

	instrument := &Instrument{
		ConID:    conID,
		Symbol:   symbol,
		SecType:  secType,
		Exchange: exchange,
		Currency: currency,
		TickSize: tick,
	}

	logger.WithFields(map[string]interface{}{
		"symbol":    symbol,
		"conid":     conID,
		"sec_type":  secType,
		"tick_size": tick,
	}).Info("gateway - instrument resolved")

	if c.stream != nil {
		if err := c.stream.Subscribe(conID); err != nil {
			logger.WithError(err).Warn("gateway - stream subscription failed, snapshots only")
		}
	}

	return instrument, nil
}

func (c *IBGatewayClient) fetchTickSize(ctx context.Context, conID int) (float64, error) {
	var out gatewayContractRules
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&out).
		Get(fmt.Sprintf("/iserver/contract/%d/info-and-rules", conID))
	if err != nil {
		return 0, fmt.Errorf("fetch tick size for conid %d: %w", conID, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("fetch tick size for conid %d: gateway returned %d", conID, resp.StatusCode())
	}

	tick := out.Rules.Increment
	if tick <= 0 {
		logger.WithField("conid", conID).Warn("gateway - no valid price increment in contract rules, defaulting to 0.01")
		tick = 0.01
	}
	return tick, nil
}
