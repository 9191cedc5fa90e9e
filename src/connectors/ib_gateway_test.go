package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, mux *http.ServeMux) *IBGatewayClient {
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return NewIBGatewayClient("DU12345", server.URL, false)
}

func writeBody(t *testing.T, w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestSubmitOrder_ReturnsHandle(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/iserver/account/DU12345/orders", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var payload struct {
			Orders []map[string]interface{} `json:"orders"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Len(t, payload.Orders, 1)
		require.Equal(t, "LMT", payload.Orders[0]["orderType"])
		require.Equal(t, "BUY", payload.Orders[0]["side"])

		writeBody(t, w, []map[string]interface{}{
			{"order_id": "987654", "order_status": "Submitted"},
		})
	})

	client := newTestGateway(t, mux)
	handle, err := client.SubmitOrder(context.Background(), OrderRequest{
		Instrument: Instrument{ConID: 1234},
		Side:       SideBuy,
		Type:       OrderTypeLimit,
		Quantity:   2,
		LimitPrice: 2000.5,
		TIF:        TIFDay,
		Ref:        "Entry_abc123",
	})
	require.NoError(t, err)
	require.Equal(t, "987654", handle.ID)
	require.Equal(t, "Entry_abc123", handle.Ref)
	require.Equal(t, 2000.5, handle.Price)
}

func TestSubmitOrder_AnswersConfirmationPrompt(t *testing.T) {
	confirmed := false

	mux := http.NewServeMux()
	mux.HandleFunc("/iserver/account/DU12345/orders", func(w http.ResponseWriter, r *http.Request) {
		writeBody(t, w, []map[string]interface{}{
			{"id": "reply-1", "message": []string{"You are submitting an order outside regular trading hours"}},
		})
	})
	mux.HandleFunc("/iserver/reply/reply-1", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]bool
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.True(t, body["confirmed"])
		confirmed = true

		writeBody(t, w, []map[string]interface{}{
			{"order_id": "555", "order_status": "Submitted"},
		})
	})

	client := newTestGateway(t, mux)
	handle, err := client.SubmitOrder(context.Background(), OrderRequest{
		Instrument: Instrument{ConID: 1234},
		Side:       SideSell,
		Type:       OrderTypeStop,
		Quantity:   1,
		StopPrice:  1998.0,
		TIF:        TIFGTC,
		OutsideRTH: true,
	})
	require.NoError(t, err)
	require.True(t, confirmed)
	require.Equal(t, "555", handle.ID)
	require.Equal(t, 1998.0, handle.Price)
}

func TestPollStatus_ParsesNumericStrings(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/iserver/account/order/status/987654", func(w http.ResponseWriter, r *http.Request) {
		writeBody(t, w, map[string]interface{}{
			"order_id":      987654,
			"order_status":  "Filled",
			"cum_fill":      "2",
			"average_price": "2000.75",
		})
	})

	client := newTestGateway(t, mux)
	state, err := client.PollStatus(context.Background(), &OrderHandle{ID: "987654"})
	require.NoError(t, err)
	require.Equal(t, StatusFilled, state.Status)
	require.Equal(t, 2.0, state.FilledQty)
	require.Equal(t, 2000.75, state.AvgFillPrice)
}

func TestOpenOrders_FiltersTerminalStatuses(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/iserver/account/orders", func(w http.ResponseWriter, r *http.Request) {
		writeBody(t, w, map[string]interface{}{
			"orders": []map[string]interface{}{
				{"orderId": 1, "status": "Submitted", "side": "SELL", "orderType": "STP", "stop_price": 1998.0, "totalSize": 10.0, "order_ref": "Stop_x"},
				{"orderId": 2, "status": "Filled", "side": "BUY", "orderType": "LMT"},
				{"orderId": 3, "status": "Cancelled", "side": "BUY", "orderType": "LMT"},
			},
		})
	})

	client := newTestGateway(t, mux)
	orders, err := client.OpenOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 1)
	require.Equal(t, "1", orders[0].Handle.ID)
	require.Equal(t, 1998.0, orders[0].AuxPrice)
	require.Equal(t, 10, orders[0].Handle.Quantity)
}

func TestPositions_MapsGatewayFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/portfolio/DU12345/positions/0", func(w http.ResponseWriter, r *http.Request) {
		writeBody(t, w, []map[string]interface{}{
			{"conid": 1234, "contractDesc": "XAUUSD", "position": 10.0, "avgCost": 2000.04},
		})
	})

	client := newTestGateway(t, mux)
	positions, err := client.Positions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, 1234, positions[0].ConID)
	require.Equal(t, 10.0, positions[0].Quantity)
}

func TestMarketPrice_SnapshotField31(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/iserver/marketdata/snapshot", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "31", r.URL.Query().Get("fields"))
		writeBody(t, w, []map[string]interface{}{
			{"conid": 1234, "31": "2001.35"},
		})
	})

	client := newTestGateway(t, mux)
	price, err := client.MarketPrice(context.Background(), 1234)
	require.NoError(t, err)
	require.Equal(t, 2001.35, price)
}

func TestMarketPrice_RejectsUnusableQuote(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/iserver/marketdata/snapshot", func(w http.ResponseWriter, r *http.Request) {
		writeBody(t, w, []map[string]interface{}{
			{"conid": 1234, "31": "n/a"},
		})
	})

	client := newTestGateway(t, mux)
	_, err := client.MarketPrice(context.Background(), 1234)
	require.Error(t, err)
}

func TestHistoricalBars_ParsesEpochMillis(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/iserver/marketdata/history", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "1234", r.URL.Query().Get("conid"))
		require.Equal(t, "5min", r.URL.Query().Get("bar"))
		writeBody(t, w, map[string]interface{}{
			"data": []map[string]interface{}{
				{"t": 1750000200000, "o": 2000.0, "h": 2005.0, "l": 1999.0, "c": 2003.5, "v": 120.0},
			},
		})
	})

	client := newTestGateway(t, mux)
	bars, err := client.HistoricalBars(context.Background(), 1234, time.Now(), "1h", "5min")
	require.NoError(t, err)
	require.Len(t, bars, 1)
	require.Equal(t, time.UnixMilli(1750000200000).UTC(), bars[0].Timestamp)
	require.Equal(t, 2003.5, bars[0].Close)
}

func TestResolveInstrument_PicksMatchingSectionAndTick(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/iserver/secdef/search", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "XAUUSD", r.URL.Query().Get("symbol"))
		writeBody(t, w, []map[string]interface{}{
			{
				"conid":  "1234",
				"symbol": "XAUUSD",
				"sections": []map[string]string{
					{"secType": "CMDTY", "exchange": "SMART"},
				},
			},
		})
	})
	mux.HandleFunc("/iserver/contract/1234/info-and-rules", func(w http.ResponseWriter, r *http.Request) {
		writeBody(t, w, map[string]interface{}{
			"rules": map[string]interface{}{"increment": 0.01},
		})
	})

	client := newTestGateway(t, mux)
	instrument, err := client.ResolveInstrument(context.Background(), "XAUUSD", "CMDTY", "SMART", "USD")
	require.NoError(t, err)
	require.Equal(t, 1234, instrument.ConID)
	require.Equal(t, 0.01, instrument.TickSize)
}

func TestResolveInstrument_NoMatchingSection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/iserver/secdef/search", func(w http.ResponseWriter, r *http.Request) {
		writeBody(t, w, []map[string]interface{}{
			{
				"conid":  "1234",
				"symbol": "XAUUSD",
				"sections": []map[string]string{
					{"secType": "STK", "exchange": "SMART"},
				},
			},
		})
	})

	client := newTestGateway(t, mux)
	_, err := client.ResolveInstrument(context.Background(), "XAUUSD", "CMDTY", "SMART", "USD")
	require.Error(t, err)
}
