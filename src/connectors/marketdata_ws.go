package connectors

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"
)

// MarketDataStream keeps the last traded price per conid from the gateway's
// websocket feed. It is an optimization for the monitor's periodic status
// refresh; callers fall back to REST snapshots when no tick has arrived yet.
type MarketDataStream struct {
	url    string
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
	last map[int]float64
}

type streamTick struct {
	Topic     string `json:"topic"` // e.g. "smd+265598"
	ConID     int    `json:"conid"`
	LastPrice string `json:"31"`
}

func NewMarketDataStream(url string, insecureTLS bool) *MarketDataStream {
	dialer := &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	if insecureTLS {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &MarketDataStream{
		url:    url,
		dialer: dialer,
		last:   make(map[int]float64),
	}
}

// Connect dials the gateway and starts the read pump. The pump stops when ctx
// is cancelled or the connection drops; the stream does not reconnect, the
// REST fallback covers the gap.
func (s *MarketDataStream) Connect(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("market data stream dial: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	go s.readPump(ctx)

	logger.WithField("url", s.url).Info("gateway - market data stream connected")
	return nil
}

// Subscribe requests last-price ticks for one conid.
func (s *MarketDataStream) Subscribe(conID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return fmt.Errorf("market data stream not connected")
	}

	msg := fmt.Sprintf(`smd+%d+{"fields":["31"]}`, conID)
	if err := s.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		return fmt.Errorf("market data stream subscribe conid %d: %w", conID, err)
	}
	return nil
}

// LastPrice returns the most recent tick for conID, if any has arrived.
func (s *MarketDataStream) LastPrice(conID int) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	price, ok := s.last[conID]
	return price, ok
}

func (s *MarketDataStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
}

func (s *MarketDataStream) readPump(ctx context.Context) {
	defer s.Close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()
		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			logger.WithError(err).Warn("gateway - market data stream closed")
			return
		}
		s.handleFrame(raw)
	}
}

func (s *MarketDataStream) handleFrame(raw []byte) {
	var tick streamTick
	if err := json.Unmarshal(raw, &tick); err != nil {
		return
	}
	if tick.LastPrice == "" {
		return
	}

	conID := tick.ConID
	if conID == 0 && strings.HasPrefix(tick.Topic, "smd+") {
		conID, _ = strconv.Atoi(strings.TrimPrefix(tick.Topic, "smd+"))
	}
	if conID == 0 {
		return
	}

	// The feed prefixes held/close marks with letters (e.g. "C2001.5").
	price, err := strconv.ParseFloat(strings.TrimLeft(tick.LastPrice, "CHch"), 64)
	if err != nil || price <= 0 {
		return
	}

	s.mu.Lock()
	s.last[conID] = price
	s.mu.Unlock()
}
