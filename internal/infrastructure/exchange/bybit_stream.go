package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vitos/ladder_bot/internal/domain"
	"go.uber.org/zap"
)

const (
	defaultPingInterval = 20 * time.Second
	authExpiry          = 10 * time.Second
	handshakeWait       = 10 * time.Second
	orderTopic          = "order"
	maxReconnectIn      = time.Minute
)

// BybitOrderStream follows the private "order" topic and forwards order
// updates to registered callbacks. It reconnects until its context ends.
// A session that receives nothing, not even a pong, for two ping intervals
// is considered dead.
type BybitOrderStream struct {
	apiKey       string
	apiSecret    string
	wsURL        string
	dialer       *websocket.Dialer
	pingInterval time.Duration
	logger       *zap.Logger

	mu        sync.Mutex
	callbacks []func(domain.FillEvent)
}

func NewBybitOrderStream(apiKey, apiSecret, wsURL string, logger *zap.Logger) *BybitOrderStream {
	if wsURL == "" {
		wsURL = BybitPrivateWSURL
	}
	return &BybitOrderStream{
		apiKey:       apiKey,
		apiSecret:    apiSecret,
		wsURL:        wsURL,
		dialer:       websocket.DefaultDialer,
		pingInterval: defaultPingInterval,
		logger:       logger,
	}
}

func (s *BybitOrderStream) OnFill(callback func(domain.FillEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, callback)
}

// Run keeps a session open until ctx is done.
func (s *BybitOrderStream) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = maxReconnectIn
	bo.MaxElapsedTime = 0

	for {
		started := time.Now()
		err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if time.Since(started) > maxReconnectIn {
			bo.Reset()
		}
		wait := bo.NextBackOff()
		s.logger.Warn("Order stream disconnected, reconnecting", zap.Duration("wait", wait), zap.Error(err))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

type wsRequest struct {
	ReqID string        `json:"req_id,omitempty"`
	Op    string        `json:"op"`
	Args  []interface{} `json:"args,omitempty"`
}

type wsMessage struct {
	Op      string          `json:"op"`
	Success *bool           `json:"success"`
	RetMsg  string          `json:"ret_msg"`
	Topic   string          `json:"topic"`
	Data    json.RawMessage `json:"data"`
}

func (s *BybitOrderStream) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.wsURL, err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	if err := s.authenticate(conn, write); err != nil {
		return err
	}
	if err := write(wsRequest{ReqID: uuid.NewString(), Op: "subscribe", Args: []interface{}{orderTopic}}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.logger.Info("Order stream connected", zap.String("url", s.wsURL))

	readWait := 2 * s.pingInterval
	extend := func() error { return conn.SetReadDeadline(time.Now().Add(readWait)) }
	_ = extend()
	conn.SetPongHandler(func(string) error { return extend() })

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				// unblock ReadMessage
				conn.Close()
				return
			case <-ticker.C:
				if err := write(wsRequest{ReqID: uuid.NewString(), Op: "ping"}); err != nil {
					s.logger.Warn("Order stream ping failed, dropping connection", zap.Error(err))
					conn.Close()
					return
				}
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		_ = extend()
		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.logger.Warn("Order stream: bad message", zap.Error(err))
			continue
		}
		if msg.Topic != orderTopic {
			if msg.Success != nil && !*msg.Success {
				s.logger.Warn("Order stream request failed", zap.String("op", msg.Op), zap.String("msg", msg.RetMsg))
			}
			continue
		}
		events, err := parseOrderUpdates(msg.Data)
		if err != nil {
			s.logger.Warn("Order stream: bad order update", zap.Error(err))
			continue
		}
		s.dispatch(events)
	}
}

func (s *BybitOrderStream) authenticate(conn *websocket.Conn, write func(interface{}) error) error {
	expires := time.Now().Add(authExpiry).UnixMilli()
	h := hmac.New(sha256.New, []byte(s.apiSecret))
	h.Write([]byte("GET/realtime" + strconv.FormatInt(expires, 10)))
	signature := hex.EncodeToString(h.Sum(nil))

	if err := write(wsRequest{ReqID: uuid.NewString(), Op: "auth", Args: []interface{}{s.apiKey, expires, signature}}); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(handshakeWait))
	defer conn.SetReadDeadline(time.Time{})
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("auth response: %w", err)
		}
		if msg.Op != "auth" {
			continue
		}
		if msg.Success == nil || !*msg.Success {
			return errors.New("auth rejected: " + msg.RetMsg)
		}
		return nil
	}
}

func (s *BybitOrderStream) dispatch(events []domain.FillEvent) {
	s.mu.Lock()
	callbacks := make([]func(domain.FillEvent), len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.mu.Unlock()

	for _, ev := range events {
		for _, cb := range callbacks {
			cb(ev)
		}
	}
}

type orderUpdate struct {
	Symbol      string `json:"symbol"`
	OrderLinkID string `json:"orderLinkId"`
	OrderStatus string `json:"orderStatus"`
	Side        string `json:"side"`
	AvgPrice    string `json:"avgPrice"`
	Price       string `json:"price"`
	CumExecQty  string `json:"cumExecQty"`
	Qty         string `json:"qty"`
	UpdatedTime string `json:"updatedTime"`
}

// parseOrderUpdates converts the data array of an order topic message.
func parseOrderUpdates(data json.RawMessage) ([]domain.FillEvent, error) {
	var updates []orderUpdate
	if err := json.Unmarshal(data, &updates); err != nil {
		return nil, err
	}
	events := make([]domain.FillEvent, 0, len(updates))
	for _, u := range updates {
		price, _ := strconv.ParseFloat(u.AvgPrice, 64)
		if price == 0 {
			price, _ = strconv.ParseFloat(u.Price, 64)
		}
		qty, _ := strconv.ParseFloat(u.CumExecQty, 64)
		if qty == 0 {
			qty, _ = strconv.ParseFloat(u.Qty, 64)
		}
		ev := domain.FillEvent{
			Symbol:      u.Symbol,
			OrderLinkID: u.OrderLinkID,
			Status:      u.OrderStatus,
			Side:        domain.OrderSide(u.Side),
			Price:       price,
			Qty:         qty,
		}
		if ms, err := strconv.ParseInt(u.UpdatedTime, 10, 64); err == nil {
			ev.Time = time.UnixMilli(ms).UTC()
		}
		events = append(events, ev)
	}
	return events, nil
}
