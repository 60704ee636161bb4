package svm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/pushchain/bridge-oracle/oracleClient/chains/common"
	"github.com/pushchain/bridge-oracle/oracleClient/metrics"
)

// WSConn is the part of *websocket.Conn the listener uses.
type WSConn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens a websocket connection.
type Dialer func(ctx context.Context, url string) (WSConn, error)

// EventHandler receives every decoded event, one at a time, in arrival order.
type EventHandler func(ctx context.Context, ev *DecodedEvent, txSignature string)

// DefaultDialer dials with gorilla/websocket.
func DefaultDialer(ctx context.Context, url string) (WSConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// ListenerConfig configures the program-log subscription.
type ListenerConfig struct {
	WSURL          string
	ProgramAddress string
	Commitment     string
	InitialBackoff time.Duration // default 1s
	MaxBackoff     time.Duration // default 30s
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcMessage struct {
	ID     *uint64         `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Method string `json:"method"`
	Params *struct {
		Subscription uint64 `json:"subscription"`
		Result       struct {
			Value struct {
				Signature string          `json:"signature"`
				Err       json.RawMessage `json:"err"`
				Logs      []string        `json:"logs"`
			} `json:"value"`
		} `json:"result"`
	} `json:"params"`
}

// EventListener keeps one logsSubscribe subscription to the bridge program
// open, reconnecting with exponential backoff, and feeds decoded events to
// a single-worker queue.
type EventListener struct {
	cfg     ListenerConfig
	dial    Dialer
	handler EventHandler
	queue   *TaskQueue
	logger  zerolog.Logger

	mu             sync.Mutex
	state          common.ConnectionState
	conn           WSConn
	subscriptionID *uint64
	nextID         uint64
	running        bool
	stopping       bool
	stopCh         chan struct{}
	doneCh         chan struct{}

	writeMu      sync.Mutex
	unknownSizes map[int]struct{}
}

// NewEventListener creates a listener. dial may be nil to use DefaultDialer.
func NewEventListener(cfg ListenerConfig, dial Dialer, handler EventHandler, logger zerolog.Logger) (*EventListener, error) {
	if cfg.WSURL == "" {
		return nil, fmt.Errorf("websocket url not configured")
	}
	if cfg.ProgramAddress == "" {
		return nil, fmt.Errorf("program address not configured")
	}
	if handler == nil {
		return nil, fmt.Errorf("event handler is required")
	}
	if cfg.Commitment == "" {
		cfg.Commitment = "confirmed"
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if dial == nil {
		dial = DefaultDialer
	}

	return &EventListener{
		cfg:          cfg,
		dial:         dial,
		handler:      handler,
		logger:       logger.With().Str("component", "svm_event_listener").Logger(),
		unknownSizes: make(map[int]struct{}),
	}, nil
}

// Start launches the connection loop.
func (el *EventListener) Start(ctx context.Context) error {
	el.mu.Lock()
	defer el.mu.Unlock()

	if el.running {
		return fmt.Errorf("event listener is already running")
	}
	el.running = true
	el.stopping = false
	el.stopCh = make(chan struct{})
	el.doneCh = make(chan struct{})
	el.queue = NewTaskQueue(el.logger)

	go el.run(ctx)

	el.logger.Info().Str("program", el.cfg.ProgramAddress).Msg("solana event listener started")
	return nil
}

// Stop unsubscribes, closes the socket, cancels any pending reconnect and
// stops the worker. Safe to call multiple times.
func (el *EventListener) Stop() {
	el.mu.Lock()
	if !el.running || el.stopping {
		doneCh := el.doneCh
		el.mu.Unlock()
		if doneCh != nil {
			<-doneCh
		}
		return
	}
	el.stopping = true
	close(el.stopCh)
	conn := el.conn
	subID := el.subscriptionID
	el.mu.Unlock()

	if conn != nil {
		if subID != nil {
			if err := el.send(conn, "logsUnsubscribe", []interface{}{*subID}); err != nil {
				el.logger.Debug().Err(err).Msg("failed to send unsubscribe")
			}
		}
		_ = conn.Close()
	}

	<-el.doneCh

	el.mu.Lock()
	el.running = false
	el.mu.Unlock()
	el.logger.Info().Msg("solana event listener stopped")
}

// State returns the current connection state.
func (el *EventListener) State() common.ConnectionState {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.state
}

func (el *EventListener) setState(s common.ConnectionState) {
	el.mu.Lock()
	el.state = s
	el.mu.Unlock()
	metrics.WSState.Set(float64(s))
}

func (el *EventListener) isStopping() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return el.stopping
}

func (el *EventListener) run(ctx context.Context) {
	defer func() {
		el.queue.Stop()
		close(el.doneCh)
	}()

	attempt := 0
	for {
		if el.isStopping() || ctx.Err() != nil {
			el.setState(common.StateDisconnected)
			return
		}

		el.setState(common.StateConnecting)
		conn, err := el.dial(ctx, el.cfg.WSURL)
		if err != nil {
			el.logger.Warn().Err(err).Str("url", el.cfg.WSURL).Msg("websocket dial failed")
		} else if el.session(ctx, conn) {
			attempt = 0
		}

		el.setState(common.StateDisconnected)
		if el.isStopping() || ctx.Err() != nil {
			return
		}

		delay := common.Backoff(el.cfg.InitialBackoff, el.cfg.MaxBackoff, 2.0, attempt)
		attempt++
		el.setState(common.StateReconnecting)
		metrics.WSReconnects.Inc()
		el.logger.Info().Dur("retry_in", delay).Int("attempt", attempt).Msg("scheduling websocket reconnect")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-el.stopCh:
			timer.Stop()
			el.setState(common.StateDisconnected)
			return
		case <-ctx.Done():
			timer.Stop()
			el.setState(common.StateDisconnected)
			return
		}
	}
}

// session subscribes on conn and reads until the connection drops. It
// reports whether a subscription was confirmed.
func (el *EventListener) session(ctx context.Context, conn WSConn) bool {
	el.mu.Lock()
	if el.stopping {
		el.mu.Unlock()
		_ = conn.Close()
		return false
	}
	el.conn = conn
	el.mu.Unlock()

	sessionDone := make(chan struct{})
	defer func() {
		close(sessionDone)
		el.mu.Lock()
		el.conn = nil
		el.subscriptionID = nil
		el.mu.Unlock()
		_ = conn.Close()
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-sessionDone:
		}
	}()

	subscribeID, err := el.subscribe(conn)
	if err != nil {
		el.logger.Warn().Err(err).Msg("failed to send logsSubscribe")
		return false
	}

	subscribed := false
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !el.isStopping() {
				el.logger.Warn().Err(err).Msg("websocket closed")
			}
			return subscribed
		}

		var msg rpcMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			el.logger.Debug().Err(err).Msg("ignoring malformed websocket message")
			continue
		}

		switch {
		case msg.ID != nil && *msg.ID == subscribeID:
			if msg.Error != nil {
				el.logger.Error().Int("code", msg.Error.Code).Str("message", msg.Error.Message).Msg("logsSubscribe rejected")
				return subscribed
			}
			var subID uint64
			if err := json.Unmarshal(msg.Result, &subID); err != nil {
				el.logger.Error().Err(err).Msg("unexpected logsSubscribe result")
				return subscribed
			}
			el.mu.Lock()
			el.subscriptionID = &subID
			el.mu.Unlock()
			el.setState(common.StateSubscribed)
			subscribed = true
			el.logger.Info().Uint64("subscription", subID).Msg("subscribed to program logs")
		case msg.Method == "logsNotification" && msg.Params != nil:
			el.handleNotification(ctx, msg)
		}
	}
}

func (el *EventListener) subscribe(conn WSConn) (uint64, error) {
	params := []interface{}{
		map[string]interface{}{"mentions": []string{el.cfg.ProgramAddress}},
		map[string]interface{}{"commitment": el.cfg.Commitment},
	}
	el.mu.Lock()
	el.nextID++
	id := el.nextID
	el.mu.Unlock()

	el.writeMu.Lock()
	defer el.writeMu.Unlock()
	return id, conn.WriteJSON(rpcRequest{JSONRPC: "2.0", ID: id, Method: "logsSubscribe", Params: params})
}

func (el *EventListener) send(conn WSConn, method string, params []interface{}) error {
	el.mu.Lock()
	el.nextID++
	id := el.nextID
	el.mu.Unlock()

	el.writeMu.Lock()
	defer el.writeMu.Unlock()
	return conn.WriteJSON(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
}

func (el *EventListener) handleNotification(ctx context.Context, msg rpcMessage) {
	value := msg.Params.Result.Value
	if len(value.Err) > 0 && string(value.Err) != "null" {
		return
	}

	for _, payload := range ExtractProgramData(value.Logs) {
		ev := DecodeEvent(payload)
		if ev == nil {
			if !IsKnownEventSize(len(payload)) && el.noteUnknownSize(len(payload)) {
				el.logger.Warn().Int("size", len(payload)).Str("signature", value.Signature).Msg("unknown program data size")
			}
			continue
		}

		signature := value.Signature
		el.queue.Push(func() {
			el.handler(ctx, ev, signature)
		})
	}
}

// noteUnknownSize returns true the first time a size is seen.
func (el *EventListener) noteUnknownSize(size int) bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	if _, seen := el.unknownSizes[size]; seen {
		return false
	}
	el.unknownSizes[size] = struct{}{}
	metrics.DecodeUnknownSizes.Inc()
	return true
}
