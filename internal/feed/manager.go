package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/calebwren/marketstream/internal/event"
	"github.com/calebwren/marketstream/internal/metrics"
	"github.com/calebwren/marketstream/internal/model"
	"github.com/calebwren/marketstream/internal/pricecache"
	"github.com/calebwren/marketstream/internal/subscription"
)

// Manager owns the socket lifecycle: it dials, routes inbound frames,
// schedules reconnects with exponential backoff, and replays the
// subscription set after every successful connect.
//
// State machine: Idle → Connecting → Connected → Disconnected →
// ReconnectScheduled → Connecting → …; Disconnect is the only path back
// to Idle and the only path that clears subscriptions and cached prices.
type Manager struct {
	cfg        ManagerConfig
	logger     *slog.Logger
	recorder   metrics.Recorder
	dispatcher *event.Dispatcher
	subs       *subscription.Registry
	cache      *pricecache.Cache

	mu             sync.Mutex
	state          State
	client         *Client
	attempts       int
	reconnectTimer *time.Timer
	hb             *heartbeatMonitor

	// gen identifies the current connect cycle. Callbacks from a previous
	// cycle (late transport close, a dial that lost a race with Disconnect)
	// compare their generation and become inert.
	gen uint64
}

// NewManager creates a connection manager. Nil collaborators get defaults:
// a fresh dispatcher/registry/cache, a noop recorder, slog.Default().
func NewManager(
	cfg ManagerConfig,
	dispatcher *event.Dispatcher,
	subs *subscription.Registry,
	cache *pricecache.Cache,
	recorder metrics.Recorder,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.Noop{}
	}
	if dispatcher == nil {
		dispatcher = event.NewDispatcher(logger)
	}
	if subs == nil {
		subs = subscription.NewRegistry()
	}
	if cache == nil {
		cache = pricecache.New(pricecache.DefaultConfig(), recorder)
	}

	return &Manager{
		cfg:        cfg,
		logger:     logger,
		recorder:   recorder,
		dispatcher: dispatcher,
		subs:       subs,
		cache:      cache,
		state:      StateIdle,
	}
}

// On registers an event handler; see event.Dispatcher.
func (m *Manager) On(kind event.Kind, fn event.Handler) event.Registration {
	return m.dispatcher.On(kind, fn)
}

// Off removes a previously registered handler.
func (m *Manager) Off(reg event.Registration) {
	m.dispatcher.Off(reg)
}

// Connect attempts to open the transport. A no-op when already connecting
// or connected. A failed dial is never returned to the caller: it is
// surfaced as an error event and a reconnect is scheduled.
func (m *Manager) Connect() {
	m.connect(0, false)
}

// connect drives one dial attempt. When fromTimer is set the attempt is
// abandoned unless timerGen still identifies the live cycle, so a timer
// callback that lost a race with Disconnect stays inert instead of
// starting a fresh cycle of its own.
func (m *Manager) connect(timerGen uint64, fromTimer bool) {
	m.mu.Lock()
	if fromTimer && timerGen != m.gen {
		m.mu.Unlock()
		return
	}
	switch m.state {
	case StateConnecting, StateConnected:
		m.mu.Unlock()
		return
	}
	// A manual Connect supersedes any armed reconnect timer.
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.setStateLocked(StateConnecting)
	m.gen++
	gen := m.gen

	client := NewClient(ClientConfig{
		URL:              m.cfg.URL,
		HandshakeTimeout: m.cfg.HandshakeTimeout,
		WriteTimeout:     m.cfg.WriteTimeout,
		BufferSize:       m.cfg.MessageBufferSize,
	}, m.logger)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandshakeTimeout)
	err := client.Dial(ctx)
	cancel()

	m.mu.Lock()
	if gen != m.gen {
		// Disconnect (or another Connect) raced the dial.
		m.mu.Unlock()
		client.Close()
		return
	}

	if err != nil {
		m.logger.Warn("connect failed", "url", m.cfg.URL, "error", err)
		m.setStateLocked(StateDisconnected)
		m.scheduleReconnectLocked()
		m.mu.Unlock()

		m.dispatcher.Emit(event.Event{Kind: event.KindError, Data: err})
		return
	}

	m.client = client
	m.attempts = 0
	m.setStateLocked(StateConnected)

	m.hb = newHeartbeatMonitor(m.cfg.HeartbeatInterval, func() { m.sendPing(gen) })
	m.hb.Start()

	ids := m.subs.Snapshot()
	m.mu.Unlock()

	go m.pump(client, gen)

	// Replay: exactly one subscribe frame per tracked market.
	for _, id := range ids {
		m.sendFrame(subscribeFrame{Type: "subscribe", Channel: marketChannel, MarketID: id})
	}

	m.logger.Info("connected", "url", m.cfg.URL, "subscriptions", len(ids))
	m.dispatcher.Emit(event.Event{Kind: event.KindConnected})
}

// Disconnect tears the client down to Idle: cancels any pending reconnect,
// stops the heartbeat, closes the transport, and clears the subscription
// set and price cache. Pending reconnects are invalidated before return.
// A disconnected event is emitted only when a live connection was closed.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.gen++

	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.stopHeartbeatLocked()

	client := m.client
	m.client = nil

	wasConnected := m.state == StateConnected
	m.setStateLocked(StateIdle)
	m.attempts = 0
	m.mu.Unlock()

	if client != nil {
		client.Close()
	}

	m.subs.Clear()
	m.cache.Clear()

	// The disconnected event tracks actual transport loss: tearing down
	// from Connecting or ReconnectScheduled had no connection to lose.
	if wasConnected {
		m.logger.Info("disconnected by user")
		m.dispatcher.Emit(event.Event{Kind: event.KindDisconnected})
	}
}

// Subscribe adds a market to the subscription set. Idempotent: repeated
// calls for the same ID record intent once and send at most one frame.
// While disconnected the intent is kept for replay.
func (m *Manager) Subscribe(id string) {
	if !m.subs.Add(id) {
		return
	}
	m.sendFrame(subscribeFrame{Type: "subscribe", Channel: marketChannel, MarketID: id})
}

// Unsubscribe removes a market from the subscription set. No wire traffic
// occurs while disconnected.
func (m *Manager) Unsubscribe(id string) {
	if !m.subs.Remove(id) {
		return
	}
	m.sendFrame(subscribeFrame{Type: "unsubscribe", Channel: marketChannel, MarketID: id})
}

// LastPrice returns the cached price for a market, or ok=false.
func (m *Manager) LastPrice(id string) (model.PriceUpdate, bool) {
	return m.cache.Last(id)
}

// IsStale reports whether the cached price for a market is older than
// maxAge (0 means the configured default). Unknown markets are stale.
func (m *Manager) IsStale(id string, maxAge time.Duration) bool {
	return m.cache.IsStale(id, maxAge)
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stats returns a snapshot for introspection.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	state := m.state
	attempts := m.attempts
	m.mu.Unlock()

	return ManagerStats{
		State:             state,
		ReconnectAttempts: attempts,
		Subscriptions:     m.subs.Len(),
		CachedPrices:      m.cache.Len(),
	}
}

// pump delivers inbound frames until the transport closes, then hands off
// to the close handler. Frames are processed in arrival order, so cache
// mutation and signal emission per market are strictly ordered.
func (m *Manager) pump(client *Client, gen uint64) {
	for {
		select {
		case msg := <-client.Messages():
			if !m.cycleCurrent(gen) {
				return
			}
			m.handleFrame(msg)

		case <-client.ReadDone():
			// Drain anything buffered before reacting to the close.
			for {
				select {
				case msg := <-client.Messages():
					if !m.cycleCurrent(gen) {
						return
					}
					m.handleFrame(msg)
				default:
					m.handleTransportClosed(gen)
					return
				}
			}
		}
	}
}

// cycleCurrent reports whether gen still identifies the live connect
// cycle. Buffered frames from a superseded cycle must not reach the
// cache or the dispatcher after Disconnect has torn state down.
func (m *Manager) cycleCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

// handleFrame parses and routes one inbound frame. A parse failure emits a
// diagnostic event and leaves the connection open.
func (m *Manager) handleFrame(msg InboundMessage) {
	var env envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		m.logger.Warn("failed to parse frame", "error", err)
		m.recorder.RecordSample(metrics.SampleParseErrors, 1)
		m.dispatcher.Emit(event.Event{
			Kind: event.KindParseError,
			Data: ParseError{Err: err, Data: msg.Data},
			At:   msg.ReceivedAt,
		})
		return
	}

	switch env.Type {
	case msgPriceUpdate:
		var update model.PriceUpdate
		if err := json.Unmarshal(msg.Data, &update); err != nil {
			m.emitParseError(err, msg)
			return
		}
		m.recorder.RecordSample(metrics.SampleMessages+".price_update", 1)

		res := m.cache.Apply(update)
		m.dispatcher.Emit(event.Event{Kind: event.KindPrice, Data: update, At: msg.ReceivedAt})
		if res.Stale != nil {
			m.dispatcher.Emit(event.Event{Kind: event.KindStalePrice, Data: *res.Stale, At: msg.ReceivedAt})
		}
		if res.Move != nil {
			m.dispatcher.Emit(event.Event{Kind: event.KindSignificantMove, Data: *res.Move, At: msg.ReceivedAt})
		}

	case msgOrderbookUpdate:
		var book model.OrderbookUpdate
		if err := json.Unmarshal(msg.Data, &book); err != nil {
			m.emitParseError(err, msg)
			return
		}
		m.recorder.RecordSample(metrics.SampleMessages+".orderbook_update", 1)
		m.dispatcher.Emit(event.Event{Kind: event.KindOrderbook, Data: book, At: msg.ReceivedAt})

	case msgTrade:
		var trade model.Trade
		if err := json.Unmarshal(msg.Data, &trade); err != nil {
			m.emitParseError(err, msg)
			return
		}
		m.recorder.RecordSample(metrics.SampleMessages+".trade", 1)
		m.dispatcher.Emit(event.Event{Kind: event.KindTrade, Data: trade, At: msg.ReceivedAt})

	case msgHeartbeat:
		m.recorder.RecordSample(metrics.SampleMessages+".heartbeat", 1)
		m.mu.Lock()
		hb := m.hb
		m.mu.Unlock()
		if hb != nil {
			hb.Refresh()
		}

	default:
		// Forward-compatibility: unrecognized kinds are warned about and
		// otherwise ignored.
		m.logger.Warn("unknown message type", "type", env.Type)
		m.recorder.RecordSample(metrics.SampleUnknownMessages, 1)
		m.dispatcher.Emit(event.Event{
			Kind: event.KindUnknownMessage,
			Data: UnknownMessage{Type: env.Type, Data: msg.Data},
			At:   msg.ReceivedAt,
		})
	}
}

func (m *Manager) emitParseError(err error, msg InboundMessage) {
	m.logger.Warn("failed to parse frame", "error", err)
	m.recorder.RecordSample(metrics.SampleParseErrors, 1)
	m.dispatcher.Emit(event.Event{
		Kind: event.KindParseError,
		Data: ParseError{Err: err, Data: msg.Data},
		At:   msg.ReceivedAt,
	})
}

// handleTransportClosed reacts to the transport closing underneath us.
// Reconnection is driven exclusively from here; send-level errors only
// surface as error events.
func (m *Manager) handleTransportClosed(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		// A Disconnect or newer connect already superseded this cycle.
		m.mu.Unlock()
		return
	}

	m.stopHeartbeatLocked()
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	m.logger.Warn("connection closed", "url", m.cfg.URL)
	m.dispatcher.Emit(event.Event{Kind: event.KindDisconnected})

	m.mu.Lock()
	if gen == m.gen && m.state == StateDisconnected {
		m.scheduleReconnectLocked()
	}
	m.mu.Unlock()
}

// scheduleReconnectLocked arms the reconnect timer; at most one timer is
// outstanding. Callers hold m.mu.
func (m *Manager) scheduleReconnectLocked() {
	if m.reconnectTimer != nil {
		return
	}

	delay := backoffDelay(m.cfg.ReconnectBaseDelay, m.cfg.ReconnectMaxDelay, m.attempts)
	m.attempts++
	m.recorder.RecordSample(metrics.SampleReconnectAttempts, 1)
	m.setStateLocked(StateReconnectScheduled)

	m.logger.Info("reconnect scheduled",
		"delay", delay,
		"attempt", m.attempts,
	)

	armedGen := m.gen
	m.reconnectTimer = time.AfterFunc(delay, func() {
		m.mu.Lock()
		m.reconnectTimer = nil
		if armedGen != m.gen || m.state != StateReconnectScheduled {
			// Disconnect won the race; stay put.
			m.mu.Unlock()
			return
		}
		m.setStateLocked(StateDisconnected)
		m.mu.Unlock()

		m.connect(armedGen, true)
	})
}

// backoffDelay computes min(base * 2^attempts, max).
func backoffDelay(base, max time.Duration, attempts int) time.Duration {
	if base <= 0 {
		return max
	}
	if attempts > 32 {
		return max
	}
	delay := base << uint(attempts)
	if delay <= 0 || delay > max {
		return max
	}
	return delay
}

func (m *Manager) stopHeartbeatLocked() {
	if m.hb != nil {
		m.hb.Stop()
		m.hb = nil
	}
}

func (m *Manager) setStateLocked(s State) {
	m.state = s
	m.recorder.RecordSample(metrics.SampleConnectionState, float64(s))
}

// sendPing emits a liveness ping for the given connect cycle.
func (m *Manager) sendPing(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateConnected {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.sendFrame(pingFrame{Type: "ping"})
}

// sendFrame marshals and sends a frame when connected; otherwise the call
// is a silent no-op (intent lives in the registry for replay). Send-level
// failures are surfaced as error events, never as reconnect triggers.
func (m *Manager) sendFrame(frame any) {
	m.mu.Lock()
	client := m.client
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || client == nil {
		return
	}

	data, err := json.Marshal(frame)
	if err != nil {
		m.logger.Error("failed to marshal frame", "error", err)
		return
	}

	if err := client.Send(data); err != nil {
		m.logger.Warn("send failed", "error", err)
		m.dispatcher.Emit(event.Event{Kind: event.KindError, Data: err})
	}
}
