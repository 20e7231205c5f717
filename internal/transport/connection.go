package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"stridelink/pkg/types"
)

// Options configures the channel manager.
type Options struct {
	BaseURL           string
	HandshakeTimeout  time.Duration
	WriteTimeout      time.Duration
	ReconnectAttempts int
	ReconnectDelay    time.Duration
}

// Manager owns the one live channel connection for the whole client.
// It is an explicit handle passed by reference to the components that
// need it; there is no package-level connection state.
//
// State machine: disconnected -> connecting -> connected, and
// connected -> reconnecting -> connected on transient failure. After
// the bounded reconnect budget is spent the manager goes back to
// disconnected and stays there until EnsureConnected is called again.
type Manager struct {
	opts Options

	// connectMu serializes dial attempts so concurrent EnsureConnected
	// callers can never create duplicate connections.
	connectMu sync.Mutex

	mu        sync.Mutex
	conn      *websocket.Conn
	writeCh   chan []byte
	done      chan struct{}
	gen       uint64 // bumped on every install/teardown to invalidate stale loops
	state     types.ConnectionState
	subs      map[string]map[uint64]Handler
	stateSubs map[uint64]StateHandler
	nextSubID uint64
}

// NewManager creates a channel manager. No connection is dialed until
// EnsureConnected.
func NewManager(opts Options) *Manager {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.ReconnectAttempts <= 0 {
		opts.ReconnectAttempts = 5
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = time.Second
	}

	return &Manager{
		opts:      opts,
		state:     types.StateDisconnected,
		subs:      make(map[string]map[uint64]Handler),
		stateSubs: make(map[uint64]StateHandler),
	}
}

// State returns the current connection state.
func (m *Manager) State() types.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// EnsureConnected returns once a live connection exists. If one is
// already live it returns immediately; concurrent callers serialize on
// the connect lock, so at most one dial happens.
func (m *Manager) EnsureConnected(ctx context.Context) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	if m.state == types.StateConnected && m.conn != nil {
		m.mu.Unlock()
		return nil
	}
	if m.opts.BaseURL == "" {
		m.mu.Unlock()
		return ErrMissingBaseURL
	}
	m.mu.Unlock()

	m.transition(types.StateConnecting)

	conn, err := m.dial(ctx)
	if err != nil {
		m.transition(types.StateDisconnected)
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	m.mu.Lock()
	m.installLocked(conn)
	m.mu.Unlock()

	m.transition(types.StateConnected)
	return nil
}

// Teardown closes the connection and clears it so a subsequent
// EnsureConnected dials afresh. Safe to call when already disconnected;
// also cancels an in-flight reconnect.
func (m *Manager) Teardown() error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()

	m.mu.Lock()
	if m.conn == nil && m.state == types.StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.dropLocked()
	m.mu.Unlock()

	m.transition(types.StateDisconnected)
	return nil
}

// Emit sends one event frame. Outgoing events are never queued while
// disconnected: callers must treat an error as "not delivered".
func (m *Manager) Emit(event string, payload interface{}) error {
	frame := Frame{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		frame.Data = data
	}

	raw, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.state != types.StateConnected || m.writeCh == nil {
		m.mu.Unlock()
		return ErrNotConnected
	}
	writeCh := m.writeCh
	done := m.done
	m.mu.Unlock()

	select {
	case writeCh <- raw:
		return nil
	case <-done:
		return ErrNotConnected
	default:
		return ErrWriteBufferFull
	}
}

// Subscribe registers a handler for one inbound event kind and returns
// a handle whose Close releases it. Handles survive reconnects; they
// are only released by Close.
func (m *Manager) Subscribe(event string, fn Handler) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSubID++
	id := m.nextSubID
	if m.subs[event] == nil {
		m.subs[event] = make(map[uint64]Handler)
	}
	m.subs[event][id] = fn

	return &Subscription{m: m, event: event, id: id}
}

// OnStateChange registers a state observer and returns its handle.
// Observers run off the manager lock and may Emit, but must not call
// EnsureConnected or Teardown.
func (m *Manager) OnStateChange(fn StateHandler) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSubID++
	id := m.nextSubID
	m.stateSubs[id] = fn

	return &Subscription{m: m, id: id, isState: true}
}

// dial performs one websocket handshake.
func (m *Manager) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: m.opts.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, m.opts.BaseURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// installLocked adopts a freshly dialed connection and starts its read
// and write loops. Caller holds mu.
func (m *Manager) installLocked(conn *websocket.Conn) {
	m.gen++
	gen := m.gen
	m.conn = conn
	m.writeCh = make(chan []byte, 100)
	m.done = make(chan struct{})

	go m.writeLoop(conn, m.writeCh, m.done)
	go m.readLoop(conn, gen)
}

// dropLocked invalidates the current connection without changing state.
// Caller holds mu.
func (m *Manager) dropLocked() {
	m.gen++
	if m.done != nil {
		close(m.done)
		m.done = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.writeCh = nil
}

// writeLoop is the single writer for one connection. Serializing writes
// through a channel keeps gorilla/websocket's one-writer contract.
func (m *Manager) writeLoop(conn *websocket.Conn, writeCh chan []byte, done chan struct{}) {
	for {
		select {
		case data := <-writeCh:
			if err := conn.SetWriteDeadline(time.Now().Add(m.opts.WriteTimeout)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// readLoop reads frames until the connection drops, then hands off to
// the reconnect path. gen guards against acting on a stale connection
// after teardown or replacement.
func (m *Manager) readLoop(conn *websocket.Conn, gen uint64) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleDrop(gen)
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Printf("channel: dropping malformed frame: %v", err)
			continue
		}

		m.dispatch(frame)
	}
}

// dispatch invokes the handlers registered for one inbound event.
// Handlers run synchronously on the read loop, so within one connection
// events are delivered in transport order.
func (m *Manager) dispatch(frame Frame) {
	m.mu.Lock()
	handlers := make([]Handler, 0, len(m.subs[frame.Event]))
	for _, fn := range m.subs[frame.Event] {
		handlers = append(handlers, fn)
	}
	m.mu.Unlock()

	for _, fn := range handlers {
		fn(frame.Data)
	}
}

// handleDrop runs the bounded reconnect policy after a transport-level
// disconnect. After the attempt budget is spent the manager surfaces
// "offline" (disconnected) instead of retrying silently forever.
func (m *Manager) handleDrop(gen uint64) {
	m.mu.Lock()
	if gen != m.gen {
		// A teardown or replacement already superseded this connection.
		m.mu.Unlock()
		return
	}
	m.dropLocked()
	m.state = types.StateReconnecting
	handlers := make([]StateHandler, 0, len(m.stateSubs))
	for _, fn := range m.stateSubs {
		handlers = append(handlers, fn)
	}
	m.mu.Unlock()

	for _, fn := range handlers {
		fn(types.StateReconnecting)
	}
	log.Printf("channel: connection dropped, reconnecting (max %d attempts)", m.opts.ReconnectAttempts)

	for attempt := 1; attempt <= m.opts.ReconnectAttempts; attempt++ {
		time.Sleep(m.opts.ReconnectDelay)

		if m.State() != types.StateReconnecting {
			// Teardown or a competing EnsureConnected took over.
			return
		}

		m.connectMu.Lock()
		if m.State() != types.StateReconnecting {
			m.connectMu.Unlock()
			return
		}

		conn, err := m.dial(context.Background())
		if err == nil {
			m.mu.Lock()
			m.installLocked(conn)
			m.mu.Unlock()
			m.connectMu.Unlock()

			m.transition(types.StateConnected)
			log.Printf("channel: reconnected on attempt %d", attempt)
			return
		}
		m.connectMu.Unlock()

		log.Printf("channel: reconnect attempt %d/%d failed: %v", attempt, m.opts.ReconnectAttempts, err)
	}

	if m.State() == types.StateReconnecting {
		m.transition(types.StateDisconnected)
		log.Printf("channel: reconnect budget spent, going offline")
	}
}

// transition moves the state machine and notifies observers outside the
// manager lock.
func (m *Manager) transition(state types.ConnectionState) {
	m.mu.Lock()
	if m.state == state {
		m.mu.Unlock()
		return
	}
	m.state = state

	handlers := make([]StateHandler, 0, len(m.stateSubs))
	for _, fn := range m.stateSubs {
		handlers = append(handlers, fn)
	}
	m.mu.Unlock()

	for _, fn := range handlers {
		fn(state)
	}
}

// Subscription is an explicit registration handle. Closing it exactly
// once removes the handler; further Closes are no-ops.
type Subscription struct {
	m       *Manager
	event   string
	id      uint64
	isState bool
	once    sync.Once
}

// Close releases the registration.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.m.mu.Lock()
		defer s.m.mu.Unlock()

		if s.isState {
			delete(s.m.stateSubs, s.id)
			return
		}
		if handlers, ok := s.m.subs[s.event]; ok {
			delete(handlers, s.id)
			if len(handlers) == 0 {
				delete(s.m.subs, s.event)
			}
		}
	})
}
