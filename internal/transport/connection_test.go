package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"stridelink/pkg/types"
)

// testChannelServer is a minimal messaging backend: it upgrades
// connections, records inbound frames and can push frames to every
// connected client.
type testChannelServer struct {
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu       sync.Mutex
	conns    []*websocket.Conn
	received []Frame
	accepts  int32
}

func newTestChannelServer(t *testing.T) *testChannelServer {
	t.Helper()

	s := &testChannelServer{}
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		atomic.AddInt32(&s.accepts, 1)

		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var frame Frame
			if err := json.Unmarshal(data, &frame); err != nil {
				continue
			}
			s.mu.Lock()
			s.received = append(s.received, frame)
			s.mu.Unlock()
		}
	}))
	t.Cleanup(s.server.Close)

	return s
}

func (s *testChannelServer) url() string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http")
}

func (s *testChannelServer) acceptCount() int {
	return int(atomic.LoadInt32(&s.accepts))
}

func (s *testChannelServer) push(t *testing.T, frame Frame) {
	t.Helper()

	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("failed to marshal frame: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		_ = conn.WriteMessage(websocket.TextMessage, data)
	}
}

func (s *testChannelServer) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, conn := range s.conns {
		_ = conn.Close()
	}
	s.conns = nil
}

func (s *testChannelServer) receivedEvents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]string, 0, len(s.received))
	for _, frame := range s.received {
		events = append(events, frame.Event)
	}
	return events
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestEnsureConnected_Idempotent(t *testing.T) {
	server := newTestChannelServer(t)
	manager := NewManager(Options{BaseURL: server.url()})
	defer manager.Teardown()

	ctx := context.Background()
	if err := manager.EnsureConnected(ctx); err != nil {
		t.Fatalf("first EnsureConnected failed: %v", err)
	}
	if err := manager.EnsureConnected(ctx); err != nil {
		t.Fatalf("second EnsureConnected failed: %v", err)
	}

	if manager.State() != types.StateConnected {
		t.Errorf("expected connected state, got %s", manager.State())
	}
	if got := server.acceptCount(); got != 1 {
		t.Errorf("expected exactly 1 connection, got %d", got)
	}
}

func TestEnsureConnected_ConcurrentCallersShareOneConnection(t *testing.T) {
	server := newTestChannelServer(t)
	manager := NewManager(Options{BaseURL: server.url()})
	defer manager.Teardown()

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = manager.EnsureConnected(context.Background())
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d failed: %v", i, err)
		}
	}
	if got := server.acceptCount(); got != 1 {
		t.Errorf("expected exactly 1 connection for concurrent callers, got %d", got)
	}
}

func TestEnsureConnected_MissingBaseURL(t *testing.T) {
	manager := NewManager(Options{})

	err := manager.EnsureConnected(context.Background())
	if err != ErrMissingBaseURL {
		t.Errorf("expected ErrMissingBaseURL, got: %v", err)
	}
	if manager.State() != types.StateDisconnected {
		t.Errorf("expected disconnected state, got %s", manager.State())
	}
}

func TestEmit_WhileDisconnectedFailsFast(t *testing.T) {
	server := newTestChannelServer(t)
	manager := NewManager(Options{BaseURL: server.url()})

	if err := manager.Emit(EventJoinSession, JoinPayload{SessionID: "s1"}); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected before connect, got: %v", err)
	}

	if err := manager.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected failed: %v", err)
	}
	if err := manager.Teardown(); err != nil {
		t.Fatalf("Teardown failed: %v", err)
	}

	if err := manager.Emit(EventJoinSession, JoinPayload{SessionID: "s1"}); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected after teardown, got: %v", err)
	}
}

func TestEmit_DeliversFrame(t *testing.T) {
	server := newTestChannelServer(t)
	manager := NewManager(Options{BaseURL: server.url()})
	defer manager.Teardown()

	if err := manager.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected failed: %v", err)
	}

	if err := manager.Emit(EventJoinSession, JoinPayload{SessionID: "s1"}); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	ok := waitFor(t, 2*time.Second, func() bool {
		events := server.receivedEvents()
		return len(events) == 1 && events[0] == EventJoinSession
	})
	if !ok {
		t.Errorf("expected server to receive joinSession, got %v", server.receivedEvents())
	}
}

func TestSubscribe_ReceivesAndStopsAfterClose(t *testing.T) {
	server := newTestChannelServer(t)
	manager := NewManager(Options{BaseURL: server.url()})
	defer manager.Teardown()

	var count int32
	sub := manager.Subscribe(EventNewMessage, func(data json.RawMessage) {
		atomic.AddInt32(&count, 1)
	})

	if err := manager.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected failed: %v", err)
	}

	server.push(t, Frame{Event: EventNewMessage, Data: json.RawMessage(`{"id":"m1"}`)})
	if !waitFor(t, 2*time.Second, func() bool { return atomic.LoadInt32(&count) == 1 }) {
		t.Fatalf("expected handler to fire once, got %d", atomic.LoadInt32(&count))
	}

	sub.Close()
	sub.Close() // second close is a no-op

	server.push(t, Frame{Event: EventNewMessage, Data: json.RawMessage(`{"id":"m2"}`)})
	time.Sleep(50 * time.Millisecond)
	if got := atomic.LoadInt32(&count); got != 1 {
		t.Errorf("expected no delivery after Close, handler fired %d times", got)
	}
}

func TestTeardown_FreshConnectionAfterwards(t *testing.T) {
	server := newTestChannelServer(t)
	manager := NewManager(Options{BaseURL: server.url()})
	defer manager.Teardown()

	if err := manager.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected failed: %v", err)
	}
	if err := manager.Teardown(); err != nil {
		t.Fatalf("Teardown failed: %v", err)
	}
	if err := manager.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected after teardown failed: %v", err)
	}

	if got := server.acceptCount(); got != 2 {
		t.Errorf("expected a fresh dial after teardown, accept count %d", got)
	}
}

func TestReconnect_AfterTransportDrop(t *testing.T) {
	server := newTestChannelServer(t)
	manager := NewManager(Options{
		BaseURL:           server.url(),
		ReconnectAttempts: 5,
		ReconnectDelay:    10 * time.Millisecond,
	})
	defer manager.Teardown()

	var states []types.ConnectionState
	var statesMu sync.Mutex
	stateSub := manager.OnStateChange(func(state types.ConnectionState) {
		statesMu.Lock()
		states = append(states, state)
		statesMu.Unlock()
	})
	defer stateSub.Close()

	if err := manager.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected failed: %v", err)
	}

	server.closeAll()

	if !waitFor(t, 2*time.Second, func() bool { return server.acceptCount() == 2 }) {
		t.Fatalf("expected reconnect dial, accept count %d", server.acceptCount())
	}
	if !waitFor(t, 2*time.Second, func() bool { return manager.State() == types.StateConnected }) {
		t.Fatalf("expected connected after reconnect, got %s", manager.State())
	}

	statesMu.Lock()
	defer statesMu.Unlock()
	sawReconnecting := false
	for _, s := range states {
		if s == types.StateReconnecting {
			sawReconnecting = true
		}
	}
	if !sawReconnecting {
		t.Errorf("expected a reconnecting transition, got %v", states)
	}
}

func TestReconnect_BudgetSpentGoesOffline(t *testing.T) {
	server := newTestChannelServer(t)
	manager := NewManager(Options{
		BaseURL:           server.url(),
		ReconnectAttempts: 3,
		ReconnectDelay:    10 * time.Millisecond,
	})

	if err := manager.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected failed: %v", err)
	}

	// Kill the backend entirely so every reconnect attempt fails.
	server.closeAll()
	server.server.Close()

	if !waitFor(t, 5*time.Second, func() bool { return manager.State() == types.StateDisconnected }) {
		t.Errorf("expected offline after reconnect budget spent, got %s", manager.State())
	}
}
