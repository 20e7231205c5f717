package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"stridelink/internal/transport"
	"stridelink/pkg/types"
)

// fakeClock drives timers manually so presence timing is testable
// without wall time.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock and fires due timers outside the clock lock.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.fn()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// fakeChannel implements Channel in memory.
type fakeChannel struct {
	mu         sync.Mutex
	state      types.ConnectionState
	emits      []fakeEmit
	subs       map[string]map[int]transport.Handler
	stateSubs  map[int]transport.StateHandler
	nextID     int
	emitErr    error
	connectErr error
}

type fakeEmit struct {
	event   string
	payload interface{}
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		state:     types.StateConnected,
		subs:      make(map[string]map[int]transport.Handler),
		stateSubs: make(map[int]transport.StateHandler),
	}
}

func (f *fakeChannel) EnsureConnected(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return f.connectErr
	}
	f.state = types.StateConnected
	return nil
}

func (f *fakeChannel) Emit(event string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emitErr != nil {
		return f.emitErr
	}
	f.emits = append(f.emits, fakeEmit{event: event, payload: payload})
	return nil
}

func (f *fakeChannel) Subscribe(event string, fn transport.Handler) Registration {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := f.nextID
	if f.subs[event] == nil {
		f.subs[event] = make(map[int]transport.Handler)
	}
	f.subs[event][id] = fn

	return &fakeRegistration{close: func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.subs[event], id)
	}}
}

func (f *fakeChannel) OnStateChange(fn transport.StateHandler) Registration {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	id := f.nextID
	f.stateSubs[id] = fn

	return &fakeRegistration{close: func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.stateSubs, id)
	}}
}

func (f *fakeChannel) State() types.ConnectionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// push delivers one inbound event to current subscribers, like the
// transport read loop would.
func (f *fakeChannel) push(event string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}

	f.mu.Lock()
	handlers := make([]transport.Handler, 0, len(f.subs[event]))
	for _, fn := range f.subs[event] {
		handlers = append(handlers, fn)
	}
	f.mu.Unlock()

	for _, fn := range handlers {
		fn(json.RawMessage(data))
	}
}

// setState transitions and notifies, like transport does.
func (f *fakeChannel) setState(state types.ConnectionState) {
	f.mu.Lock()
	f.state = state
	handlers := make([]transport.StateHandler, 0, len(f.stateSubs))
	for _, fn := range f.stateSubs {
		handlers = append(handlers, fn)
	}
	f.mu.Unlock()

	for _, fn := range handlers {
		fn(state)
	}
}

func (f *fakeChannel) emittedEvents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	events := make([]string, 0, len(f.emits))
	for _, e := range f.emits {
		events = append(events, e.event)
	}
	return events
}

func (f *fakeChannel) countEmits(event string) int {
	count := 0
	for _, e := range f.emittedEvents() {
		if e == event {
			count++
		}
	}
	return count
}

func (f *fakeChannel) handlerCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := len(f.stateSubs)
	for _, handlers := range f.subs {
		count += len(handlers)
	}
	return count
}

type fakeRegistration struct {
	close func()
	once  sync.Once
}

func (r *fakeRegistration) Close() {
	r.once.Do(r.close)
}

// fakeBackend implements Backend in memory.
type fakeBackend struct {
	mu          sync.Mutex
	history     []*types.Message
	historyErr  error
	historyGate chan struct{} // when set, ChatHistory blocks until closed
	fetchCount  int
	session     *types.ChatSession
	sessionErr  error
	archived    []string
	archiveFn   func(messageID string) error
	sentTexts   []string
	sendErr     error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{}
}

func (b *fakeBackend) ChatHistory(ctx context.Context, sessionID string) ([]*types.Message, error) {
	b.mu.Lock()
	gate := b.historyGate
	b.fetchCount++
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.historyErr != nil {
		return nil, b.historyErr
	}
	out := make([]*types.Message, len(b.history))
	copy(out, b.history)
	return out, nil
}

func (b *fakeBackend) SessionInfo(ctx context.Context, sessionID string) (*types.ChatSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sessionErr != nil {
		return nil, b.sessionErr
	}
	if b.session != nil {
		return b.session, nil
	}
	return &types.ChatSession{
		ID:       sessionID,
		RunnerID: "runner_1",
		ExpertID: "expert_1",
		Status:   types.SessionStatusActive,
	}, nil
}

func (b *fakeBackend) ArchiveMessage(ctx context.Context, sessionID, messageID string) error {
	b.mu.Lock()
	fn := b.archiveFn
	b.mu.Unlock()

	if fn != nil {
		return fn(messageID)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.archived = append(b.archived, messageID)
	return nil
}

func (b *fakeBackend) SendMessage(ctx context.Context, sessionID, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sentTexts = append(b.sentTexts, text)
	return nil
}

func (b *fakeBackend) SendRecommendation(ctx context.Context, sessionID, text string) error {
	return b.SendMessage(ctx, sessionID, text)
}

// textMessage builds a minimal valid chat message for tests.
func textMessage(id, sessionID, author, text string, ts int64) types.Message {
	return types.Message{
		ID:        id,
		SessionID: sessionID,
		AuthorID:  author,
		Kind:      types.MessageKindText,
		Text:      text,
		SentAt:    time.Unix(ts, 0),
	}
}
