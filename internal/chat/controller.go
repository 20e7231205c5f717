package chat

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"stridelink/pkg/types"
)

// Backend is the REST side of the chat feature: snapshot history,
// session metadata, sends and the server-side archive.
type Backend interface {
	HistoryFetcher
	Archiver
	SessionInfo(ctx context.Context, sessionID string) (*types.ChatSession, error)
	SendMessage(ctx context.Context, sessionID, text string) error
	SendRecommendation(ctx context.Context, sessionID, text string) error
}

// ScreenHooks are the render-side callbacks. All of them may be nil;
// none of them may block.
type ScreenHooks struct {
	MessagesChanged func()
	TypingChanged   func(active bool, userName string)
	Notice          func(err error)
}

// ControllerOptions wires a controller to its collaborators.
type ControllerOptions struct {
	Channel        Channel
	Backend        Backend
	Clock          Clock
	Self           types.Credentials
	TypingThrottle time.Duration
	TypingExpiry   time.Duration
	Hooks          ScreenHooks
}

// Controller owns the lifecycle of one mounted chat screen: it joins
// the session over the shared channel, loads the snapshot, routes live
// events into the log and presence tracker, and guarantees release of
// every handle on unmount.
type Controller struct {
	opts ControllerOptions

	mu         sync.Mutex
	mounted    bool
	gen        uint64 // bumped per mount/unmount; stale async results check it
	sessionID  string
	session    *types.ChatSession
	messageLog *MessageLog
	typing     *TypingTracker
	reconciler *ArchivalReconciler
	sub        *SessionSubscription
}

// NewController creates an unmounted controller.
func NewController(opts ControllerOptions) *Controller {
	if opts.Clock == nil {
		opts.Clock = NewClock()
	}
	return &Controller{opts: opts}
}

// Mount opens the session: ensures the channel, joins, and starts the
// snapshot and metadata fetches. A channel that cannot come up is
// surfaced as a notice, not a mount failure — the REST snapshot still
// loads and the screen renders in its offline shape.
func (c *Controller) Mount(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return ErrAlreadyMounted
	}
	c.mounted = true
	c.gen++
	gen := c.gen
	c.sessionID = sessionID

	messageLog := NewMessageLog(sessionID, c.opts.Backend)
	c.messageLog = messageLog

	c.typing = NewTypingTracker(TypingOptions{
		SessionID: sessionID,
		UserID:    c.opts.Self.UserID,
		UserName:  c.opts.Self.DisplayName,
		Throttle:  c.opts.TypingThrottle,
		Expiry:    c.opts.TypingExpiry,
		Clock:     c.opts.Clock,
		Emitter:   c.opts.Channel,
		OnChange:  c.opts.Hooks.TypingChanged,
	})
	typing := c.typing

	c.reconciler = NewArchivalReconciler(sessionID, messageLog, c.opts.Backend)
	reconciler := c.reconciler

	sub := NewSessionSubscription(c.opts.Channel, sessionID, SessionEvents{
		OnMessage: func(msg types.Message) {
			if !c.stillMounted(gen) {
				return
			}
			messageLog.ApplyCreated(msg)
			typing.MessageArrived(msg.AuthorID)
			c.notifyMessages()
		},
		OnArchived: func(messageID string) {
			if !c.stillMounted(gen) {
				return
			}
			reconciler.OnRemoteArchived(messageID)
			c.notifyMessages()
		},
		OnTyping: func(userID, userName string) {
			if !c.stillMounted(gen) {
				return
			}
			typing.OnPeerTyping(userID, userName)
		},
	})
	c.sub = sub
	c.mu.Unlock()

	if err := c.opts.Channel.EnsureConnected(ctx); err != nil {
		c.notice(fmt.Errorf("chat channel unavailable: %w", err))
	}
	if err := sub.Join(ctx); err != nil {
		log.Printf("chat: join failed for session %s: %v", sessionID, err)
	}

	go c.loadSessionInfo(ctx, gen, sessionID)
	go c.loadSnapshot(ctx, gen, messageLog)

	return nil
}

// Unmount leaves the session and releases every handle and timer. Safe
// to call more than once; required on every exit path.
func (c *Controller) Unmount() {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	c.mounted = false
	c.gen++
	sub := c.sub
	typing := c.typing
	c.sub = nil
	c.typing = nil
	c.messageLog = nil
	c.reconciler = nil
	c.session = nil
	c.mu.Unlock()

	sub.Leave()
	typing.Stop()
}

// SendText posts a plain text message. The confirmed message comes back
// over the channel as a newMessage event.
func (c *Controller) SendText(ctx context.Context, text string) error {
	sessionID, err := c.mountedSessionID()
	if err != nil {
		return err
	}
	if err := c.opts.Backend.SendMessage(ctx, sessionID, text); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendRecommendation posts an expert-recommendation message.
func (c *Controller) SendRecommendation(ctx context.Context, text string) error {
	sessionID, err := c.mountedSessionID()
	if err != nil {
		return err
	}
	if err := c.opts.Backend.SendRecommendation(ctx, sessionID, text); err != nil {
		return fmt.Errorf("failed to send recommendation: %w", err)
	}
	return nil
}

// InputChanged reports a local text change. Non-empty content drives
// the throttled typing announcement.
func (c *Controller) InputChanged(text string) {
	c.mu.Lock()
	typing := c.typing
	mounted := c.mounted
	c.mu.Unlock()

	if !mounted || text == "" {
		return
	}
	typing.NotifyTyping()
}

// Archive requests archival of one message: optimistic locally,
// reconciled against the server's answer.
func (c *Controller) Archive(ctx context.Context, messageID string) error {
	c.mu.Lock()
	reconciler := c.reconciler
	mounted := c.mounted
	c.mu.Unlock()

	if !mounted {
		return ErrNotMounted
	}

	c.notifyMessages() // optimistic flip renders immediately
	err := reconciler.RequestArchive(ctx, messageID)
	c.notifyMessages() // confirmed, or rolled back
	return err
}

// Messages returns the current ordered log, or nil when unmounted.
func (c *Controller) Messages() []types.Message {
	c.mu.Lock()
	messageLog := c.messageLog
	c.mu.Unlock()

	if messageLog == nil {
		return nil
	}
	return messageLog.Messages()
}

// PeerTyping reports the presence flag and peer name.
func (c *Controller) PeerTyping() (bool, string) {
	c.mu.Lock()
	typing := c.typing
	c.mu.Unlock()

	if typing == nil {
		return false, ""
	}
	return typing.IsTyping()
}

// Session returns the cached session metadata, if loaded.
func (c *Controller) Session() *types.ChatSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// State exposes the channel state for rendering the offline banner.
func (c *Controller) State() types.ConnectionState {
	return c.opts.Channel.State()
}

func (c *Controller) loadSnapshot(ctx context.Context, gen uint64, messageLog *MessageLog) {
	err := messageLog.LoadSnapshot(ctx)

	// Completions that land after unmount (or after a remount) are
	// dropped, never applied and never fatal.
	if !c.stillMounted(gen) {
		return
	}
	if err != nil {
		c.notice(err)
		return
	}
	c.notifyMessages()
}

func (c *Controller) loadSessionInfo(ctx context.Context, gen uint64, sessionID string) {
	session, err := c.opts.Backend.SessionInfo(ctx, sessionID)

	c.mu.Lock()
	if !c.mounted || gen != c.gen {
		c.mu.Unlock()
		return
	}
	if err == nil {
		c.session = session
	}
	c.mu.Unlock()

	if err != nil {
		c.notice(fmt.Errorf("failed to load session info: %w", err))
	}
}

func (c *Controller) stillMounted(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mounted && gen == c.gen
}

func (c *Controller) mountedSessionID() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.mounted {
		return "", ErrNotMounted
	}
	return c.sessionID, nil
}

func (c *Controller) notifyMessages() {
	if c.opts.Hooks.MessagesChanged != nil {
		c.opts.Hooks.MessagesChanged()
	}
}

func (c *Controller) notice(err error) {
	if c.opts.Hooks.Notice != nil {
		c.opts.Hooks.Notice(err)
		return
	}
	log.Printf("chat: %v", err)
}
