package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"stridelink/pkg/types"
)

// HistoryFetcher is the REST collaborator that returns the one-shot
// message snapshot for a session.
type HistoryFetcher interface {
	ChatHistory(ctx context.Context, sessionID string) ([]*types.Message, error)
}

// MessageLog is the merged, ordered, deduplicated view of one session's
// messages: one REST snapshot plus an unbounded stream of live events.
//
// Entries are keyed by message id and ordered by authored timestamp,
// ties broken by arrival order. Keying on identity rather than arrival
// makes the final state independent of how network completions
// interleave.
type MessageLog struct {
	mu        sync.Mutex
	sessionID string
	fetcher   HistoryFetcher
	entries   map[string]*logEntry
	order     []*logEntry
	seq       uint64

	// tombstones records archivals that raced ahead of the snapshot
	// containing their message. Externally ApplyArchived on an unknown
	// id is a no-op; internally the id is remembered so the message
	// lands archived when the snapshot finally delivers it.
	tombstones map[string]bool
}

type logEntry struct {
	msg types.Message
	seq uint64
}

// NewMessageLog creates an empty log for one session.
func NewMessageLog(sessionID string, fetcher HistoryFetcher) *MessageLog {
	return &MessageLog{
		sessionID:  sessionID,
		fetcher:    fetcher,
		entries:    make(map[string]*logEntry),
		tombstones: make(map[string]bool),
	}
}

// LoadSnapshot fetches the session history once and merges it in.
// On failure the prior in-memory state is left untouched; the caller
// may re-invoke manually. There is no automatic retry.
func (l *MessageLog) LoadSnapshot(ctx context.Context) error {
	messages, err := l.fetcher.ChatHistory(ctx, l.sessionID)
	if err != nil {
		return fmt.Errorf("failed to load history for session %s: %w", l.sessionID, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, msg := range messages {
		if msg == nil {
			continue
		}
		l.mergeLocked(*msg)
	}
	l.sortLocked()
	return nil
}

// ApplyCreated inserts a live message or, if the id already exists
// (duplicate delivery or a confirmed local echo), replaces it in place.
// It never appends a duplicate.
func (l *MessageLog) ApplyCreated(msg types.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.mergeLocked(msg)
	l.sortLocked()
}

// ApplyArchived clears content and flags the matching entry. An unknown
// id is a no-op, not an error: the archival event may race ahead of an
// in-flight snapshot load.
func (l *MessageLog) ApplyArchived(messageID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[messageID]
	if !ok {
		l.tombstones[messageID] = true
		return
	}
	if entry.msg.Archived {
		return
	}
	entry.msg.Archive()
}

// Restore puts a full message back over an archived entry. Used only
// for rolling back an optimistic archive the server rejected.
func (l *MessageLog) Restore(msg types.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[msg.ID]
	if !ok {
		return
	}
	delete(l.tombstones, msg.ID)
	msg.Archived = false
	entry.msg = msg
	l.sortLocked()
}

// Get returns a copy of one entry.
func (l *MessageLog) Get(messageID string) (types.Message, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[messageID]
	if !ok {
		return types.Message{}, false
	}
	return entry.msg, true
}

// Messages returns a defensive copy of the ordered log.
func (l *MessageLog) Messages() []types.Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]types.Message, 0, len(l.order))
	for _, entry := range l.order {
		out = append(out, entry.msg)
	}
	return out
}

// Len returns the number of entries.
func (l *MessageLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.order)
}

// mergeLocked performs the keyed insert-or-replace. Caller holds the
// lock and re-sorts afterwards.
func (l *MessageLog) mergeLocked(msg types.Message) {
	if existing, ok := l.entries[msg.ID]; ok {
		if existing.msg.Archived {
			// Archival is one-way; a late duplicate of the original
			// content must not resurrect it.
			return
		}
		msg.Archived = false
		existing.msg = msg
		return
	}

	if l.tombstones[msg.ID] {
		delete(l.tombstones, msg.ID)
		msg.Archive()
	}

	l.seq++
	entry := &logEntry{msg: msg, seq: l.seq}
	l.entries[msg.ID] = entry
	l.order = append(l.order, entry)
}

// sortLocked restores (timestamp, arrival) ordering. Live events arrive
// near-real-time so the slice is usually already sorted; the sort is
// what keeps an out-of-order retry delivery from sticking at the tail.
func (l *MessageLog) sortLocked() {
	sort.SliceStable(l.order, func(i, j int) bool {
		a, b := l.order[i], l.order[j]
		if !a.msg.SentAt.Equal(b.msg.SentAt) {
			return a.msg.SentAt.Before(b.msg.SentAt)
		}
		return a.seq < b.seq
	})
}
