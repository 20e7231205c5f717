package chat

import (
	"context"
	"fmt"
	"sync"

	"stridelink/pkg/types"
)

// Archiver is the REST collaborator that performs the server-side
// message delete.
type Archiver interface {
	ArchiveMessage(ctx context.Context, sessionID, messageID string) error
}

type archivalState int

const (
	// archivalPending: optimistic local flip applied, server outcome unknown.
	archivalPending archivalState = iota
	// archivalConfirmed: server acknowledged, transition is terminal.
	archivalConfirmed
)

// ArchivalReconciler resolves the two sources of "a message became
// archived" — the local optimistic delete and the authoritative server
// event — into one consistent MessageLog state.
//
// Per message: live -> pending -> confirmed. The transition is one-way
// once confirmed; a pending flip is rolled back if the server rejects
// the delete, instead of leaving the UI permanently ahead of the server.
type ArchivalReconciler struct {
	sessionID string
	log       *MessageLog
	archiver  Archiver

	mu     sync.Mutex
	states map[string]archivalState
	saved  map[string]types.Message // pre-archive content for rollback
}

// NewArchivalReconciler wires the reconciler over one session's log.
func NewArchivalReconciler(sessionID string, log *MessageLog, archiver Archiver) *ArchivalReconciler {
	return &ArchivalReconciler{
		sessionID: sessionID,
		log:       log,
		archiver:  archiver,
		states:    make(map[string]archivalState),
		saved:     make(map[string]types.Message),
	}
}

// RequestArchive applies the optimistic flip immediately, then asks the
// server. On rejection the flip is rolled back and the error returned
// for user-facing reporting.
func (r *ArchivalReconciler) RequestArchive(ctx context.Context, messageID string) error {
	r.mu.Lock()
	if _, ok := r.states[messageID]; ok {
		// Already pending or confirmed; idempotent.
		r.mu.Unlock()
		return nil
	}

	original, ok := r.log.Get(messageID)
	if !ok {
		r.mu.Unlock()
		return ErrUnknownMessage
	}
	if original.Archived {
		r.states[messageID] = archivalConfirmed
		r.mu.Unlock()
		return nil
	}

	r.states[messageID] = archivalPending
	r.saved[messageID] = original
	r.mu.Unlock()

	// Optimistic: the rendered list shows the message archived before
	// the server has answered.
	r.log.ApplyArchived(messageID)

	if err := r.archiver.ArchiveMessage(ctx, r.sessionID, messageID); err != nil {
		r.mu.Lock()
		if r.states[messageID] != archivalPending {
			// The authoritative event landed while the request was in
			// flight; the archive stands regardless of this response.
			r.mu.Unlock()
			return nil
		}
		delete(r.states, messageID)
		original := r.saved[messageID]
		delete(r.saved, messageID)
		r.mu.Unlock()

		r.log.Restore(original)
		return fmt.Errorf("%w: %v", ErrArchiveRejected, err)
	}

	r.mu.Lock()
	r.states[messageID] = archivalConfirmed
	delete(r.saved, messageID)
	r.mu.Unlock()
	return nil
}

// OnRemoteArchived applies the authoritative server event. Idempotent
// over both the optimistic and the already-confirmed state: no second
// mutation, no flicker.
func (r *ArchivalReconciler) OnRemoteArchived(messageID string) {
	r.mu.Lock()
	r.states[messageID] = archivalConfirmed
	delete(r.saved, messageID)
	r.mu.Unlock()

	// No-op inside the log if the optimistic flip already cleared it.
	r.log.ApplyArchived(messageID)
}
