package sandbox

import (
	"sync"

	"github.com/GriffinCanCode/Shelf/backend/internal/shared/id"
)

type pendingEntry struct {
	success id.Token
	failure id.Token
	done    chan Completion
}

// PendingTable maps callback tokens to suspended host calls. One entry is
// registered under both its success and error token; firing or dropping
// either token removes both, so each call completes at most once.
type PendingTable struct {
	mu      sync.Mutex
	entries map[id.Token]*pendingEntry
	closed  error
}

// NewPendingTable creates an empty table
func NewPendingTable() *PendingTable {
	return &PendingTable{entries: make(map[id.Token]*pendingEntry)}
}

// Register adds a call under both tokens. The returned channel receives
// exactly one Completion unless the call is dropped first.
func (t *PendingTable) Register(success, failure id.Token) (<-chan Completion, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed != nil {
		return nil, t.closed
	}
	if success == failure {
		return nil, ErrDuplicateToken
	}
	if _, ok := t.entries[success]; ok {
		return nil, ErrDuplicateToken
	}
	if _, ok := t.entries[failure]; ok {
		return nil, ErrDuplicateToken
	}

	e := &pendingEntry{success: success, failure: failure, done: make(chan Completion, 1)}
	t.entries[success] = e
	t.entries[failure] = e
	return e.done, nil
}

// Fire completes the call owning token. It returns false when the token
// is unknown, which is the case for every fire after the first.
func (t *PendingTable) Fire(token id.Token, c Completion) bool {
	e := t.take(token)
	if e == nil {
		return false
	}
	e.done <- c
	return true
}

// Drop removes the call owning token without completing it
func (t *PendingTable) Drop(token id.Token) bool {
	return t.take(token) != nil
}

// Contains reports whether token is registered
func (t *PendingTable) Contains(token id.Token) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries[token]
	return ok
}

// Len returns the number of suspended calls
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries) / 2
}

// Close completes every suspended call with err and refuses new ones
func (t *PendingTable) Close(err error) int {
	t.mu.Lock()
	if t.closed == nil {
		t.closed = err
	}
	var entries []*pendingEntry
	for token, e := range t.entries {
		if token == e.success {
			entries = append(entries, e)
		}
	}
	t.entries = make(map[id.Token]*pendingEntry)
	t.mu.Unlock()

	for _, e := range entries {
		e.done <- Completion{Err: err}
	}
	return len(entries)
}

func (t *PendingTable) take(token id.Token) *pendingEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[token]
	if !ok {
		return nil
	}
	delete(t.entries, e.success)
	delete(t.entries, e.failure)
	return e
}
