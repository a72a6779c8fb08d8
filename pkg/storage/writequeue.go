package storage

import (
	"crypto/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// WriteState is the lifecycle stage of a pending write
type WriteState string

const (
	WritePending   WriteState = "pending"
	WriteSucceeded WriteState = "succeeded"
	WriteFailed    WriteState = "failed"
)

// PendingWrite is a queued remote save of a note update that has already
// been applied locally. It settles exactly once per attempt.
type PendingWrite struct {
	ID       string
	NoteID   string
	Title    string
	Body     string
	Queued   time.Time
	mu       sync.Mutex
	state    WriteState
	err      error
	attempts int
	done     chan struct{}
}

// WriteSnapshot is a read-only view of a pending write
type WriteSnapshot struct {
	ID       string     `json:"id"`
	NoteID   string     `json:"noteId"`
	Title    string     `json:"title"`
	State    WriteState `json:"state"`
	Error    string     `json:"error,omitempty"`
	Attempts int        `json:"attempts"`
	Queued   time.Time  `json:"queued"`
}

// State returns the current state
func (w *PendingWrite) State() WriteState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Err returns the failure of the last attempt, nil unless failed
func (w *PendingWrite) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Attempts returns how many times persistence was tried
func (w *PendingWrite) Attempts() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attempts
}

// Done is closed when the current attempt settles
func (w *PendingWrite) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// Snapshot copies the write's state
func (w *PendingWrite) Snapshot() WriteSnapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	snap := WriteSnapshot{
		ID:       w.ID,
		NoteID:   w.NoteID,
		Title:    w.Title,
		State:    w.state,
		Attempts: w.attempts,
		Queued:   w.Queued,
	}
	if w.err != nil {
		snap.Error = w.err.Error()
	}
	return snap
}

// WriteQueue tracks pending writes until they succeed or are discarded.
// Failed writes stay queued.
type WriteQueue struct {
	mu      sync.Mutex
	writes  map[string]*PendingWrite
	entropy *ulid.MonotonicEntropy
	// OnChange is called with the number of unsettled and failed writes
	OnChange func(open int)
}

// NewWriteQueue creates an empty queue
func NewWriteQueue() *WriteQueue {
	return &WriteQueue{
		writes:  make(map[string]*PendingWrite),
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// Enqueue registers a new pending write
func (q *WriteQueue) Enqueue(noteID, title, body string) *PendingWrite {
	q.mu.Lock()
	now := time.Now()
	w := &PendingWrite{
		ID:     ulid.MustNew(ulid.Timestamp(now), q.entropy).String(),
		NoteID: noteID,
		Title:  title,
		Body:   body,
		Queued: now,
		state:  WritePending,
		done:   make(chan struct{}),
	}
	w.attempts = 1
	q.writes[w.ID] = w
	q.mu.Unlock()

	q.changed()
	return w
}

// Settle records the outcome of the current attempt. Succeeded writes
// leave the queue.
func (q *WriteQueue) Settle(w *PendingWrite, err error) {
	if err == nil {
		q.mu.Lock()
		delete(q.writes, w.ID)
		q.mu.Unlock()
	}
	q.changed()

	// Waiters on Done see the queue already updated.
	w.mu.Lock()
	if err != nil {
		w.state = WriteFailed
		w.err = err
	} else {
		w.state = WriteSucceeded
		w.err = nil
	}
	close(w.done)
	w.mu.Unlock()
}

// Restart moves a failed write back to pending for another attempt.
// It reports false when the write is unknown or not failed.
func (q *WriteQueue) Restart(id string) (*PendingWrite, bool) {
	q.mu.Lock()
	w, ok := q.writes[id]
	q.mu.Unlock()
	if !ok {
		return nil, false
	}

	w.mu.Lock()
	if w.state != WriteFailed {
		w.mu.Unlock()
		return nil, false
	}
	w.state = WritePending
	w.err = nil
	w.attempts++
	w.done = make(chan struct{})
	w.mu.Unlock()

	q.changed()
	return w, true
}

// Discard drops a failed write. Pending writes cannot be discarded.
func (q *WriteQueue) Discard(id string) bool {
	q.mu.Lock()
	w, ok := q.writes[id]
	if !ok || w.State() != WriteFailed {
		q.mu.Unlock()
		return false
	}
	delete(q.writes, id)
	q.mu.Unlock()

	q.changed()
	return true
}

// Get returns a queued write
func (q *WriteQueue) Get(id string) (*PendingWrite, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	w, ok := q.writes[id]
	return w, ok
}

// List returns the queued writes, oldest first
func (q *WriteQueue) List() []*PendingWrite {
	q.mu.Lock()
	out := make([]*PendingWrite, 0, len(q.writes))
	for _, w := range q.writes {
		out = append(out, w)
	}
	q.mu.Unlock()

	// ULIDs sort by creation time.
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Failed returns the writes whose last attempt failed, oldest first
func (q *WriteQueue) Failed() []*PendingWrite {
	var out []*PendingWrite
	for _, w := range q.List() {
		if w.State() == WriteFailed {
			out = append(out, w)
		}
	}
	return out
}

// Clear drops every queued write. Attempts in flight still settle.
func (q *WriteQueue) Clear() {
	q.mu.Lock()
	q.writes = make(map[string]*PendingWrite)
	q.mu.Unlock()
	q.changed()
}

// Len returns the number of queued writes
func (q *WriteQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.writes)
}

func (q *WriteQueue) changed() {
	if q.OnChange != nil {
		q.OnChange(q.Len())
	}
}
