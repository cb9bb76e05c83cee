package surface

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/verte-zerg/inputsim/internal/model"
)

// JournalEntry is one line of the journal.
type JournalEntry struct {
	Time   time.Time    `json:"time"`
	Op     string       `json:"op"`
	Handle Handle       `json:"handle,omitempty"`
	Event  *model.Event `json:"event,omitempty"`
	Count  int          `json:"count,omitempty"`
	Error  string       `json:"error,omitempty"`
}

// Journal wraps a Provider and appends every operation as JSON Lines.
type Journal struct {
	next  Provider
	clock func() time.Time

	mu  sync.Mutex
	enc *json.Encoder
	err error
}

// NewJournal decorates next. A nil clock uses time.Now.
func NewJournal(next Provider, w io.Writer, clock func() time.Time) *Journal {
	if clock == nil {
		clock = time.Now
	}
	return &Journal{next: next, clock: clock, enc: json.NewEncoder(w)}
}

// Err returns the first write error, if any.
func (j *Journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

func (j *Journal) record(entry JournalEntry, err error) {
	entry.Time = j.clock().UTC()
	if err != nil {
		entry.Error = err.Error()
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return
	}
	j.err = j.enc.Encode(entry)
}

// Create implements Provider.
func (j *Journal) Create(ctx context.Context, opts Options) (Handle, error) {
	h, err := j.next.Create(ctx, opts)
	j.record(JournalEntry{Op: "create", Handle: h}, err)
	return h, err
}

// Destroy implements Provider.
func (j *Journal) Destroy(h Handle) error {
	err := j.next.Destroy(h)
	j.record(JournalEntry{Op: "destroy", Handle: h}, err)
	return err
}

// Post implements Provider.
func (j *Journal) Post(h Handle, ev model.Event) error {
	err := j.next.Post(h, ev)
	j.record(JournalEntry{Op: "post", Handle: h, Event: &ev}, err)
	return err
}

// Drain implements Provider.
func (j *Journal) Drain(h Handle) (int, error) {
	n, err := j.next.Drain(h)
	j.record(JournalEntry{Op: "drain", Handle: h, Count: n}, err)
	return n, err
}
