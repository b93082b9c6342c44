package events

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
)

// Log is an append-only event sink. Appends are fire-and-forget: the engine
// commits state first and never rolls back because a sink misbehaved.
type Log interface {
	Append(Event)
}

// Entry wraps an event with its journal metadata. Seq is per-log append
// order; consumers must tolerate duplicates and cross-order interleaving
// but see one order's events in creation-to-terminal order.
type Entry struct {
	ID   string `json:"id"`
	Seq  uint64 `json:"seq"`
	Kind string `json:"kind"`
	Data Event  `json:"data"`
}

// MemoryLog keeps entries in memory. Used by tests and the API's recent-event
// query.
type MemoryLog struct {
	mu      sync.RWMutex
	seq     uint64
	entries []Entry
}

func NewMemoryLog() *MemoryLog { return &MemoryLog{} }

func (l *MemoryLog) Append(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{
		ID:   uuid.NewString(),
		Seq:  l.seq,
		Kind: ev.Kind(),
		Data: ev,
	})
	l.seq++
}

// Entries returns a snapshot copy of the journal.
func (l *MemoryLog) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// ByKind returns a snapshot of entries matching one event kind.
func (l *MemoryLog) ByKind(kind string) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []Entry
	for _, e := range l.entries {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// FileLog journals events as JSON lines. Write errors are swallowed; the
// journal is an observer, not a participant.
type FileLog struct {
	mu  sync.Mutex
	f   *os.File
	seq uint64
}

func NewFileLog(path string) (*FileLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileLog{f: f}, nil
}

func (l *FileLog) Append(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry := Entry{
		ID:   uuid.NewString(),
		Seq:  l.seq,
		Kind: ev.Kind(),
		Data: ev,
	}
	l.seq++
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	fmt.Fprintln(l.f, string(data))
}

func (l *FileLog) Close() error { return l.f.Close() }

// Tee fans every event out to multiple sinks.
type Tee []Log

func (t Tee) Append(ev Event) {
	for _, l := range t {
		l.Append(ev)
	}
}

// NopLog discards everything.
type NopLog struct{}

func (NopLog) Append(Event) {}
