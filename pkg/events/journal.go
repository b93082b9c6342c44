package events

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/swaplabs/swapd/pkg/storage"
)

// RawEntry is a journal entry read back from storage. The payload stays raw
// because the journal does not know the concrete event types of old records.
type RawEntry struct {
	ID   string          `json:"id"`
	Seq  uint64          `json:"seq"`
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// StoreLog journals events into the shared Pebble store. Keys order by
// sequence number, so a prefix scan replays the journal oldest first.
type StoreLog struct {
	mu    sync.Mutex
	store *storage.PebbleStore
	seq   uint64
}

// NewStoreLog opens the journal and resumes the sequence counter past the
// last persisted entry.
func NewStoreLog(store *storage.PebbleStore) (*StoreLog, error) {
	l := &StoreLog{store: store}

	err := store.Scan(storage.EventPrefix(), func(_, val []byte) error {
		var entry RawEntry
		if err := json.Unmarshal(val, &entry); err != nil {
			return err
		}
		if entry.Seq >= l.seq {
			l.seq = entry.Seq + 1
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (l *StoreLog) Append(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := Entry{
		ID:   uuid.NewString(),
		Seq:  l.seq,
		Kind: ev.Kind(),
		Data: ev,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := l.store.Set(storage.EventKey(entry.Seq), data); err != nil {
		return
	}
	l.seq++
}

// Recent returns up to limit of the newest journal entries, oldest first.
func (l *StoreLog) Recent(limit int) ([]RawEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var all []RawEntry
	err := l.store.Scan(storage.EventPrefix(), func(_, val []byte) error {
		var entry RawEntry
		if err := json.Unmarshal(val, &entry); err != nil {
			return err
		}
		all = append(all, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}
