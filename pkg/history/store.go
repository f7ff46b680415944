// Package history keeps a capacity-bounded, persisted log of past bridge
// attempts. Persistence is best-effort: a failed load or save must never
// surface to the user.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultFileName = ".dtc-bridge-history.json"
	DefaultMaxItems = 25
)

// Status of a recorded bridge attempt.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusError     Status = "ERROR"
)

// Item is one recorded transfer attempt. Amount holds the decimal string as
// the user entered it, not minor units.
type Item struct {
	Time      time.Time `json:"time"`
	Direction string    `json:"direction"`
	Amount    string    `json:"amount"`
	Recipient string    `json:"recipient"`
	ChainID   uint64    `json:"chain_id"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Status    Status    `json:"status"`
}

// Store holds history items newest-first, bounded to max entries. Oldest
// entries are evicted on append. Items are never deleted individually.
type Store struct {
	filePath string
	max      int
	log      *zap.Logger

	mu    sync.RWMutex
	items []Item
}

// NewStore opens (or lazily creates) a store backed by filePath. An empty
// path defaults to a file in the user's home directory. Load failures leave
// the store empty rather than returning an error.
func NewStore(filePath string, max int, log *zap.Logger) *Store {
	if filePath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			filePath = filepath.Join(home, DefaultFileName)
		} else {
			filePath = DefaultFileName
		}
	}
	if max <= 0 {
		max = DefaultMaxItems
	}
	if log == nil {
		log = zap.NewNop()
	}

	s := &Store{filePath: filePath, max: max, log: log}
	s.load()
	return s
}

// Append records a new item at the head, evicting the oldest entries beyond
// capacity, and persists the result.
func (s *Store) Append(item Item) {
	s.mu.Lock()
	s.items = append([]Item{item}, s.items...)
	if len(s.items) > s.max {
		s.items = s.items[:s.max]
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	s.save(snapshot)
}

// MarkConfirmed flips the first pending item with the given transaction hash
// to CONFIRMED and persists. It reports whether a matching item was found.
func (s *Store) MarkConfirmed(txHash string) bool {
	s.mu.Lock()
	found := false
	for i := range s.items {
		if s.items[i].TxHash == txHash && s.items[i].Status == StatusPending {
			s.items[i].Status = StatusConfirmed
			found = true
			break
		}
	}
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if found {
		s.save(snapshot)
	}
	return found
}

// Items returns a copy of the log, newest first.
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Len returns the number of recorded items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// FilePath returns the backing file path.
func (s *Store) FilePath() string {
	return s.filePath
}

func (s *Store) snapshotLocked() []Item {
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// load reads the backing file. Missing or corrupt files are treated as an
// empty history.
func (s *Store) load() {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.log.Warn("history load failed", zap.String("path", s.filePath), zap.Error(err))
		}
		return
	}

	var items []Item
	if err := json.Unmarshal(data, &items); err != nil {
		s.log.Warn("history file corrupt, starting empty", zap.String("path", s.filePath), zap.Error(err))
		return
	}

	if len(items) > s.max {
		items = items[:s.max]
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
}

// save writes the snapshot atomically via a temp file and rename. Errors are
// logged and swallowed.
func (s *Store) save(items []Item) {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		s.log.Warn("history marshal failed", zap.Error(err))
		return
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		s.log.Warn("history save failed", zap.String("path", s.filePath), zap.Error(err))
		return
	}

	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		s.log.Warn("history save failed", zap.String("path", tempFile), zap.Error(err))
		return
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		s.log.Warn("history save failed", zap.String("path", s.filePath), zap.Error(err))
	}
}
