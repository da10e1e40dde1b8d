// Package history keeps a record of finished sessions in a Badger database.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/jamesainslie/checksums/pkg/checksums/types"
)

// ErrNotFound is returned when no record matches an ID.
var ErrNotFound = errors.New("history record not found")

// ErrAmbiguous is returned when an ID prefix matches several records.
var ErrAmbiguous = errors.New("history id prefix is ambiguous")

const keyPrefix = "session:"

// Status is how a session ended.
type Status string

// Session end states.
const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Record summarizes one session.
type Record struct {
	ID         string         `json:"id"`
	Mode       string         `json:"mode"`
	Target     string         `json:"target"`
	Output     string         `json:"output,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Total      int            `json:"total"`
	Processed  int            `json:"processed"`
	Counters   types.Counters `json:"counters"`
	Bytes      int64          `json:"bytes"`
	Status     Status         `json:"status"`
	Error      string         `json:"error,omitempty"`
}

// Duration returns how long the session ran.
func (r *Record) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists records.
type Store struct {
	db *badger.DB
}

// Open opens or creates a store in dir.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil
	return open(opts)
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts)
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores rec, replacing any record with the same ID.
func (s *Store) Put(rec *Record) error {
	if rec.ID == "" {
		return errors.New("history record has no id")
	}
	value, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+rec.ID), value)
	})
}

// Get returns the record whose ID is id or starts with id.
func (s *Store) Get(id string) (*Record, error) {
	var matches []*Record
	err := s.scan(keyPrefix+id, func(rec *Record) {
		matches = append(matches, rec)
	})
	if err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return matches[0], nil
	default:
		for _, rec := range matches {
			if rec.ID == id {
				return rec, nil
			}
		}
		return nil, fmt.Errorf("%w: %s matches %d records", ErrAmbiguous, id, len(matches))
	}
}

// List returns records newest first. A limit of zero or less returns all.
func (s *Store) List(limit int) ([]Record, error) {
	records := make([]Record, 0)
	err := s.scan(keyPrefix, func(rec *Record) {
		records = append(records, *rec)
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.After(records[j].StartedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// Cleanup deletes records that finished more than retentionDays ago and
// returns how many were removed.
func (s *Store) Cleanup(retentionDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)

	var stale [][]byte
	err := s.scan(keyPrefix, func(rec *Record) {
		if rec.FinishedAt.Before(cutoff) {
			stale = append(stale, []byte(keyPrefix+rec.ID))
		}
	})
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, err
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, err
	}
	return len(stale), nil
}

// scan decodes every record whose key starts with prefix. Undecodable
// values are skipped.
func (s *Store) scan(prefix string, fn func(*Record)) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			var rec Record
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				continue
			}
			fn(&rec)
		}
		return nil
	})
}
