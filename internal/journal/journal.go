// Package journal records the outcome of every converted file in a pebble
// store so an interrupted batch can be resumed without redoing finished
// work.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	pebble "github.com/cockroachdb/pebble"
)

// Status values stored in a Record.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

const keyPrefix = "file/"

// Record is the stored outcome of one input file.
type Record struct {
	Input      string    `json:"input"`
	Output     string    `json:"output"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	RunID      string    `json:"run_id"`
	MaxCLL     int       `json:"max_cll,omitempty"`
	MaxFALL    int       `json:"max_fall,omitempty"`
	InputSize  int64     `json:"input_size"`
	InputMod   time.Time `json:"input_mod"`
	OutputSize int64     `json:"output_size,omitempty"`
	FinishedAt time.Time `json:"finished_at"`
}

// Store is an open journal.
type Store struct {
	db *pebble.DB
}

// Open opens (creating if needed) the journal in dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", dir, err)
	}
	return &Store{db: db}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	return s.db.Close()
}

func key(input string) []byte {
	if abs, err := filepath.Abs(input); err == nil {
		input = abs
	}
	return []byte(keyPrefix + input)
}

// Put stores rec, replacing any earlier record for the same input.
func (s *Store) Put(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal journal record: %w", err)
	}
	return s.db.Set(key(rec.Input), data, pebble.Sync)
}

// Get returns the record for input. ok is false when none exists.
func (s *Store) Get(input string) (rec Record, ok bool, err error) {
	data, closer, err := s.db.Get(key(input))
	if errors.Is(err, pebble.ErrNotFound) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	defer closer.Close()
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("unmarshal journal record: %w", err)
	}
	return rec, true, nil
}

// Done reports whether input was converted successfully and neither the
// input nor the recorded output changed since.
func (s *Store) Done(input string) (bool, error) {
	rec, ok, err := s.Get(input)
	if err != nil || !ok || rec.Status != StatusSuccess {
		return false, err
	}
	in, err := os.Stat(input)
	if err != nil || in.Size() != rec.InputSize || !in.ModTime().Equal(rec.InputMod) {
		return false, nil
	}
	out, err := os.Stat(rec.Output)
	if err != nil || out.Size() != rec.OutputSize {
		return false, nil
	}
	return true, nil
}

// List returns every record in key order.
func (s *Store) List() ([]Record, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte("file0"), // '0' follows '/'
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var records []Record
	for iter.First(); iter.Valid(); iter.Next() {
		var rec Record
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue // Skip invalid records
		}
		records = append(records, rec)
	}
	return records, iter.Error()
}

// Delete removes the record for input.
func (s *Store) Delete(input string) error {
	return s.db.Delete(key(input), pebble.Sync)
}

// Prune deletes the records whose input file no longer exists and returns
// how many records remain and how many were removed.
func (s *Store) Prune() (kept, removed int, err error) {
	recs, err := s.List()
	if err != nil {
		return 0, 0, err
	}
	for _, rec := range recs {
		if _, err := os.Stat(rec.Input); !errors.Is(err, os.ErrNotExist) {
			kept++
			continue
		}
		if err := s.Delete(rec.Input); err != nil {
			return kept, removed, err
		}
		removed++
	}
	return kept, removed, nil
}
