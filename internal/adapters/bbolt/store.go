// Package bbolt implements the ports.Storage interface using bbolt (embedded B+ tree).
// Each project gets its own top-level bucket. Within that bucket, "reports" and
// "history" sub-buckets hold msgpack-encoded values. Writes are transactional;
// a crash mid-write cannot corrupt previously committed data.
package bbolt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"github.com/corey/shapegrep/internal/ports"
)

// Bucket keys
var (
	bucketReports = []byte("reports")
	bucketHistory = []byte("history")
)

// DefaultHistoryLimit bounds the history kept per project.
const DefaultHistoryLimit = 500

// Store implements ports.Storage backed by bbolt.
type Store struct {
	db           *bolt.DB
	historyLimit int
}

// NewStore opens (or creates) a bbolt database at the given path.
func NewStore(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	return &Store{db: db, historyLimit: DefaultHistoryLimit}, nil
}

// SetHistoryLimit changes how many history entries are kept per project.
// Zero or less keeps everything.
func (s *Store) SetHistoryLimit(n int) { s.historyLimit = n }

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveReport caches report under key.
func (s *Store) SaveReport(projectID, key string, report *ports.SearchReport) error {
	if report == nil {
		return errors.New("nil report")
	}
	data, err := msgpack.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := projectBucket(tx, projectID, bucketReports)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

// LoadReport retrieves a cached report.
// Returns nil, nil if nothing is cached for key.
func (s *Store) LoadReport(projectID, key string) (*ports.SearchReport, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := readBucket(tx, projectID, bucketReports)
		if b == nil {
			return nil
		}
		// Copy bytes out of the transaction (bbolt slices are only valid within tx)
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	var report ports.SearchReport
	if err := msgpack.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}

// AppendHistory records a finished search. Entries are keyed by timestamp
// so that cursor order is chronological; the oldest are pruned past the
// history limit.
func (s *Store) AppendHistory(projectID string, entry ports.HistoryEntry) error {
	data, err := msgpack.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("marshal history entry: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := projectBucket(tx, projectID, bucketHistory)
		if err != nil {
			return err
		}
		if err := b.Put(historyKey(entry), data); err != nil {
			return err
		}
		if s.historyLimit <= 0 {
			return nil
		}
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			keys = append(keys, append([]byte(nil), k...))
		}
		for _, k := range keys[:max(0, len(keys)-s.historyLimit)] {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListHistory returns up to limit entries, newest first.
func (s *Store) ListHistory(projectID string, limit int) ([]ports.HistoryEntry, error) {
	var out []ports.HistoryEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		b := readBucket(tx, projectID, bucketHistory)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var e ports.HistoryEntry
			if err := msgpack.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("unmarshal history entry %x: %w", k, err)
			}
			out = append(out, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteProject removes all data (reports + history) for a project.
// Idempotent: deleting a nonexistent project is not an error.
func (s *Store) DeleteProject(projectID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(projectID)); errors.Is(err, bolt.ErrBucketNotFound) {
			return nil // idempotent
		} else {
			return err
		}
	})
}

func projectBucket(tx *bolt.Tx, projectID string, name []byte) (*bolt.Bucket, error) {
	proj, err := tx.CreateBucketIfNotExists([]byte(projectID))
	if err != nil {
		return nil, err
	}
	return proj.CreateBucketIfNotExists(name)
}

func readBucket(tx *bolt.Tx, projectID string, name []byte) *bolt.Bucket {
	proj := tx.Bucket([]byte(projectID))
	if proj == nil {
		return nil
	}
	return proj.Bucket(name)
}

// historyKey is the big-endian unix-nano timestamp followed by the entry id,
// so keys sort by time and never collide.
func historyKey(e ports.HistoryEntry) []byte {
	key := make([]byte, 8, 8+len(e.ID))
	binary.BigEndian.PutUint64(key, uint64(e.At.UnixNano()))
	return append(key, e.ID...)
}
