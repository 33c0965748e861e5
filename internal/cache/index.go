package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// indexFile is the bbolt database name inside the cache root
	indexFile = "index.db"

	// bucketName is the bbolt bucket holding entry metadata
	bucketName = "entries"
)

// IndexRecord is the metadata mirrored into the index for one entry.
type IndexRecord struct {
	Key       string    `json:"key"`
	Cmdline   string    `json:"cmdline"`
	Context   string    `json:"context,omitempty"`
	CWD       string    `json:"cwd"`
	RC        int       `json:"rc"`
	StdoutLen int       `json:"stdout_len"`
	StderrLen int       `json:"stderr_len"`
	CreatedAt time.Time `json:"created_at"`
}

// Index is a bbolt-backed metadata mirror of the entry directories. It
// feeds the stats and ls commands; the run/replay decision never
// consults it, and callers treat index failures as warnings.
type Index struct {
	db *bbolt.DB
}

// OpenIndex opens (creating if needed) the index database under root.
// The short open timeout keeps a concurrent invocation holding the
// bbolt file lock from stalling this one.
func OpenIndex(root string) (*Index, error) {
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bbolt.Open(filepath.Join(root, indexFile), 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache index: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index bucket: %w", err)
	}

	return &Index{db: db}, nil
}

// Close closes the index database
func (ix *Index) Close() error {
	if ix.db != nil {
		return ix.db.Close()
	}

	return nil
}

// Put upserts the record for one entry.
func (ix *Index) Put(rec *IndexRecord) error {
	return ix.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		return b.Put([]byte(rec.Key), data)
	})
}

// List returns every record in the index.
func (ix *Index) List() ([]IndexRecord, error) {
	var records []IndexRecord

	err := ix.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		return b.ForEach(func(_, v []byte) error {
			var rec IndexRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return err
			}

			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// Count returns the number of indexed entries.
func (ix *Index) Count() (int, error) {
	var count int

	err := ix.db.View(func(tx *bbolt.Tx) error {
		count = tx.Bucket([]byte(bucketName)).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, err
	}

	return count, nil
}

// Reset drops and recreates the bucket.
func (ix *Index) Reset() error {
	err := ix.db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket([]byte(bucketName))
	})
	if err != nil {
		return err
	}

	return ix.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}
