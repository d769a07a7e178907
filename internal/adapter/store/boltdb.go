package store

import (
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketEntries    = []byte("entries")
	bucketDocEntries = []byte("doc_entries")
	bucketDocuments  = []byte("documents")
	bucketMeta       = []byte("meta")
	keySchema        = []byte("schema")
)

var allBuckets = [][]byte{bucketEntries, bucketDocEntries, bucketDocuments, bucketMeta}

// BoltStore owns the bbolt file shared by the index and the registry.
type BoltStore struct {
	db *bbolt.DB
}

// Open opens or creates the index file. bbolt holds an exclusive file lock,
// so a second process fails after the timeout instead of sharing the index.
func Open(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Reset removes every entry, document record and the schema tag, so the
// file can be reused with a different model or dimension.
func (s *BoltStore) Reset() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range allBuckets {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return fmt.Errorf("failed to drop bucket %s: %w", name, err)
				}
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}
