package store

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"docsearch/internal/domain"
)

// BoltRegistry keeps document records in the documents bucket.
type BoltRegistry struct {
	db *bbolt.DB
}

func NewBoltRegistry(store *BoltStore) *BoltRegistry {
	return &BoltRegistry{db: store.DB()}
}

func (r *BoltRegistry) Put(ctx context.Context, rec domain.DocumentRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).Put([]byte(rec.ID), data)
	})
}

func (r *BoltRegistry) Get(ctx context.Context, id string) (domain.DocumentRecord, error) {
	var rec domain.DocumentRecord
	err := r.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocuments).Get([]byte(id))
		if data == nil {
			return domain.ErrDocumentNotFound
		}
		return json.Unmarshal(data, &rec)
	})
	return rec, err
}

func (r *BoltRegistry) List(ctx context.Context) ([]domain.DocumentRecord, error) {
	recs := []domain.DocumentRecord{}
	err := r.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).ForEach(func(k, v []byte) error {
			var rec domain.DocumentRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("corrupt document record %s: %w", k, err)
			}
			recs = append(recs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	domain.SortNewestFirst(recs)
	return recs, nil
}

func (r *BoltRegistry) Delete(ctx context.Context, id string) error {
	return r.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).Delete([]byte(id))
	})
}
