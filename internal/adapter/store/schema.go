package store

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"docsearch/internal/domain"
)

// CurrentSchemaVersion is the on-disk layout version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

// ReadSchema returns the stored schema tag, or nil if none was written yet.
func (s *BoltStore) ReadSchema() (*domain.IndexSchema, error) {
	var schema *domain.IndexSchema
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		schema, err = readSchema(tx)
		return err
	})
	return schema, err
}

func readSchema(tx *bbolt.Tx) (*domain.IndexSchema, error) {
	data := tx.Bucket(bucketMeta).Get(keySchema)
	if data == nil {
		return nil, nil
	}
	var schema domain.IndexSchema
	if err := json.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("failed to decode schema tag: %w", err)
	}
	return &schema, nil
}

func writeSchema(tx *bbolt.Tx, schema domain.IndexSchema) error {
	data, err := json.Marshal(schema)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketMeta).Put(keySchema, data)
}

// reconcileSchema compares a stored tag with the configured one and returns
// the schema the index should run with. Model or dimension changes and
// unknown layout versions fail fast; the operator must reset and re-ingest.
func reconcileSchema(stored *domain.IndexSchema, configured domain.IndexSchema) (domain.IndexSchema, error) {
	if stored == nil {
		return configured, nil
	}

	mismatch := stored.Version != configured.Version ||
		(configured.Model != "" && stored.Model != configured.Model) ||
		(configured.Dimension != 0 && stored.Dimension != 0 && stored.Dimension != configured.Dimension)
	if mismatch {
		return domain.IndexSchema{}, &domain.SchemaMismatchError{Stored: *stored, Configured: configured}
	}

	resolved := *stored
	if resolved.Dimension == 0 {
		resolved.Dimension = configured.Dimension
	}
	return resolved, nil
}
