package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sync"

	"go.etcd.io/bbolt"

	"docsearch/internal/adapter/similarity"
	"docsearch/internal/domain"
)

// BoltIndex implements VectorIndex using bbolt for persistence.
// All entries are mirrored in memory and searched exactly; bbolt is the
// source of truth and is written before the mirror changes.
type BoltIndex struct {
	db     *bbolt.DB
	mu     sync.RWMutex
	table  *similarity.Table
	schema domain.IndexSchema
}

type storedEntry struct {
	ChunkID    string `json:"chunk_id"`
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Position   int    `json:"position"`
	Text       string `json:"text"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Vector     []byte `json:"vector"`
}

// NewBoltIndex opens the index in store, checks the stored schema tag
// against schema and loads every entry into memory. A zero schema.Version
// means CurrentSchemaVersion.
func NewBoltIndex(store *BoltStore, schema domain.IndexSchema) (*BoltIndex, error) {
	if schema.Version == 0 {
		schema.Version = CurrentSchemaVersion
	}

	idx := &BoltIndex{db: store.DB()}

	err := idx.db.Update(func(tx *bbolt.Tx) error {
		stored, err := readSchema(tx)
		if err != nil {
			return err
		}
		resolved, err := reconcileSchema(stored, schema)
		if err != nil {
			return err
		}
		idx.schema = resolved
		if stored == nil || *stored != resolved {
			return writeSchema(tx, resolved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	idx.table = similarity.NewTable(idx.schema.Dimension)
	if err := idx.load(); err != nil {
		return nil, fmt.Errorf("failed to load entries: %w", err)
	}

	return idx, nil
}

// load reads all entries into memory. A corrupt entry fails the open
// rather than silently shrinking the index.
func (x *BoltIndex) load() error {
	return x.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(k, v []byte) error {
			if len(k) != 8 {
				return fmt.Errorf("malformed entry key %x", k)
			}
			var stored storedEntry
			if err := json.Unmarshal(v, &stored); err != nil {
				return fmt.Errorf("corrupt entry %d: %w", binary.BigEndian.Uint64(k), err)
			}
			e := stored.toEntry()
			if x.table.Dimension() != 0 && len(e.Embedding) != x.table.Dimension() {
				return &domain.DimensionMismatchError{Expected: x.table.Dimension(), Got: len(e.Embedding)}
			}
			x.table.Put(binary.BigEndian.Uint64(k), e)
			return nil
		})
	})
}

// Insert writes the batch in one bbolt transaction, replacing any earlier
// entries of the same documents, then updates the in-memory mirror.
func (x *BoltIndex) Insert(ctx context.Context, entries []domain.IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	dim, err := x.table.Validate(entries)
	if err != nil {
		return err
	}

	docs := make(map[string][]uint64)
	var order []string
	next := x.table.NextSeq()
	seqs := make([]uint64, len(entries))
	for i, e := range entries {
		id := e.Chunk.DocumentID
		if _, ok := docs[id]; !ok {
			order = append(order, id)
		}
		seqs[i] = next + uint64(i)
		docs[id] = append(docs[id], seqs[i])
	}

	err = x.db.Update(func(tx *bbolt.Tx) error {
		eb := tx.Bucket(bucketEntries)
		deb := tx.Bucket(bucketDocEntries)

		for _, id := range order {
			if err := deleteDocEntries(eb, deb, id); err != nil {
				return err
			}
		}

		for i, e := range entries {
			data, err := json.Marshal(newStoredEntry(e))
			if err != nil {
				return err
			}
			if err := eb.Put(seqKey(seqs[i]), data); err != nil {
				return err
			}
		}

		for _, id := range order {
			data, err := json.Marshal(docs[id])
			if err != nil {
				return err
			}
			if err := deb.Put([]byte(id), data); err != nil {
				return err
			}
		}

		if dim != x.schema.Dimension {
			updated := x.schema
			updated.Dimension = dim
			return writeSchema(tx, updated)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write entries: %w", err)
	}

	for _, id := range order {
		x.table.DeleteDoc(id)
	}
	for i, e := range entries {
		x.table.Put(seqs[i], e)
	}
	x.schema.Dimension = dim
	return nil
}

// DeleteByDocument removes all entries of a document. Unknown IDs are a no-op.
func (x *BoltIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	err := x.db.Update(func(tx *bbolt.Tx) error {
		return deleteDocEntries(tx.Bucket(bucketEntries), tx.Bucket(bucketDocEntries), documentID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete entries of %s: %w", documentID, err)
	}

	x.table.DeleteDoc(documentID)
	return nil
}

func (x *BoltIndex) Query(ctx context.Context, vector domain.Embedding, k int, scoreThreshold *float64) ([]domain.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.table.Query(vector, k, scoreThreshold)
}

func (x *BoltIndex) Count(ctx context.Context) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.table.Len(), nil
}

func (x *BoltIndex) Schema() domain.IndexSchema {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.schema
}

func deleteDocEntries(entries, docEntries *bbolt.Bucket, documentID string) error {
	data := docEntries.Get([]byte(documentID))
	if data == nil {
		return nil
	}
	var seqs []uint64
	if err := json.Unmarshal(data, &seqs); err != nil {
		return fmt.Errorf("corrupt entry list for %s: %w", documentID, err)
	}
	for _, seq := range seqs {
		if err := entries.Delete(seqKey(seq)); err != nil {
			return err
		}
	}
	return docEntries.Delete([]byte(documentID))
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}

func newStoredEntry(e domain.IndexEntry) storedEntry {
	return storedEntry{
		ChunkID:    e.Chunk.ID,
		DocumentID: e.Chunk.DocumentID,
		Filename:   e.Metadata.Filename,
		Position:   e.Chunk.Position,
		Text:       e.Chunk.Text,
		Start:      e.Chunk.Start,
		End:        e.Chunk.End,
		Vector:     encodeVector(e.Embedding),
	}
}

func (s storedEntry) toEntry() domain.IndexEntry {
	return domain.IndexEntry{
		Chunk: domain.Chunk{
			ID:         s.ChunkID,
			DocumentID: s.DocumentID,
			Position:   s.Position,
			Text:       s.Text,
			Start:      s.Start,
			End:        s.End,
		},
		Embedding: decodeVector(s.Vector),
		Metadata: domain.EntryMetadata{
			DocumentID: s.DocumentID,
			Filename:   s.Filename,
			Position:   s.Position,
		},
	}
}

// encodeVector packs float32 components little-endian.
func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
