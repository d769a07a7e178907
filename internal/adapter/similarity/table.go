package similarity

import (
	"container/heap"
	"fmt"

	"docsearch/internal/domain"
)

// Table is the in-memory search structure shared by the index backends.
// Entries are keyed by a monotonically increasing insertion sequence, which
// also breaks score ties. Table is not safe for concurrent use; callers
// hold their own lock.
type Table struct {
	dimension int
	nextSeq   uint64
	entries   map[uint64]row
	byDoc     map[string][]uint64
}

type row struct {
	entry  domain.IndexEntry
	normed []float32
}

// NewTable creates a table. A dimension of 0 is established by the first Put.
func NewTable(dimension int) *Table {
	return &Table{
		dimension: dimension,
		entries:   make(map[uint64]row),
		byDoc:     make(map[string][]uint64),
	}
}

func (t *Table) Dimension() int { return t.dimension }

func (t *Table) Len() int { return len(t.entries) }

func (t *Table) DocumentCount() int { return len(t.byDoc) }

// NextSeq returns the sequence the next Put should use.
func (t *Table) NextSeq() uint64 { return t.nextSeq }

// Validate checks that every entry has the same length and that it matches
// the table dimension once established. It returns the dimension the table
// will have after the batch is inserted.
func (t *Table) Validate(entries []domain.IndexEntry) (int, error) {
	dim := t.dimension
	for _, e := range entries {
		if dim == 0 {
			dim = len(e.Embedding)
			if dim == 0 {
				return 0, fmt.Errorf("empty embedding for chunk %s: %w", e.Chunk.ID, domain.ErrDimensionMismatch)
			}
			continue
		}
		if len(e.Embedding) != dim {
			return 0, &domain.DimensionMismatchError{Expected: dim, Got: len(e.Embedding)}
		}
	}
	return dim, nil
}

// Put stores an entry under seq. The caller must have validated it.
func (t *Table) Put(seq uint64, e domain.IndexEntry) {
	if t.dimension == 0 {
		t.dimension = len(e.Embedding)
	}
	docID := e.Chunk.DocumentID
	t.entries[seq] = row{entry: e, normed: Normalize(e.Embedding)}
	t.byDoc[docID] = append(t.byDoc[docID], seq)
	if seq >= t.nextSeq {
		t.nextSeq = seq + 1
	}
}

// DeleteDoc removes every entry of a document and returns their sequences.
func (t *Table) DeleteDoc(documentID string) []uint64 {
	seqs := t.byDoc[documentID]
	for _, seq := range seqs {
		delete(t.entries, seq)
	}
	delete(t.byDoc, documentID)
	return seqs
}

// Reset drops all entries and sets the dimension; 0 leaves it to the next Put.
func (t *Table) Reset(dimension int) {
	t.dimension = dimension
	t.nextSeq = 0
	t.entries = make(map[uint64]row)
	t.byDoc = make(map[string][]uint64)
}

// Query ranks by cosine similarity and returns at most k results in
// descending score order; equal scores keep insertion order. Entries
// scoring below threshold, when set, are skipped.
func (t *Table) Query(vector []float32, k int, threshold *float64) ([]domain.SearchResult, error) {
	results := []domain.SearchResult{}
	if len(t.entries) == 0 || k <= 0 {
		return results, nil
	}
	if len(vector) != t.dimension {
		return nil, &domain.DimensionMismatchError{Expected: t.dimension, Got: len(vector)}
	}

	q := Normalize(vector)
	h := make(candidateHeap, 0, min(k, len(t.entries)))
	for seq, r := range t.entries {
		score := dot(q, r.normed)
		if threshold != nil && score < *threshold {
			continue
		}
		c := candidate{seq: seq, score: score}
		if h.Len() < k {
			heap.Push(&h, c)
			continue
		}
		if worse(h[0], c) {
			h[0] = c
			heap.Fix(&h, 0)
		}
	}

	ranked := make([]candidate, h.Len())
	for i := len(ranked) - 1; i >= 0; i-- {
		ranked[i] = heap.Pop(&h).(candidate)
	}

	results = make([]domain.SearchResult, 0, len(ranked))
	for _, c := range ranked {
		e := t.entries[c.seq].entry
		results = append(results, domain.SearchResult{
			ChunkID:  e.Chunk.ID,
			Text:     e.Chunk.Text,
			Metadata: e.Metadata,
			Score:    c.score,
			Start:    e.Chunk.Start,
			End:      e.Chunk.End,
		})
	}
	return results, nil
}

type candidate struct {
	seq   uint64
	score float64
}

// worse reports whether a ranks below b.
func worse(a, b candidate) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	return a.seq > b.seq
}

// candidateHeap is a min-heap with the worst candidate on top.
type candidateHeap []candidate

func (h candidateHeap) Len() int           { return len(h) }
func (h candidateHeap) Less(i, j int) bool { return worse(h[i], h[j]) }
func (h candidateHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *candidateHeap) Push(x any) { *h = append(*h, x.(candidate)) }

func (h *candidateHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
