package domain

import (
	"sort"
	"time"
)

// Document is a unit of upload. It only exists during ingestion; afterwards
// its trace is the DocumentID carried by every chunk and its registry record.
type Document struct {
	ID         string
	Filename   string
	Text       string
	UploadedAt time.Time
	// SizeBytes is the size of the original upload; 0 means len(Text).
	SizeBytes int
}

// Chunk is a contiguous span of a document's text. Start and End are rune
// offsets into the document text, half-open.
type Chunk struct {
	ID         string
	DocumentID string
	Position   int
	Text       string
	Start      int
	End        int
}

// Segment is a chunker output before it is bound to a document.
type Segment struct {
	Text  string
	Start int
	End   int
}

// Embedding is a fixed-length vector produced by a single model.
type Embedding []float32

// ChunkConfig controls the character chunker.
type ChunkConfig struct {
	MaxChars     int
	OverlapChars int
}

type EntryMetadata struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename"`
	Position   int    `json:"position"`
}

// IndexEntry is what the vector index stores per chunk.
type IndexEntry struct {
	Chunk     Chunk
	Embedding Embedding
	Metadata  EntryMetadata
}

// SearchResult is produced per query and never persisted.
type SearchResult struct {
	ChunkID  string        `json:"chunk_id"`
	Text     string        `json:"text"`
	Metadata EntryMetadata `json:"metadata"`
	Score    float64       `json:"score"`
	Start    int           `json:"start"`
	End      int           `json:"end"`
}

// IndexSchema tags an index with the model and dimension that produced it.
// Dimension 0 means not yet established.
type IndexSchema struct {
	Version   int    `json:"version"`
	Model     string `json:"model"`
	Dimension int    `json:"dimension"`
}

// DocumentRecord is the catalogue entry kept for every ingested document.
type DocumentRecord struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	UploadedAt time.Time `json:"upload_date"`
	ChunkCount int       `json:"chunk_count"`
	SizeBytes  int       `json:"file_size"`
}

type IndexStats struct {
	Documents int         `json:"total_documents"`
	Chunks    int         `json:"total_chunks"`
	Schema    IndexSchema `json:"schema"`
	Status    string      `json:"status"`
}

// SortNewestFirst orders records by upload time, newest first, then by ID.
func SortNewestFirst(recs []DocumentRecord) {
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].UploadedAt.Equal(recs[j].UploadedAt) {
			return recs[i].UploadedAt.After(recs[j].UploadedAt)
		}
		return recs[i].ID < recs[j].ID
	})
}
