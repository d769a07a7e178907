package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"iter"
	"unicode"

	"docsearch/internal/domain"
)

// CharChunker splits document text into overlapping windows of at most
// MaxChars runes, preferring sentence and whitespace boundaries.
type CharChunker struct{}

func NewCharChunker() *CharChunker {
	return &CharChunker{}
}

// Chunk binds the segments of doc.Text to the document with dense positions.
func (c *CharChunker) Chunk(doc domain.Document, cfg domain.ChunkConfig) ([]domain.Chunk, error) {
	segments, err := Segments(doc.Text, cfg.MaxChars, cfg.OverlapChars)
	if err != nil {
		return nil, err
	}

	var chunks []domain.Chunk
	for seg := range segments {
		position := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:         generateChunkID(doc.ID, position),
			DocumentID: doc.ID,
			Position:   position,
			Text:       seg.Text,
			Start:      seg.Start,
			End:        seg.End,
		})
	}
	return chunks, nil
}

// Validate checks chunker settings.
func Validate(maxChars, overlapChars int) error {
	if maxChars <= 0 {
		return &domain.ConfigurationError{Field: "max_chars", Reason: fmt.Sprintf("must be positive, got %d", maxChars)}
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		return &domain.ConfigurationError{
			Field:  "overlap_chars",
			Reason: fmt.Sprintf("must be in [0, %d), got %d", maxChars, overlapChars),
		}
	}
	return nil
}

// Segments returns a lazy, restartable sequence of segments covering text.
// Offsets are in runes.
func Segments(text string, maxChars, overlapChars int) (iter.Seq[domain.Segment], error) {
	if err := Validate(maxChars, overlapChars); err != nil {
		return nil, err
	}

	lookback := max(1, maxChars/10)

	return func(yield func(domain.Segment) bool) {
		runes := []rune(text)
		n := len(runes)
		start := 0
		for start < n {
			end := start + maxChars
			if end >= n {
				yield(domain.Segment{Text: string(runes[start:n]), Start: start, End: n})
				return
			}

			cut := findCut(runes, start+overlapChars, end, lookback)
			if !yield(domain.Segment{Text: string(runes[start:cut]), Start: start, End: cut}) {
				return
			}
			start = cut - overlapChars
		}
	}, nil
}

// Split collects Segments into a slice.
func Split(text string, maxChars, overlapChars int) ([]domain.Segment, error) {
	segments, err := Segments(text, maxChars, overlapChars)
	if err != nil {
		return nil, err
	}
	var out []domain.Segment
	for seg := range segments {
		out = append(out, seg)
	}
	return out, nil
}

// findCut picks the exclusive end of a segment in (floor, end]. Within the
// lookback window it prefers, in order, the end of a paragraph break, the
// end of a line, a sentence end and whitespace. Otherwise it cuts hard at
// end. runes[end] must exist.
func findCut(runes []rune, floor, end, lookback int) int {
	lowest := max(end-lookback+1, floor+1)

	for c := end; c >= lowest; c-- {
		if c >= 2 && runes[c-1] == '\n' && runes[c-2] == '\n' {
			return c
		}
	}
	for c := end; c >= lowest; c-- {
		if runes[c-1] == '\n' {
			return c
		}
	}
	for c := end; c >= lowest; c-- {
		if isSentenceEnd(runes[c-1]) && unicode.IsSpace(runes[c]) {
			return c
		}
	}
	for c := end; c >= lowest; c-- {
		if unicode.IsSpace(runes[c]) {
			return c
		}
	}
	return end
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func generateChunkID(docID string, position int) string {
	data := fmt.Sprintf("%s:%d", docID, position)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:8])
}
