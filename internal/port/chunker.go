package port

import "docsearch/internal/domain"

type Chunker interface {
	Chunk(doc domain.Document, cfg domain.ChunkConfig) ([]domain.Chunk, error)
}
