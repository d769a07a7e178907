package embedding

import (
	"context"
	"sync"

	"docsearch/internal/domain"
)

// scriptedProvider returns queued errors before succeeding with fixed vectors.
type scriptedProvider struct {
	mu     sync.Mutex
	errs   []error
	calls  int
	vector domain.Embedding
}

func (p *scriptedProvider) next() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.errs) == 0 {
		return nil
	}
	err := p.errs[0]
	p.errs = p.errs[1:]
	return err
}

func (p *scriptedProvider) EmbedBatch(ctx context.Context, texts []string) ([]domain.Embedding, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	out := make([]domain.Embedding, len(texts))
	for i := range out {
		out[i] = p.vector
	}
	return out, nil
}

func (p *scriptedProvider) EmbedQuery(ctx context.Context, text string) (domain.Embedding, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	return p.vector, nil
}

func (p *scriptedProvider) Dimension() int { return len(p.vector) }

func (p *scriptedProvider) ModelName() string { return "scripted" }
