package domain

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration        = errors.New("invalid configuration")
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	ErrDimensionMismatch    = errors.New("dimension mismatch")
	ErrIngestionFailed      = errors.New("ingestion failed")
	ErrInvalidQuery         = errors.New("invalid query")
	ErrDocumentNotFound     = errors.New("document not found")
	ErrUnsupportedFormat    = errors.New("unsupported format")
)

// ConfigurationError reports a rejected setting.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// EmbeddingUnavailableError wraps a provider failure. Transient failures
// (network, rate limit, 5xx, deadline) may be retried.
type EmbeddingUnavailableError struct {
	Reason    string
	Transient bool
	Err       error
}

func (e *EmbeddingUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("embedding provider unavailable: %s: %v", e.Reason, e.Err)
	}
	return "embedding provider unavailable: " + e.Reason
}

func (e *EmbeddingUnavailableError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrEmbeddingUnavailable, e.Err}
	}
	return []error{ErrEmbeddingUnavailable}
}

type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

func (e *DimensionMismatchError) Unwrap() error { return ErrDimensionMismatch }

// SchemaMismatchError is raised when a persisted index was built with a
// different model, dimension or schema version than the one configured.
type SchemaMismatchError struct {
	Stored     IndexSchema
	Configured IndexSchema
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("index schema mismatch: stored v%d %s/%d, configured v%d %s/%d; reset the index and re-ingest",
		e.Stored.Version, e.Stored.Model, e.Stored.Dimension,
		e.Configured.Version, e.Configured.Model, e.Configured.Dimension)
}

func (e *SchemaMismatchError) Unwrap() error { return ErrDimensionMismatch }

// IngestionFailedError means the document is absent from the index.
type IngestionFailedError struct {
	DocumentID string
	Reason     string
	Err        error
}

func (e *IngestionFailedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingestion of %s failed: %s: %v", e.DocumentID, e.Reason, e.Err)
	}
	return fmt.Sprintf("ingestion of %s failed: %s", e.DocumentID, e.Reason)
}

func (e *IngestionFailedError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrIngestionFailed, e.Err}
	}
	return []error{ErrIngestionFailed}
}

type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string { return "invalid query: " + e.Reason }

func (e *InvalidQueryError) Unwrap() error { return ErrInvalidQuery }

// IsTransient reports whether err is an embedding failure worth retrying.
func IsTransient(err error) bool {
	var ee *EmbeddingUnavailableError
	return errors.As(err, &ee) && ee.Transient
}
