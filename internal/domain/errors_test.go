package domain

import (
	"context"
	"errors"
	"testing"
)

func TestIngestionFailedError_MatchesSentinelAndCause(t *testing.T) {
	cause := &EmbeddingUnavailableError{Reason: "boom", Transient: true}
	err := &IngestionFailedError{DocumentID: "d1", Reason: "embedding", Err: cause}

	if !errors.Is(err, ErrIngestionFailed) {
		t.Error("expected ErrIngestionFailed")
	}
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Error("expected cause to be reachable")
	}
	var ee *EmbeddingUnavailableError
	if !errors.As(err, &ee) || !ee.Transient {
		t.Error("expected errors.As to find the transient embedding error")
	}
}

func TestSchemaMismatch_IsDimensionMismatch(t *testing.T) {
	err := &SchemaMismatchError{
		Stored:     IndexSchema{Version: 1, Model: "a", Dimension: 3},
		Configured: IndexSchema{Version: 1, Model: "b", Dimension: 3},
	}
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Error("expected ErrDimensionMismatch")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transient", &EmbeddingUnavailableError{Transient: true}, true},
		{"permanent", &EmbeddingUnavailableError{Transient: false}, false},
		{"other", context.Canceled, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestErrorMessages(t *testing.T) {
	cfgErr := &ConfigurationError{Field: "chunking.max_chars", Reason: "must be positive"}
	if cfgErr.Error() != "invalid configuration: chunking.max_chars: must be positive" {
		t.Errorf("unexpected message: %s", cfgErr.Error())
	}
	if !errors.Is(cfgErr, ErrConfiguration) {
		t.Error("expected ErrConfiguration")
	}

	dimErr := &DimensionMismatchError{Expected: 3, Got: 2}
	if dimErr.Error() != "dimension mismatch: expected 3, got 2" {
		t.Errorf("unexpected message: %s", dimErr.Error())
	}
}
