package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{"json info", "info", "json", false},
		{"console debug", "debug", "console", false},
		{"default format", "warn", "", false},
		{"bad level", "loud", "json", true},
		{"bad format", "info", "xml", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, err := New(tt.level, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && l == nil {
				t.Error("expected logger")
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	base := zap.NewExample()
	if got := FromContext(context.Background(), base); got != base {
		t.Error("expected fallback when context has no logger")
	}
	if got := FromContext(context.Background(), nil); got == nil {
		t.Error("expected nop logger")
	}

	scoped := base.With(zap.String("request_id", "r1"))
	ctx := ContextWithLogger(context.Background(), scoped)
	if got := FromContext(ctx, base); got != scoped {
		t.Error("expected scoped logger from context")
	}
}
