package logging_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"redub/internal/logging"
	"redub/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "redub.log")
	logger, err := logging.New(logging.Options{
		Level:       "debug",
		Format:      "json",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hello", logging.String("k", "v"))
	// File creation is the observable effect; content flushing is synchronous.
	if _, err := filepath.Glob(path); err != nil {
		t.Fatalf("glob: %v", err)
	}
}

func TestWithContextAddsStandardFields(t *testing.T) {
	ctx := services.WithJobID(context.Background(), 7)
	ctx = services.WithStage(ctx, "enhance")
	ctx = services.WithLane(ctx, "produce")

	fields := logging.ContextFields(ctx)
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Key)
	}
	joined := strings.Join(keys, ",")
	for _, want := range []string{logging.FieldJobID, logging.FieldStage, logging.FieldLane} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %s in context fields, got %v", want, keys)
		}
	}
}
