package otel_test

import (
	"context"
	"path/filepath"
	"testing"

	adapter "github.com/neomorfeo/schooldesk/internal/adapter/otel"
	"github.com/neomorfeo/schooldesk/internal/adapter/sqlite"
)

func TestOpenDB_TracesStatements(t *testing.T) {
	exporter := setupTestTracer(t)

	db, err := adapter.OpenDB(filepath.Join(t.TempDir(), "schooldesk.db"))
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	store, err := sqlite.NewFromDB(db)
	if err != nil {
		t.Fatalf("NewFromDB failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	exporter.Reset()
	if _, err := store.NextCode(context.Background()); err != nil {
		t.Fatalf("NextCode failed: %v", err)
	}

	if len(exporter.GetSpans()) == 0 {
		t.Error("expected SQL spans from the instrumented driver")
	}
}
