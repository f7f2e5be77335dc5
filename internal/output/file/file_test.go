package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crimson-sun/timbre/internal/model"
	"github.com/crimson-sun/timbre/internal/output"
)

func testRecord(id, speaker string) model.EmbeddingRecord {
	return model.EmbeddingRecord{
		ID:        id,
		Timestamp: time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC),
		Pooler:    "TSTP",
		Dim:       8,
		Embedding: []float32{1, 2, 3, 4, 5, 6, 7, 8},
		Speaker:   speaker,
		Score:     0.95,
	}
}

func TestWriteProducesValidNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	out, err := New(path, output.Standard)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := out.Write(context.Background(), testRecord("utt-1", "alice")); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	out.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5", len(lines))
	}
	for i, line := range lines {
		var rec model.EmbeddingRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Errorf("line %d: invalid JSON: %v", i, err)
		}
		if rec.Speaker != "alice" {
			t.Errorf("line %d: speaker = %q, want alice", i, rec.Speaker)
		}
	}
}

func TestRotationTriggersAtMaxSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.jsonl")

	// MaxSize of 150 bytes — each JSON line is ~120 bytes, so rotation after ~1 line.
	out, err := New(path, output.Standard, WithMaxSize(150))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	for i := 0; i < 5; i++ {
		if err := out.Write(context.Background(), testRecord("utt-1", "bob")); err != nil {
			t.Fatalf("Write error: %v", err)
		}
	}
	out.Close()

	// Rotated file should exist.
	if _, err := os.Stat(path + ".1"); os.IsNotExist(err) {
		t.Error("expected rotated file .1 to exist")
	}

	// Current file should also exist and have data.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("current file stat error: %v", err)
	}
	if info.Size() == 0 {
		t.Error("current file is empty after rotation")
	}
}

func TestCloseFlushesData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	out, err := New(path, output.Standard)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	out.Write(context.Background(), testRecord("utt-9", "carol"))
	out.Close()

	data, _ := os.ReadFile(path)
	if len(data) == 0 {
		t.Error("file is empty — Close did not flush buffered data")
	}
}

func TestVerbosityMinimalStripsFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	out, err := New(path, output.Minimal)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	out.Write(context.Background(), testRecord("utt-2", "alice"))
	out.Close()

	data, _ := os.ReadFile(path)
	var rec map[string]any
	json.Unmarshal([]byte(strings.TrimSpace(string(data))), &rec)

	if _, ok := rec["embedding"]; ok {
		t.Error("Minimal verbosity should strip 'embedding' field")
	}
	if _, ok := rec["speaker"]; ok {
		t.Error("Minimal verbosity should strip 'speaker' field")
	}
}

func TestConcurrentWritesSafe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	out, err := New(path, output.Standard)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out.Write(context.Background(), testRecord("utt-n", "alice"))
		}()
	}
	wg.Wait()
	out.Close()

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 50 {
		t.Errorf("got %d lines, want 50", len(lines))
	}
}
