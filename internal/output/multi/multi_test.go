package multi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crimson-sun/timbre/internal/model"
)

// mockOutput records calls for test assertions.
type mockOutput struct {
	records []model.EmbeddingRecord
	closed  bool
	err     error // if set, Write returns this error
}

func (m *mockOutput) Write(_ context.Context, rec model.EmbeddingRecord) error {
	m.records = append(m.records, rec)
	return m.err
}

func (m *mockOutput) Close() error {
	m.closed = true
	return m.err
}

func testRecord(id, speaker string) model.EmbeddingRecord {
	return model.EmbeddingRecord{
		ID:        id,
		Timestamp: time.Now(),
		Pooler:    "ASTP",
		Dim:       4,
		Speaker:   speaker,
	}
}

func TestFanOutDeliversToAll(t *testing.T) {
	a := &mockOutput{}
	b := &mockOutput{}
	c := &mockOutput{}
	m := New(a, b, c)

	rec := testRecord("utt-1", "alice")
	if err := m.Write(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, out := range []*mockOutput{a, b, c} {
		if len(out.records) != 1 {
			t.Errorf("output %d: got %d records, want 1", i, len(out.records))
		}
		if out.records[0].Speaker != "alice" {
			t.Errorf("output %d: got speaker %q, want %q", i, out.records[0].Speaker, "alice")
		}
	}
}

func TestErrorDoesNotPreventDelivery(t *testing.T) {
	failing := &mockOutput{err: errors.New("disk full")}
	healthy := &mockOutput{}
	m := New(failing, healthy)

	rec := testRecord("utt-2", "bob")
	err := m.Write(context.Background(), rec)
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	// Healthy output still received the record despite earlier failure.
	if len(healthy.records) != 1 {
		t.Fatalf("healthy output got %d records, want 1", len(healthy.records))
	}

	// Failing output also received the call (error returned after).
	if len(failing.records) != 1 {
		t.Fatalf("failing output got %d records, want 1", len(failing.records))
	}
}

func TestCloseCallsAllOutputs(t *testing.T) {
	a := &mockOutput{}
	b := &mockOutput{}
	m := New(a, b)

	if err := m.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !a.closed || !b.closed {
		t.Errorf("Close not called on all outputs: a=%v b=%v", a.closed, b.closed)
	}
}

func TestCloseCollectsErrors(t *testing.T) {
	a := &mockOutput{err: errors.New("err-a")}
	b := &mockOutput{err: errors.New("err-b")}
	m := New(a, b)

	err := m.Close()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !a.closed || !b.closed {
		t.Error("Close should be called on all outputs even when errors occur")
	}
}

func TestSingleOutputIdentity(t *testing.T) {
	inner := &mockOutput{}
	m := New(inner)

	rec := testRecord("utt-3", "carol")
	if err := m.Write(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(inner.records) != 1 || inner.records[0].Speaker != "carol" {
		t.Error("single-output Multi did not behave identically to wrapped output")
	}
	if !inner.closed {
		t.Error("single-output Multi did not close inner output")
	}
}
