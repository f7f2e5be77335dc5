package enroll

import (
	"math"
	"testing"
)

func TestEnroll_RunningMean(t *testing.T) {
	r := New(2)

	if err := r.Enroll("alice", []float32{1, 3}); err != nil {
		t.Fatal(err)
	}
	if err := r.Enroll("alice", []float32{3, 5}); err != nil {
		t.Fatal(err)
	}

	profiles := r.Profiles()
	if len(profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(profiles))
	}
	p := profiles[0]
	if p.Count != 2 {
		t.Errorf("count = %d, want 2", p.Count)
	}
	if math.Abs(float64(p.Vector[0]-2)) > 1e-5 || math.Abs(float64(p.Vector[1]-4)) > 1e-5 {
		t.Errorf("mean vector = %v, want [2 4]", p.Vector)
	}
}

func TestEnroll_Validation(t *testing.T) {
	r := New(2)
	if err := r.Enroll("", []float32{1, 2}); err == nil {
		t.Error("expected error for empty name")
	}
	if err := r.Enroll("alice", []float32{1}); err == nil {
		t.Error("expected error for wrong dim")
	}
}

func TestProfiles_SnapshotIsolation(t *testing.T) {
	r := New(1)
	if err := r.Enroll("alice", []float32{1}); err != nil {
		t.Fatal(err)
	}

	snap := r.Profiles()
	snap[0].Vector[0] = 99

	if got := r.Profiles()[0].Vector[0]; got != 1 {
		t.Errorf("mutating a snapshot leaked into the roster: %f", got)
	}
}

func TestProfiles_Order(t *testing.T) {
	r := New(1)
	for _, name := range []string{"c", "a", "b"} {
		if err := r.Enroll(name, []float32{1}); err != nil {
			t.Fatal(err)
		}
	}
	got := r.Profiles()
	want := []string{"c", "a", "b"}
	for i, p := range got {
		if p.Name != want[i] {
			t.Fatalf("profiles out of enrollment order: %v", got)
		}
	}
}
