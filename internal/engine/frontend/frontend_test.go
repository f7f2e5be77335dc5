package frontend

import "testing"

func TestIdentityExtract(t *testing.T) {
	f, err := NewIdentity(2)
	if err != nil {
		t.Fatal(err)
	}
	if f.OutChannels() != 2 {
		t.Fatalf("OutChannels = %d, want 2", f.OutChannels())
	}

	// 3 frames of width 2 → (1, 2, 3) channel-major.
	frames := [][]float32{{1, 10}, {2, 20}, {3, 30}}
	x, err := f.Extract(frames)
	if err != nil {
		t.Fatal(err)
	}

	if x.Rank() != 3 || x.Dim(0) != 1 || x.Dim(1) != 2 || x.Dim(2) != 3 {
		t.Fatalf("shape %v, want [1 2 3]", x.Shape)
	}
	want := []float32{1, 2, 3, 10, 20, 30}
	for i := range want {
		if x.Data[i] != want[i] {
			t.Errorf("data[%d] = %f, want %f", i, x.Data[i], want[i])
		}
	}
}

func TestIdentityExtract_Errors(t *testing.T) {
	f, err := NewIdentity(3)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Extract(nil); err == nil {
		t.Error("expected error for empty utterance")
	}
	if _, err := f.Extract([][]float32{{1, 2}}); err == nil {
		t.Error("expected error for wrong frame width")
	}
	if _, err := NewIdentity(0); err == nil {
		t.Error("expected error for non-positive dim")
	}
}
