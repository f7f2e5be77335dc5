package tensor

import "testing"

func TestFromSlice_ShapeMismatch(t *testing.T) {
	if _, err := FromSlice([]float32{1, 2, 3}, 2, 2); err == nil {
		t.Fatal("expected error for mismatched data length")
	}
	if _, err := FromSlice([]float32{}, 0, 3); err == nil {
		t.Fatal("expected error for zero dimension")
	}
}

func TestMergeChannelFreq(t *testing.T) {
	// (1,2,3,4) → (1,6,4), data shared and untouched.
	data := make([]float32, 24)
	for i := range data {
		data[i] = float32(i)
	}
	x, err := FromSlice(data, 1, 2, 3, 4)
	if err != nil {
		t.Fatal(err)
	}

	m, err := x.MergeChannelFreq()
	if err != nil {
		t.Fatal(err)
	}
	if m.Rank() != 3 || m.Dim(0) != 1 || m.Dim(1) != 6 || m.Dim(2) != 4 {
		t.Fatalf("unexpected merged shape %v", m.Shape)
	}
	if &m.Data[0] != &data[0] {
		t.Error("merge should share underlying data")
	}
}

func TestMergeChannelFreq_Rank3Passthrough(t *testing.T) {
	x := New(2, 3, 5)
	m, err := x.MergeChannelFreq()
	if err != nil {
		t.Fatal(err)
	}
	if m != x {
		t.Error("rank-3 input should pass through unchanged")
	}
}

func TestMergeChannelFreq_BadRank(t *testing.T) {
	if _, err := New(2, 3).MergeChannelFreq(); err == nil {
		t.Fatal("expected error for rank-2 input")
	}
	if _, err := New(1, 2, 3, 4, 5).MergeChannelFreq(); err == nil {
		t.Fatal("expected error for rank-5 input")
	}
}
