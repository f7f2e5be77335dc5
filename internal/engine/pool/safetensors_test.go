package pool

import (
	"path/filepath"
	"testing"
)

func TestSafetensorsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "astp.safetensors")

	src, err := NewASTP(Config{InDim: 4, BottleneckDim: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := SaveParameters(path, src.Parameters()); err != nil {
		t.Fatal(err)
	}

	// A fresh pooler has different random weights; loading must make its
	// forward pass agree with the source bit-for-bit.
	dst, err := NewASTP(Config{InDim: 4, BottleneckDim: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := LoadParameters(path, dst.Parameters()); err != nil {
		t.Fatal(err)
	}

	x := randomInput(t, 2, 4, 5, 53)
	a, err := src.Forward(x)
	if err != nil {
		t.Fatal(err)
	}
	b, err := dst.Forward(x)
	if err != nil {
		t.Fatal(err)
	}
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			t.Fatalf("forward diverges at %d after checkpoint load", i)
		}
	}
}

func TestLoadParameters_MissingTensor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.safetensors")

	p, err := NewTAP(Config{InDim: 4})
	if err != nil {
		t.Fatal(err)
	}
	// TAP has no parameters; the file will contain nothing.
	if err := SaveParameters(path, p.Parameters()); err != nil {
		t.Fatal(err)
	}

	astp, err := NewASTP(Config{InDim: 4})
	if err != nil {
		t.Fatal(err)
	}
	if err := LoadParameters(path, astp.Parameters()); err == nil {
		t.Fatal("expected error for missing tensors")
	}
}

func TestLoadParameters_ShapeMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shape.safetensors")

	small, err := NewASTP(Config{InDim: 4, BottleneckDim: 2})
	if err != nil {
		t.Fatal(err)
	}
	if err := SaveParameters(path, small.Parameters()); err != nil {
		t.Fatal(err)
	}

	big, err := NewASTP(Config{InDim: 4, BottleneckDim: 8})
	if err != nil {
		t.Fatal(err)
	}
	if err := LoadParameters(path, big.Parameters()); err == nil {
		t.Fatal("expected error for mismatched shapes")
	}
}
