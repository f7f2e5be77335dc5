// Package tensor provides the flat row-major float32 tensor passed between
// the frontend and the pooling layers. The time axis is always last (and
// therefore fastest in memory), which makes the channel/frequency merge a
// pure reshape.
package tensor

import "fmt"

// Tensor is a dense row-major float32 array with an explicit shape.
type Tensor struct {
	Data  []float32
	Shape []int
}

// New allocates a zero-filled tensor with the given shape.
func New(shape ...int) *Tensor {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return &Tensor{Data: make([]float32, n), Shape: shape}
}

// FromSlice wraps an existing flat slice. The slice is not copied; its length
// must match the product of the shape.
func FromSlice(data []float32, shape ...int) (*Tensor, error) {
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return nil, fmt.Errorf("tensor: non-positive dimension in shape %v", shape)
		}
		n *= d
	}
	if len(data) != n {
		return nil, fmt.Errorf("tensor: data length %d does not match shape %v", len(data), shape)
	}
	return &Tensor{Data: data, Shape: shape}, nil
}

// Rank returns the number of axes.
func (t *Tensor) Rank() int { return len(t.Shape) }

// Dim returns the size of axis i.
func (t *Tensor) Dim(i int) int { return t.Shape[i] }

// Numel returns the total number of elements.
func (t *Tensor) Numel() int {
	n := 1
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// MergeChannelFreq normalizes a (B,C,F,T) tensor to (B,C*F,T) by merging the
// channel and frequency axes. Rank-3 input passes through unchanged. Because
// time is the fastest axis the merge shares the underlying data.
func (t *Tensor) MergeChannelFreq() (*Tensor, error) {
	switch t.Rank() {
	case 3:
		return t, nil
	case 4:
		b, c, f, tt := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
		return &Tensor{Data: t.Data, Shape: []int{b, c * f, tt}}, nil
	default:
		return nil, fmt.Errorf("tensor: expected rank 3 or 4 input, got rank %d", t.Rank())
	}
}
