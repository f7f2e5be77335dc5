// Package frontend turns an utterance's frame-level features into the
// (batch, channel, time) tensor the pooling layers consume.
package frontend

import (
	"fmt"

	"github.com/crimson-sun/timbre/internal/tensor"
)

// Frontend produces a (1, C, T) feature tensor from T feature frames.
type Frontend interface {
	// Extract maps T frames of fixed width to a (1, C, T) tensor.
	Extract(frames [][]float32) (*tensor.Tensor, error)

	// OutChannels returns C, the channel count of extracted tensors.
	OutChannels() int

	Close() error
}

// Identity passes precomputed features straight through: each frame is
// already the per-time-step feature vector, so extraction is a transpose
// from (T, F) frame-major to (1, F, T) channel-major.
type Identity struct {
	dim int
}

// NewIdentity creates an Identity frontend for frames of the given width.
func NewIdentity(dim int) (*Identity, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("frontend: feature dim must be positive, got %d", dim)
	}
	return &Identity{dim: dim}, nil
}

func (f *Identity) OutChannels() int { return f.dim }

func (f *Identity) Extract(frames [][]float32) (*tensor.Tensor, error) {
	t := len(frames)
	if t == 0 {
		return nil, fmt.Errorf("frontend: utterance has no frames")
	}
	out := tensor.New(1, f.dim, t)
	for k, frame := range frames {
		if len(frame) != f.dim {
			return nil, fmt.Errorf("frontend: frame %d has width %d, want %d", k, len(frame), f.dim)
		}
		for c, v := range frame {
			out.Data[c*t+k] = v
		}
	}
	return out, nil
}

func (f *Identity) Close() error { return nil }
