// Package testdata generates deterministic synthetic utterances for tests.
package testdata

import (
	"math"

	"github.com/crimson-sun/timbre/internal/model"
)

// Frames returns t frames of width dim filled with a smooth deterministic
// signal; seed shifts the phase so different utterances stay distinguishable.
func Frames(t, dim int, seed float64) [][]float32 {
	frames := make([][]float32, t)
	for k := range frames {
		frame := make([]float32, dim)
		for c := range frame {
			frame[c] = float32(math.Sin(seed + float64(k)*0.7 + float64(c)*1.3))
		}
		frames[k] = frame
	}
	return frames
}

// Utterance returns a synthetic utterance with the given ID.
func Utterance(id string, t, dim int, seed float64) model.Utterance {
	return model.Utterance{ID: id, Frames: Frames(t, dim, seed)}
}
