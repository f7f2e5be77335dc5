// Package enroll maintains the roster of enrolled speakers. A profile is the
// running mean of the embeddings enrolled for that speaker.
package enroll

import (
	"fmt"
	"sync"

	"github.com/crimson-sun/timbre/internal/model"
)

// Roster is a concurrency-safe registry of speaker profiles.
type Roster struct {
	mu       sync.RWMutex
	profiles map[string]*model.SpeakerProfile
	order    []string // enrollment order, for stable Profiles() output
	dim      int
}

// New creates an empty roster for embeddings of the given dimensionality.
func New(dim int) *Roster {
	return &Roster{profiles: make(map[string]*model.SpeakerProfile), dim: dim}
}

// Enroll folds an embedding into the named speaker's profile, creating the
// profile on first enrollment.
func (r *Roster) Enroll(name string, embedding []float32) error {
	if name == "" {
		return fmt.Errorf("enroll: speaker name must not be empty")
	}
	if len(embedding) != r.dim {
		return fmt.Errorf("enroll: embedding dim %d does not match roster dim %d", len(embedding), r.dim)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[name]
	if !ok {
		vec := make([]float32, r.dim)
		copy(vec, embedding)
		r.profiles[name] = &model.SpeakerProfile{Name: name, Vector: vec, Count: 1}
		r.order = append(r.order, name)
		return nil
	}

	// Running mean: v ← v + (x − v)/(n+1).
	p.Count++
	inv := 1 / float32(p.Count)
	for i, v := range embedding {
		p.Vector[i] += (v - p.Vector[i]) * inv
	}
	return nil
}

// Profiles returns a snapshot of all profiles in enrollment order.
func (r *Roster) Profiles() []model.SpeakerProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.SpeakerProfile, 0, len(r.order))
	for _, name := range r.order {
		p := r.profiles[name]
		vec := make([]float32, len(p.Vector))
		copy(vec, p.Vector)
		out = append(out, model.SpeakerProfile{Name: p.Name, Vector: vec, Count: p.Count})
	}
	return out
}

// Len returns the number of enrolled speakers.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}
