// Package engine orchestrates the extract → pool → score pipeline that turns
// an utterance's feature frames into an embedding record.
package engine

import (
	"fmt"
	"time"

	"github.com/crimson-sun/timbre/internal/engine/enroll"
	"github.com/crimson-sun/timbre/internal/engine/frontend"
	"github.com/crimson-sun/timbre/internal/engine/pool"
	"github.com/crimson-sun/timbre/internal/engine/scoring"
	"github.com/crimson-sun/timbre/internal/model"
)

// Engine drives a frontend, a pooler, and optional speaker scoring.
type Engine struct {
	frontend   frontend.Frontend
	pooler     pool.Pooler
	poolerKind string
	roster     *enroll.Roster
	scorer     *scoring.Scorer
}

// New creates an Engine. The frontend's channel count must match what the
// pooler was configured for, so the mismatch surfaces here instead of on the
// first utterance.
func New(fe frontend.Frontend, p pool.Pooler, kind string, roster *enroll.Roster, scorer *scoring.Scorer) (*Engine, error) {
	if fe == nil || p == nil {
		return nil, fmt.Errorf("engine: frontend and pooler are required")
	}
	return &Engine{
		frontend:   fe,
		pooler:     p,
		poolerKind: kind,
		roster:     roster,
		scorer:     scorer,
	}, nil
}

// OutDim returns the embedding dimensionality, known before any utterance is
// processed.
func (e *Engine) OutDim() int { return e.pooler.OutDim() }

// Embed extracts and pools one utterance into a flat embedding vector.
func (e *Engine) Embed(frames [][]float32) ([]float32, error) {
	x, err := e.frontend.Extract(frames)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	out, err := e.pooler.Forward(x)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return out.Data, nil
}

// Process embeds one utterance and, when speakers are enrolled, scores it
// against the roster.
func (e *Engine) Process(u model.Utterance) (model.EmbeddingRecord, error) {
	vec, err := e.Embed(u.Frames)
	if err != nil {
		return model.EmbeddingRecord{}, err
	}

	rec := model.EmbeddingRecord{
		ID:        u.ID,
		Timestamp: u.Timestamp,
		Pooler:    e.poolerKind,
		Dim:       e.pooler.OutDim(),
		Embedding: vec,
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	if e.scorer != nil && e.roster != nil && e.roster.Len() > 0 {
		m := e.scorer.Score(vec, e.roster.Profiles())
		rec.Speaker = m.Speaker
		rec.Score = m.Score
	}
	return rec, nil
}

// ProcessBatch embeds a slice of utterances.
func (e *Engine) ProcessBatch(us []model.Utterance) ([]model.EmbeddingRecord, error) {
	records := make([]model.EmbeddingRecord, 0, len(us))
	for _, u := range us {
		rec, err := e.Process(u)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Enroll embeds an utterance and folds the result into the named speaker's
// profile.
func (e *Engine) Enroll(name string, frames [][]float32) error {
	if e.roster == nil {
		return fmt.Errorf("engine: no roster configured")
	}
	vec, err := e.Embed(frames)
	if err != nil {
		return err
	}
	return e.roster.Enroll(name, vec)
}

// Close releases the frontend's resources.
func (e *Engine) Close() error {
	return e.frontend.Close()
}
