package timbre

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/crimson-sun/timbre/internal/engine"
	"github.com/crimson-sun/timbre/internal/engine/enroll"
	"github.com/crimson-sun/timbre/internal/engine/frontend"
	"github.com/crimson-sun/timbre/internal/engine/pool"
	"github.com/crimson-sun/timbre/internal/engine/scoring"
	"github.com/crimson-sun/timbre/internal/model"
)

// Unknown is the speaker name reported when no enrolled profile clears the
// identification threshold.
const Unknown = scoring.Unknown

// Timbre is a speaker embedding engine. It pools acoustic feature frames
// into fixed-size vectors and matches them against enrolled speakers.
// Safe for concurrent use.
type Timbre struct {
	engine *engine.Engine
}

// Match is an identification result: the best-matching enrolled speaker
// and its cosine similarity.
type Match struct {
	Speaker string
	Score   float64
}

// Record is one embedded utterance, the stable public shape of the engine's
// output. Internal representations may evolve independently.
type Record struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Pooler    string    `json:"pooler"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding,omitempty"`
	Speaker   string    `json:"speaker,omitempty"`
	Score     float64   `json:"score,omitempty"`
}

// New creates a Timbre instance. With WithEncoderModel this loads the ONNX
// runtime, which is expensive — create once, reuse across requests.
func New(opts ...Option) (*Timbre, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	raw, err := poolerConfigJSON(o)
	if err != nil {
		return nil, fmt.Errorf("timbre: pooler config: %w", err)
	}
	var cfg pool.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("timbre: pooler config: %w", err)
	}

	var fe frontend.Frontend
	if o.modelPath != "" {
		enc, err := frontend.NewEncoder(o.modelPath)
		if err != nil {
			return nil, fmt.Errorf("timbre: %w", err)
		}
		// The pooler sees the encoder's output channels, not raw features.
		cfg.InDim = enc.OutChannels()
		fe = enc
	} else {
		ident, err := frontend.NewIdentity(o.featureDim)
		if err != nil {
			return nil, fmt.Errorf("timbre: %w", err)
		}
		fe = ident
	}

	p, err := pool.New(o.pooler, cfg)
	if err != nil {
		fe.Close()
		return nil, fmt.Errorf("timbre: %w", err)
	}

	if o.weights != "" {
		if err := pool.LoadParameters(o.weights, p.Parameters()); err != nil {
			fe.Close()
			return nil, fmt.Errorf("timbre: %w", err)
		}
	}

	roster := enroll.New(p.OutDim())
	eng, err := engine.New(fe, p, o.pooler, roster, scoring.New(o.threshold))
	if err != nil {
		fe.Close()
		return nil, fmt.Errorf("timbre: %w", err)
	}

	return &Timbre{engine: eng}, nil
}

// OutDim returns the embedding dimensionality produced by Embed.
func (t *Timbre) OutDim() int {
	return t.engine.OutDim()
}

// Embed pools one utterance's frames into a fixed-size embedding.
// frames holds one feature vector per frame.
func (t *Timbre) Embed(frames [][]float32) ([]float32, error) {
	return t.engine.Embed(frames)
}

// EmbedBatch embeds multiple utterances. More convenient than calling
// Embed in a loop when handling grouped input.
func (t *Timbre) EmbedBatch(batches [][][]float32) ([][]float32, error) {
	out := make([][]float32, len(batches))
	for i, frames := range batches {
		vec, err := t.engine.Embed(frames)
		if err != nil {
			return nil, fmt.Errorf("utterance %d: %w", i, err)
		}
		out[i] = vec
	}
	return out, nil
}

// Enroll registers a speaker from an utterance. Repeated enrollments for
// the same name are averaged into the existing profile.
func (t *Timbre) Enroll(name string, frames [][]float32) error {
	return t.engine.Enroll(name, frames)
}

// Identify embeds the frames and reports the best-matching enrolled
// speaker. With no enrollments or below the threshold, the Match carries
// Unknown.
func (t *Timbre) Identify(frames [][]float32) (Match, error) {
	rec, err := t.engine.Process(model.Utterance{Frames: frames})
	if err != nil {
		return Match{}, err
	}
	if rec.Speaker == "" {
		return Match{Speaker: Unknown}, nil
	}
	return Match{Speaker: rec.Speaker, Score: rec.Score}, nil
}

// Process embeds a full utterance and returns the public record, including
// speaker identification when profiles are enrolled.
func (t *Timbre) Process(id string, frames [][]float32) (Record, error) {
	rec, err := t.engine.Process(model.Utterance{ID: id, Frames: frames})
	if err != nil {
		return Record{}, err
	}
	return Record{
		ID:        rec.ID,
		Timestamp: rec.Timestamp,
		Pooler:    rec.Pooler,
		Dim:       rec.Dim,
		Embedding: rec.Embedding,
		Speaker:   rec.Speaker,
		Score:     rec.Score,
	}, nil
}

// Close releases frontend resources (the ONNX runtime session, if any).
func (t *Timbre) Close() error {
	return t.engine.Close()
}
