package model

import "time"

// EmbeddingRecord is timbre's output type — one fixed-size embedding for one
// utterance, optionally annotated with the best-matching enrolled speaker.
type EmbeddingRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Pooler    string    `json:"pooler"`              // pooler kind that produced the vector
	Dim       int       `json:"dim"`                 // embedding dimensionality
	Embedding []float32 `json:"embedding,omitempty"` // omitted below full verbosity
	Speaker   string    `json:"speaker,omitempty"`   // best match, or UNKNOWN below threshold
	Score     float64   `json:"score,omitempty"`     // cosine similarity of the best match
}

// SpeakerProfile is an enrolled speaker: the running mean of the embeddings
// seen for that speaker so far.
type SpeakerProfile struct {
	Name   string
	Vector []float32
	Count  int // number of enrollments folded into Vector
}
