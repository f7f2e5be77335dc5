package model

import "time"

// Utterance is the intermediate type produced by sources and consumed by the
// engine: a variable-length sequence of feature frames for one recording.
type Utterance struct {
	ID        string         `json:"id"`
	Timestamp time.Time      `json:"timestamp,omitempty"`
	Source    string         `json:"source,omitempty"` // provider name (e.g. "file", "http")
	Frames    [][]float32    `json:"frames"`           // T frames, each of fixed feature width
	Metadata  map[string]any `json:"metadata,omitempty"`
}
