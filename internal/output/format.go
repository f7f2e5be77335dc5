package output

import (
	"github.com/crimson-sun/timbre/internal/model"
)

// Verbosity controls how much of each record reaches an output.
type Verbosity int

const (
	Minimal  Verbosity = iota // identity and dimensions only
	Standard                  // adds speaker match and score
	Full                      // adds the raw embedding vector
)

// ParseVerbosity maps a config string to a Verbosity. Unrecognized values
// fall back to Standard.
func ParseVerbosity(s string) Verbosity {
	switch s {
	case "minimal":
		return Minimal
	case "full":
		return Full
	default:
		return Standard
	}
}

// FormatRecord returns a copy of the record with fields stripped according
// to verbosity. At Minimal: Embedding, Speaker, and Score are zeroed
// (omitted from JSON via omitempty). At Standard: only Embedding is zeroed.
// At Full: all fields preserved.
func FormatRecord(rec model.EmbeddingRecord, verbosity Verbosity) model.EmbeddingRecord {
	switch verbosity {
	case Minimal:
		rec.Embedding = nil
		rec.Speaker = ""
		rec.Score = 0
	case Standard:
		rec.Embedding = nil
	}
	return rec
}
