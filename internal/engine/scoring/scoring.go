// Package scoring matches pooled embeddings against enrolled speaker
// profiles by cosine similarity.
package scoring

import (
	"math"

	"github.com/crimson-sun/timbre/internal/model"
)

// Unknown is the speaker name reported when no profile clears the threshold.
const Unknown = "UNKNOWN"

// Match holds the outcome of scoring one embedding.
type Match struct {
	Speaker string
	Score   float64
}

// Scorer scores embeddings against speaker profiles.
type Scorer struct {
	Threshold float64
}

// New creates a Scorer with the given similarity threshold.
func New(threshold float64) *Scorer {
	return &Scorer{Threshold: threshold}
}

// Score finds the best-matching profile for the given embedding. If the best
// similarity is below the threshold, Speaker is Unknown and Score still
// carries the best similarity seen.
func (s *Scorer) Score(vector []float32, profiles []model.SpeakerProfile) Match {
	if len(profiles) == 0 {
		return Match{Speaker: Unknown}
	}

	best := Match{Speaker: Unknown, Score: -1}
	for _, p := range profiles {
		sim := cosineSimilarity(vector, p.Vector)
		if sim > best.Score {
			best = Match{Speaker: p.Name, Score: sim}
		}
	}
	if best.Score < s.Threshold {
		best.Speaker = Unknown
	}
	return best
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
