package output

import (
	"context"

	"github.com/crimson-sun/timbre/internal/model"
)

// Output defines the interface for embedding record destinations.
type Output interface {
	Write(ctx context.Context, rec model.EmbeddingRecord) error
	Close() error
}
