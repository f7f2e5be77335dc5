package source

import (
	"context"
	"time"

	"github.com/crimson-sun/timbre/internal/model"
)

// Source defines the interface all utterance sources must implement.
type Source interface {
	// Stream opens a long-lived feed and sends utterances as they arrive.
	Stream(ctx context.Context, cfg SourceConfig) (<-chan model.Utterance, error)

	// Fetch retrieves a batch of stored utterances matching the given parameters.
	Fetch(ctx context.Context, cfg SourceConfig, params FetchParams) ([]model.Utterance, error)
}

// SourceConfig holds provider-specific connection settings.
type SourceConfig struct {
	Provider string
	Token    string
	Endpoint string
	Extra    map[string]string
}

// FetchParams defines filters for batch utterance fetches.
type FetchParams struct {
	Start time.Time
	End   time.Time
	Limit int
}
