// Package httpsrc implements an utterance source polling a remote JSON
// feature service.
package httpsrc

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/crimson-sun/timbre/internal/httpclient"
	"github.com/crimson-sun/timbre/internal/model"
	"github.com/crimson-sun/timbre/internal/source"
)

const defaultPollInterval = 5 * time.Second
const defaultPath = "/api/v1/utterances"

func init() {
	source.Register("http", func() source.Source {
		return &Source{}
	})
}

// Source implements the source.Source interface for a paginated HTTP
// utterance feed.
type Source struct{}

// Response types (unexported).

type feedResponse struct {
	Data []record `json:"data"`
	Meta meta     `json:"meta"`
}

type record struct {
	ID        string         `json:"id"`
	Timestamp string         `json:"timestamp"` // RFC 3339
	Frames    [][]float32    `json:"frames"`
	Metadata  map[string]any `json:"metadata"`
}

type meta struct {
	NextToken string `json:"next_token"`
}

func toUtterance(r record) model.Utterance {
	ts, _ := time.Parse(time.RFC3339Nano, r.Timestamp)
	return model.Utterance{
		ID:        r.ID,
		Timestamp: ts,
		Source:    "http",
		Frames:    r.Frames,
		Metadata:  r.Metadata,
	}
}

func newClient(cfg source.SourceConfig) (*httpclient.Client, string, error) {
	if cfg.Endpoint == "" {
		return nil, "", fmt.Errorf("http source: missing required Endpoint")
	}
	path := cfg.Extra["path"]
	if path == "" {
		path = defaultPath
	}
	return httpclient.New(cfg.Endpoint, cfg.Token), path, nil
}

func (s *Source) Fetch(ctx context.Context, cfg source.SourceConfig, params source.FetchParams) ([]model.Utterance, error) {
	client, path, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	var results []model.Utterance
	cursor := ""

	for {
		q := url.Values{}
		if cursor != "" {
			q.Set("next_token", cursor)
		}

		var resp feedResponse
		if err := client.GetJSON(ctx, path, q, &resp); err != nil {
			return nil, fmt.Errorf("http source: %w", err)
		}

		for _, entry := range resp.Data {
			utt := toUtterance(entry)

			// Client-side time filter; the feed has no server-side range.
			if !params.Start.IsZero() && utt.Timestamp.Before(params.Start) {
				continue
			}
			if !params.End.IsZero() && !utt.Timestamp.Before(params.End) {
				continue
			}

			results = append(results, utt)
			if params.Limit > 0 && len(results) >= params.Limit {
				return results[:params.Limit], nil
			}
		}

		cursor = resp.Meta.NextToken
		if cursor == "" {
			break
		}
	}

	return results, nil
}

func (s *Source) Stream(ctx context.Context, cfg source.SourceConfig) (<-chan model.Utterance, error) {
	client, path, err := newClient(cfg)
	if err != nil {
		return nil, err
	}

	pollInterval := defaultPollInterval
	if raw := cfg.Extra["poll_interval"]; raw != "" {
		if d, perr := time.ParseDuration(raw); perr == nil && d > 0 {
			pollInterval = d
		}
	}

	ch := make(chan model.Utterance, 64)
	go func() {
		defer close(ch)
		cursor := ""
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		cursor = poll(ctx, client, path, cursor, ch)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cursor = poll(ctx, client, path, cursor, ch)
			}
		}
	}()

	return ch, nil
}

func poll(ctx context.Context, client *httpclient.Client, path, cursor string, ch chan<- model.Utterance) string {
	q := url.Values{}
	if cursor != "" {
		q.Set("next_token", cursor)
	}

	var resp feedResponse
	if err := client.GetJSON(ctx, path, q, &resp); err != nil {
		slog.Warn("poll error", "source", "http", "error", err)
		return cursor
	}

	for _, entry := range resp.Data {
		select {
		case ch <- toUtterance(entry):
		case <-ctx.Done():
			return cursor
		}
	}

	if resp.Meta.NextToken != "" {
		return resp.Meta.NextToken
	}
	return cursor
}
