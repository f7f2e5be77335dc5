// Package file implements an utterance source reading newline-delimited
// JSON records from a local file.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/crimson-sun/timbre/internal/model"
	"github.com/crimson-sun/timbre/internal/source"
)

// Frame matrices make individual records large, so the line buffer is
// far bigger than bufio's default.
const maxLineBytes = 16 * 1024 * 1024

func init() {
	source.Register("file", func() source.Source {
		return &Source{}
	})
}

// Source implements the source.Source interface for NDJSON files.
type Source struct{}

func openScanner(cfg source.SourceConfig) (*os.File, *bufio.Scanner, error) {
	path := cfg.Extra["path"]
	if path == "" {
		return nil, nil, fmt.Errorf("file source: missing required config key \"path\" in Extra")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("file source: %w", err)
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	return f, sc, nil
}

func decodeLine(line []byte) (model.Utterance, bool) {
	var utt model.Utterance
	if err := json.Unmarshal(line, &utt); err != nil {
		slog.Warn("skipping malformed record", "source", "file", "error", err)
		return model.Utterance{}, false
	}
	if utt.Source == "" {
		utt.Source = "file"
	}
	return utt, true
}

func (s *Source) Fetch(ctx context.Context, cfg source.SourceConfig, params source.FetchParams) ([]model.Utterance, error) {
	f, sc, err := openScanner(cfg)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var results []model.Utterance
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		utt, ok := decodeLine(sc.Bytes())
		if !ok {
			continue
		}
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
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("file source: %w", err)
	}
	return results, nil
}

func (s *Source) Stream(ctx context.Context, cfg source.SourceConfig) (<-chan model.Utterance, error) {
	f, sc, err := openScanner(cfg)
	if err != nil {
		return nil, err
	}

	ch := make(chan model.Utterance, 64)
	go func() {
		defer close(ch)
		defer f.Close()
		for sc.Scan() {
			if len(sc.Bytes()) == 0 {
				continue
			}
			utt, ok := decodeLine(sc.Bytes())
			if !ok {
				continue
			}
			select {
			case ch <- utt:
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			slog.Warn("stream ended", "source", "file", "error", err)
		}
	}()

	return ch, nil
}
