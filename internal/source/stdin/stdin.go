// Package stdin implements an utterance source reading newline-delimited
// JSON records from standard input.
package stdin

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"

	"github.com/crimson-sun/timbre/internal/model"
	"github.com/crimson-sun/timbre/internal/source"
)

const maxLineBytes = 16 * 1024 * 1024

func init() {
	source.Register("stdin", func() source.Source {
		return &Source{Reader: os.Stdin}
	})
}

// Source implements the source.Source interface over an io.Reader,
// os.Stdin by default. Reader is a field so tests can substitute one.
type Source struct {
	Reader io.Reader
}

func (s *Source) scanner() *bufio.Scanner {
	sc := bufio.NewScanner(s.Reader)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	return sc
}

func decodeLine(line []byte) (model.Utterance, bool) {
	var utt model.Utterance
	if err := json.Unmarshal(line, &utt); err != nil {
		slog.Warn("skipping malformed record", "source", "stdin", "error", err)
		return model.Utterance{}, false
	}
	if utt.Source == "" {
		utt.Source = "stdin"
	}
	return utt, true
}

// Fetch reads records until EOF and returns at most params.Limit of them.
// Time filters are not applied: stdin input is taken as already scoped.
func (s *Source) Fetch(ctx context.Context, cfg source.SourceConfig, params source.FetchParams) ([]model.Utterance, error) {
	sc := s.scanner()
	var results []model.Utterance
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		utt, ok := decodeLine(sc.Bytes())
		if !ok {
			continue
		}
		results = append(results, utt)
		if params.Limit > 0 && len(results) >= params.Limit {
			return results[:params.Limit], nil
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Source) Stream(ctx context.Context, cfg source.SourceConfig) (<-chan model.Utterance, error) {
	sc := s.scanner()
	ch := make(chan model.Utterance, 64)
	go func() {
		defer close(ch)
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
	}()
	return ch, nil
}
