// Package pipeline connects an utterance source, the embedding engine, and
// an output into a processing pipeline.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/crimson-sun/timbre/internal/engine/dedup"
	"github.com/crimson-sun/timbre/internal/model"
	"github.com/crimson-sun/timbre/internal/output"
	"github.com/crimson-sun/timbre/internal/source"
)

// Processor turns utterances into embedding records. Implemented by
// engine.Engine; tests substitute mocks.
type Processor interface {
	Process(utt model.Utterance) (model.EmbeddingRecord, error)
	ProcessBatch(utts []model.Utterance) ([]model.EmbeddingRecord, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithDedup enables utterance deduplication: repeated IDs inside the
// deduplicator's window are dropped before processing.
func WithDedup(d *dedup.Deduplicator) Option {
	return func(p *Pipeline) { p.dedup = d }
}

// WithBuffer batches records and flushes them to the output every window,
// or earlier once maxSize records accumulate (0 = unbounded).
func WithBuffer(window time.Duration, maxSize int) Option {
	return func(p *Pipeline) { p.bufWindow, p.bufMaxSize = window, maxSize }
}

// Pipeline connects a source, processor, and output.
type Pipeline struct {
	source source.Source
	proc   Processor
	out    output.Output

	dedup      *dedup.Deduplicator
	bufWindow  time.Duration
	bufMaxSize int

	skippedUtts   atomic.Int64 // utterances the processor rejected
	duplicateUtts atomic.Int64 // utterances dropped by dedup
}

// New creates a Pipeline from the given components.
func New(src source.Source, proc Processor, out output.Output, opts ...Option) *Pipeline {
	p := &Pipeline{
		source: src,
		proc:   proc,
		out:    out,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stream starts the pipeline in streaming mode, processing utterances as
// they arrive. Blocks until the context is cancelled or the source closes
// its channel. Utterances the processor rejects are skipped, not fatal.
func (p *Pipeline) Stream(ctx context.Context, cfg source.SourceConfig) error {
	ch, err := p.source.Stream(ctx, cfg)
	if err != nil {
		return fmt.Errorf("pipeline stream: %w", err)
	}

	var buf *streamBuffer
	if p.bufWindow > 0 {
		buf = newStreamBuffer(p.out, p.bufWindow, p.bufMaxSize)
	}

	for {
		select {
		case <-ctx.Done():
			if buf != nil {
				buf.flush(context.Background())
			}
			return ctx.Err()
		case <-flushCh(buf):
			if err := buf.flush(ctx); err != nil {
				return fmt.Errorf("pipeline output: %w", err)
			}
		case utt, ok := <-ch:
			if !ok {
				if buf != nil {
					return buf.flush(context.Background())
				}
				return nil
			}
			rec, ok := p.process(utt)
			if !ok {
				continue
			}
			if buf != nil {
				if full := buf.add(rec); full {
					if err := buf.flush(ctx); err != nil {
						return fmt.Errorf("pipeline output: %w", err)
					}
				}
				continue
			}
			if err := p.out.Write(ctx, rec); err != nil {
				return fmt.Errorf("pipeline output: %w", err)
			}
		}
	}
}

// process runs dedup and the processor for one utterance. Returns false
// when the utterance was dropped.
func (p *Pipeline) process(utt model.Utterance) (model.EmbeddingRecord, bool) {
	if p.dedup != nil && !p.dedup.Admit(utt) {
		p.duplicateUtts.Add(1)
		return model.EmbeddingRecord{}, false
	}
	rec, err := p.proc.Process(utt)
	if err != nil {
		p.skippedUtts.Add(1)
		slog.Warn("skipping utterance", "id", utt.ID, "error", err)
		return model.EmbeddingRecord{}, false
	}
	return rec, true
}

// Fetch runs the pipeline in one-shot batch mode. If batch processing fails,
// falls back to per-utterance processing so one bad utterance does not
// discard the rest.
func (p *Pipeline) Fetch(ctx context.Context, cfg source.SourceConfig, params source.FetchParams) error {
	utts, err := p.source.Fetch(ctx, cfg, params)
	if err != nil {
		return fmt.Errorf("pipeline fetch: %w", err)
	}

	if p.dedup != nil {
		admitted := utts[:0]
		for _, utt := range utts {
			if p.dedup.Admit(utt) {
				admitted = append(admitted, utt)
			} else {
				p.duplicateUtts.Add(1)
			}
		}
		utts = admitted
	}

	recs, err := p.proc.ProcessBatch(utts)
	if err != nil {
		slog.Warn("batch processing failed, retrying per utterance", "error", err)
		recs = recs[:0]
		for _, utt := range utts {
			rec, rerr := p.proc.Process(utt)
			if rerr != nil {
				p.skippedUtts.Add(1)
				slog.Warn("skipping utterance", "id", utt.ID, "error", rerr)
				continue
			}
			recs = append(recs, rec)
		}
	}

	for _, rec := range recs {
		if err := p.out.Write(ctx, rec); err != nil {
			return fmt.Errorf("pipeline output: %w", err)
		}
	}
	return nil
}

// Close shuts down the output and reports skip counts.
func (p *Pipeline) Close() error {
	if n := p.skippedUtts.Load(); n > 0 {
		slog.Info("pipeline finished with skipped utterances", "skipped", n)
	}
	if n := p.duplicateUtts.Load(); n > 0 {
		slog.Info("pipeline dropped duplicate utterances", "duplicates", n)
	}
	return p.out.Close()
}
