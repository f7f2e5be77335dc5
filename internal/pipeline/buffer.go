package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/crimson-sun/timbre/internal/model"
	"github.com/crimson-sun/timbre/internal/output"
)

// streamBuffer accumulates records and flushes them to the output on a timer.
type streamBuffer struct {
	out     output.Output
	window  time.Duration
	maxSize int // 0 means unlimited

	mu      sync.Mutex
	pending []model.EmbeddingRecord
	timer   *time.Timer
}

func newStreamBuffer(out output.Output, window time.Duration, maxSize int) *streamBuffer {
	return &streamBuffer{
		out:     out,
		window:  window,
		maxSize: maxSize,
	}
}

// add appends a record to the buffer. If this is the first record, starts
// the flush timer. Returns true if the buffer is full and needs flushing.
func (b *streamBuffer) add(rec model.EmbeddingRecord) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending = append(b.pending, rec)
	if len(b.pending) == 1 {
		// First record — start timer.
		b.timer = time.NewTimer(b.window)
	}
	return b.maxSize > 0 && len(b.pending) >= b.maxSize
}

// flushCh returns the buffer timer's channel, or nil when no buffer or
// timer is active. Receiving on a nil channel blocks forever, which is
// exactly what the Stream select wants.
func flushCh(b *streamBuffer) <-chan time.Time {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.timer == nil {
		return nil
	}
	return b.timer.C
}

// flush writes all pending records.
func (b *streamBuffer) flush(ctx context.Context) error {
	b.mu.Lock()
	recs := b.pending
	b.pending = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	for _, rec := range recs {
		if err := b.out.Write(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
