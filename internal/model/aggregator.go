package model

import "time"

// ChunkBatchSize and ChunkBatchInterval bound how often streaming chunks are
// coalesced into a single model_tokens event, per spec.md's event-volume
// guidance: whichever threshold is hit first flushes the batch.
const (
	ChunkBatchSize     = 10
	ChunkBatchInterval = 500 * time.Millisecond
)

// Aggregator coalesces a Chunk stream into batches suitable for publishing
// as model_tokens / model_thinking events without flooding the event bus
// with one event per token.
type Aggregator struct {
	flush func(text string, thinking bool)

	buf      []byte
	thinking bool
	lastSent time.Time
}

// NewAggregator returns an Aggregator that invokes flush whenever a batch is
// ready. flush is called synchronously from Add/Close.
func NewAggregator(flush func(text string, thinking bool)) *Aggregator {
	return &Aggregator{flush: flush, lastSent: time.Now()}
}

// Add appends a chunk to the current batch, flushing immediately if the
// chunk's thinking flag differs from the pending batch, or if either
// threshold (ChunkBatchSize bytes-as-proxy-for-tokens, ChunkBatchInterval)
// has been reached.
func (a *Aggregator) Add(c Chunk) {
	if len(a.buf) > 0 && c.Thinking != a.thinking {
		a.flushNow()
	}
	a.thinking = c.Thinking
	a.buf = append(a.buf, c.Text...)

	if len(a.buf) >= ChunkBatchSize || time.Since(a.lastSent) >= ChunkBatchInterval {
		a.flushNow()
	}
	if c.Done {
		a.flushNow()
	}
}

// Close flushes any remaining buffered text.
func (a *Aggregator) Close() {
	a.flushNow()
}

func (a *Aggregator) flushNow() {
	if len(a.buf) == 0 {
		return
	}
	a.flush(string(a.buf), a.thinking)
	a.buf = a.buf[:0]
	a.lastSent = time.Now()
}
