package model

import (
	"context"
	"sync"
)

// Distribution tallies completed Backend calls per tier, for the passive
// cost accounting recorded alongside a Saved Execution (model_distribution).
// Safe for concurrent use: the planner invokes Generate for several
// candidates in parallel.
type Distribution struct {
	mu     sync.Mutex
	counts map[Tier]int
}

// NewDistribution returns an empty Distribution.
func NewDistribution() *Distribution {
	return &Distribution{counts: make(map[Tier]int)}
}

func (d *Distribution) record(tier Tier) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.counts[tier]++
}

// Snapshot returns a copy of the current per-tier call counts, keyed by
// tier name for direct embedding in a Saved Execution record.
func (d *Distribution) Snapshot() map[string]int {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]int, len(d.counts))
	for tier, n := range d.counts {
		out[string(tier)] = n
	}
	return out
}

// CountingBackend wraps a Backend, recording one Distribution entry per
// successful call, keyed by the tier the response came back on rather than
// the tier requested, so a backend that downgrades tiers is still
// accounted correctly.
type CountingBackend struct {
	Backend
	Dist *Distribution
}

// NewCountingBackend wraps backend with a fresh Distribution.
func NewCountingBackend(backend Backend) *CountingBackend {
	return &CountingBackend{Backend: backend, Dist: NewDistribution()}
}

func (c *CountingBackend) Generate(ctx context.Context, req Request) (Response, error) {
	resp, err := c.Backend.Generate(ctx, req)
	if err != nil {
		return resp, err
	}
	c.Dist.record(tierOrRequested(resp.Tier, req.Tier))
	return resp, nil
}

func (c *CountingBackend) GenerateStream(ctx context.Context, req Request, out chan<- Chunk) (Response, error) {
	resp, err := c.Backend.GenerateStream(ctx, req, out)
	if err != nil {
		return resp, err
	}
	c.Dist.record(tierOrRequested(resp.Tier, req.Tier))
	return resp, nil
}

func tierOrRequested(responseTier, requestedTier Tier) Tier {
	if responseTier != "" {
		return responseTier
	}
	return requestedTier
}
