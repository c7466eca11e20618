// Package wave executes an artifact graph one topological wave at a time,
// running every ready artifact in a wave concurrently under a bounded
// worker pool, consulting the execution cache first, and propagating
// BLOCKED status to dependents of a failed artifact (spec component C8).
package wave

import (
	"context"
	"sync"
	"time"

	"github.com/harrison/artisan/internal/artifact"
	"github.com/harrison/artisan/internal/cache"
	"github.com/harrison/artisan/internal/eventbus"
	"github.com/harrison/artisan/internal/graph"
	"github.com/harrison/artisan/internal/hasher"
	"github.com/harrison/artisan/internal/produce"
)

// Executor runs a frozen graph's waves against a produce.Func.
type Executor struct {
	produce        produce.Func
	cache          *cache.Store
	cacheTTL       time.Duration
	bus            *eventbus.Bus
	sessionID      string
	maxConcurrency int // 0 means unbounded (equal to wave width)
}

// Option configures an Executor at construction time.
type Option func(*Executor)

// WithCache attaches an execution cache. Cache hits skip calling produce
// entirely and report StatusSkipped.
func WithCache(store *cache.Store, ttl time.Duration) Option {
	return func(e *Executor) { e.cache = store; e.cacheTTL = ttl }
}

// WithEventBus attaches an event bus that receives wave/artifact lifecycle
// events for sessionID.
func WithEventBus(bus *eventbus.Bus, sessionID string) Option {
	return func(e *Executor) { e.bus = bus; e.sessionID = sessionID }
}

// WithMaxConcurrency bounds how many artifacts run at once within a wave.
// 0 (the default) means a wave's full width runs concurrently.
func WithMaxConcurrency(n int) Option {
	return func(e *Executor) { e.maxConcurrency = n }
}

// New returns an Executor that calls fn to produce each artifact.
func New(fn produce.Func, opts ...Option) *Executor {
	e := &Executor{produce: fn}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes every wave of g in order, returning the Result for every
// artifact attempted. It stops launching new waves once ctx is cancelled,
// but always returns the results accumulated so far alongside the error.
// seed, when non-nil, pre-populates already-terminal results (resume
// support): artifacts present in seed with a terminal status are neither
// re-run nor re-blocked.
func (e *Executor) Run(ctx context.Context, g *graph.Graph, seed map[string]artifact.Result) (map[string]artifact.Result, error) {
	waves, err := g.Waves()
	if err != nil {
		return nil, err
	}

	results := make(map[string]artifact.Result, g.Len())
	for id, res := range seed {
		if res.Status.Terminal() {
			results[id] = res
		}
	}

	for _, wave := range waves {
		e.emit(eventbus.TypeWaveStart, map[string]any{"size": len(wave)})

		runnable := e.partitionBlocked(g, wave, results)
		if len(runnable) > 0 {
			e.runWave(ctx, g, runnable, results)
		}

		e.emit(eventbus.TypeWaveComplete, map[string]any{"size": len(wave)})

		if ctx.Err() != nil {
			return results, ctx.Err()
		}
	}

	return results, nil
}

// partitionBlocked marks any artifact in wave whose Requires includes a
// failed or blocked dependency as StatusBlocked (without running it), and
// returns the remaining, runnable artifact IDs.
func (e *Executor) partitionBlocked(g *graph.Graph, wave []string, results map[string]artifact.Result) []string {
	var runnable []string
	for _, id := range wave {
		if res, ok := results[id]; ok && res.Status.Terminal() {
			continue // already resolved by a seeded prior run
		}
		spec, _ := g.Lookup(id)
		if blockedBy, blocked := e.upstreamFailed(spec, results); blocked {
			results[id] = artifact.Result{ArtifactID: id, Status: artifact.StatusBlocked, Error: "blocked by " + blockedBy}
			e.emit(eventbus.TypeArtifactBlocked, map[string]any{"artifact_id": id, "blocked_by": blockedBy})
			continue
		}
		runnable = append(runnable, id)
	}
	return runnable
}

func (e *Executor) upstreamFailed(spec artifact.Spec, results map[string]artifact.Result) (string, bool) {
	for _, dep := range spec.Requires {
		if res, ok := results[dep]; ok {
			if res.Status == artifact.StatusFailed || res.Status == artifact.StatusBlocked {
				return dep, true
			}
		}
	}
	return "", false
}

func (e *Executor) runWave(ctx context.Context, g *graph.Graph, ids []string, results map[string]artifact.Result) {
	concurrency := e.maxConcurrency
	if concurrency <= 0 || concurrency > len(ids) {
		concurrency = len(ids)
	}
	if concurrency == 0 {
		return
	}

	sem := make(chan struct{}, concurrency)
	resultsCh := make(chan artifact.Result, len(ids))

	var wg sync.WaitGroup
launch:
	for _, id := range ids {
		if ctx.Err() != nil {
			break launch
		}
		select {
		case <-ctx.Done():
			break launch
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			defer func() { <-sem }()
			res := e.runOne(ctx, g, id, results)
			select {
			case resultsCh <- res:
			case <-ctx.Done():
			}
		}(id)
	}

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	for res := range resultsCh {
		results[res.ArtifactID] = res
	}
}

func (e *Executor) runOne(ctx context.Context, g *graph.Graph, id string, priorResults map[string]artifact.Result) artifact.Result {
	spec, _ := g.Lookup(id)
	deps := make(map[string]artifact.Result, len(spec.Requires))
	depHashes := make(map[string]string, len(spec.Requires))
	for _, dep := range spec.Requires {
		if r, ok := priorResults[dep]; ok {
			deps[dep] = r
			depHashes[dep] = r.ContentHash
		}
	}

	fingerprint := hasher.Fingerprint(spec.Contract, depHashes)

	if e.cache != nil {
		if blob, outputHash, err := e.cache.Get(ctx, fingerprint); err == nil {
			e.emit(eventbus.TypeCacheHit, map[string]any{"artifact_id": id, "fingerprint": fingerprint})
			return artifact.Result{
				ArtifactID:   id,
				Status:       artifact.StatusSkipped,
				OutputInline: string(blob),
				ContentHash:  outputHash,
			}
		}
		e.emit(eventbus.TypeCacheMiss, map[string]any{"artifact_id": id, "fingerprint": fingerprint})
	}

	e.emit(eventbus.TypeArtifactStart, map[string]any{"artifact_id": id})
	start := time.Now()
	res, err := e.produce(ctx, spec, deps)
	res.ArtifactID = id
	res.Duration = time.Since(start)

	if err != nil {
		res.Status = artifact.StatusFailed
		res.Error = err.Error()
		e.emit(eventbus.TypeArtifactFailed, map[string]any{"artifact_id": id, "error": err.Error()})
		return res
	}
	if res.Status == "" {
		res.Status = artifact.StatusCompleted
	}
	e.emit(eventbus.TypeArtifactComplete, map[string]any{"artifact_id": id, "status": res.Status})

	if e.cache != nil && res.Status == artifact.StatusCompleted {
		payload := []byte(res.OutputInline)
		_ = e.cache.Put(ctx, fingerprint, payload, e.cacheTTL)
	}

	return res
}

func (e *Executor) emit(typ eventbus.Type, data map[string]any) {
	if e.bus != nil {
		e.bus.Publish(e.sessionID, typ, data)
	}
}
