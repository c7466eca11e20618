// Package orchestrator ties the planner, execution cache, plan store, and
// wave executor into a single run(goal, options) entry point with resume
// support (spec component C9).
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/artisan/internal/artifact"
	"github.com/harrison/artisan/internal/cache"
	"github.com/harrison/artisan/internal/changeset"
	"github.com/harrison/artisan/internal/eventbus"
	"github.com/harrison/artisan/internal/graph"
	"github.com/harrison/artisan/internal/hasher"
	"github.com/harrison/artisan/internal/model"
	"github.com/harrison/artisan/internal/planner"
	"github.com/harrison/artisan/internal/planstore"
	"github.com/harrison/artisan/internal/produce"
	"github.com/harrison/artisan/internal/wave"
)

// Options configures a single Run call.
type Options struct {
	Candidates     int  // planner candidate count, default 3
	MaxRefinements int  // planner refinement budget, default 0
	MaxConcurrency int  // wave executor concurrency cap, 0 = unbounded per wave
	CacheTTL       time.Duration
	ForceReplan    bool // replan instead of resuming an incomplete saved record
	DryRun         bool // plan and persist, but never invoke the wave executor
	SessionID      string

	// Cache, when set, is the same store passed to the wave executor via
	// wave.WithCache. The orchestrator uses it to invalidate the cache
	// entry of any artifact the change detector flags output_modified,
	// whose fingerprint alone can't see an out-of-band edit.
	Cache *cache.Store
}

// Orchestrator runs goals end to end: plan, execute, persist, resume.
type Orchestrator struct {
	backend model.Backend
	produce produce.Func
	plans   *planstore.Store
	bus     *eventbus.Bus
}

// New constructs an Orchestrator. Attach a cache to individual runs via
// wave.WithCache(store, ttl) passed as a waveOpts argument to Run.
func New(backend model.Backend, produceFn produce.Func, plans *planstore.Store, bus *eventbus.Bus) *Orchestrator {
	return &Orchestrator{backend: backend, produce: produceFn, plans: plans, bus: bus}
}

// Run plans (or resumes) goal and executes it to completion or
// cancellation, persisting a Record after every attempt so a killed
// process can resume via the same goal text.
//
// When a prior complete Record exists for goal, Run diffs the freshly
// planned graph against it (changeset.Detect) before touching the wave
// executor: an empty rebuild set short-circuits to a no-op completion, and
// a non-empty one is extracted as a subgraph (graph.Subgraph) and handed to
// the executor alone, with every artifact outside it seeded from the prior
// run's results.
func (o *Orchestrator) Run(ctx context.Context, goal string, opts Options, waveOpts ...wave.Option) (*planstore.Record, error) {
	if opts.Candidates < 1 {
		opts.Candidates = 3
	}
	if opts.SessionID == "" {
		// a random ID, not the goal fingerprint, so two concurrent runs of the
		// same goal text get independent event-bus streams.
		opts.SessionID = uuid.NewString()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.installSignalHandler(ctx, cancel)

	goalFingerprint := goalFingerprintFor(goal)
	o.emit(opts.SessionID, eventbus.TypeSessionStart, map[string]any{"goal_fingerprint": goalFingerprint})
	o.emit(opts.SessionID, eventbus.TypeRunStart, map[string]any{"goal_fingerprint": goalFingerprint})

	record, g, prevCompleted, err := o.planOrResume(ctx, goal, goalFingerprint, opts)
	if err != nil {
		o.emit(opts.SessionID, eventbus.TypeRunFailed, map[string]any{"goal_fingerprint": goalFingerprint, "error": err.Error()})
		return nil, err
	}

	if opts.DryRun {
		if saveErr := o.plans.Save(record); saveErr != nil {
			return record, saveErr
		}
		o.emit(opts.SessionID, eventbus.TypeSessionEnd, map[string]any{"goal_fingerprint": goalFingerprint})
		return record, nil
	}

	execGraph := g
	execSeed := record.Results

	if prevCompleted != nil {
		nothingToDo, rerr := o.applyChangeDetection(ctx, opts, goalFingerprint, g, record, prevCompleted, &execGraph, &execSeed)
		if rerr != nil {
			return record, rerr
		}
		if nothingToDo {
			o.emit(opts.SessionID, eventbus.TypeRunComplete, map[string]any{"goal_fingerprint": goalFingerprint, "rebuild_count": 0})
			o.emit(opts.SessionID, eventbus.TypeSessionEnd, map[string]any{"goal_fingerprint": goalFingerprint})
			return record, nil
		}
	}

	exec := wave.New(o.produce, append([]wave.Option{
		wave.WithEventBus(o.bus, opts.SessionID),
		wave.WithMaxConcurrency(opts.MaxConcurrency),
	}, waveOpts...)...)

	results, runErr := exec.Run(ctx, execGraph, execSeed)
	for id, res := range results {
		record.Results[id] = res
	}
	record.UpdatedAt = time.Now()
	record.Complete = len(record.RemainingArtifacts()) == 0

	if saveErr := o.plans.Save(record); saveErr != nil {
		if runErr == nil {
			runErr = saveErr
		}
	}
	if runErr == nil {
		for _, s := range record.Specs {
			if res, ok := results[s.ID]; ok && res.Status == artifact.StatusFailed {
				runErr = fmt.Errorf("artifact %s failed: %s", s.ID, res.Error)
				break
			}
		}
	}

	switch {
	case runErr != nil && ctx.Err() != nil:
		o.emit(opts.SessionID, eventbus.TypeRunPaused, map[string]any{"goal_fingerprint": goalFingerprint})
	case runErr != nil:
		o.emit(opts.SessionID, eventbus.TypeRunFailed, map[string]any{"goal_fingerprint": goalFingerprint, "error": runErr.Error()})
		runErr = &RunError{GoalFingerprint: goalFingerprint, Cause: runErr}
	default:
		o.emit(opts.SessionID, eventbus.TypeRunComplete, map[string]any{"goal_fingerprint": goalFingerprint})
	}

	o.emit(opts.SessionID, eventbus.TypeSessionEnd, map[string]any{"goal_fingerprint": goalFingerprint})
	return record, runErr
}

// planOrResume loads an existing incomplete record for goalFingerprint, or
// runs the planner fresh when none exists, opts.ForceReplan is set, or the
// saved record is already complete. The returned prevCompleted is non-nil
// only when a prior *complete* record existed and planning ran fresh
// against it, signaling Run to run the change detector before executing.
func (o *Orchestrator) planOrResume(ctx context.Context, goal, goalFingerprint string, opts Options) (*planstore.Record, *graph.Graph, *planstore.Record, error) {
	existing, loadErr := o.plans.Load(goalFingerprint)
	hasExisting := loadErr == nil

	if !opts.ForceReplan && hasExisting && !existing.Complete {
		g, err := buildGraph(existing.Specs)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("orchestrator: rebuild graph from saved record: %w", err)
		}
		return existing, g, nil, nil
	}

	planResult, err := planner.Plan(ctx, o.backend, goalFingerprint, goal, planner.Options{
		Candidates:     opts.Candidates,
		MaxRefinements: opts.MaxRefinements,
		Bus:            o.bus,
		SessionID:      opts.SessionID,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	specs := make([]artifact.Spec, 0, planResult.Graph.Len())
	for _, id := range planResult.Graph.IDs() {
		s, _ := planResult.Graph.Lookup(id)
		specs = append(specs, s)
	}
	waves, err := planResult.Graph.Waves()
	if err != nil {
		return nil, nil, nil, err
	}

	record := planstore.NewRecord(goalFingerprint, goal, specs, waves, planResult.Score)

	var prevCompleted *planstore.Record
	if hasExisting && existing.Complete {
		prevCompleted = existing
	}
	return record, planResult.Graph, prevCompleted, nil
}

// applyChangeDetection diffs g against prevCompleted's graph (spec §4.9
// steps 3-5). When nothing changed it reports nothingToDo=true, leaving
// record untouched for the caller to persist as-is, results carried
// forward from prevCompleted. Otherwise it extracts the rebuild subgraph
// into *execGraph, seeds *execSeed with every result outside the rebuild
// set, and invalidates the cache entry of any artifact flagged
// output_modified so the wave executor can't serve it a stale hit.
func (o *Orchestrator) applyChangeDetection(
	ctx context.Context,
	opts Options,
	goalFingerprint string,
	g *graph.Graph,
	record *planstore.Record,
	prevCompleted *planstore.Record,
	execGraph **graph.Graph,
	execSeed *map[string]artifact.Result,
) (nothingToDo bool, err error) {
	prevGraph, err := buildGraph(prevCompleted.Specs)
	if err != nil {
		// the previous record's own graph no longer builds (e.g. a corrupt
		// save); fall back to executing the full fresh plan rather than
		// failing the run.
		return false, nil
	}

	outputModified := func(id string) bool {
		spec, ok := prevGraph.Lookup(id)
		if !ok || spec.ProducesFile == "" {
			return false
		}
		prevRes, ok := prevCompleted.Results[id]
		if !ok || prevRes.OutputPath == "" || prevRes.ContentHash == "" {
			return false
		}
		return hasher.HashFile(prevRes.OutputPath) != prevRes.ContentHash
	}

	cs, err := changeset.Detect(prevGraph, g, outputModified)
	if err != nil {
		return false, nil
	}

	if len(cs.RebuildSet) == 0 {
		record.Results = prevCompleted.Results
		record.Complete = true
		record.UpdatedAt = time.Now()
		if saveErr := o.plans.Save(record); saveErr != nil {
			return false, saveErr
		}
		return true, nil
	}

	rebuildIDs := make([]string, 0, len(cs.RebuildSet))
	for id := range cs.RebuildSet {
		rebuildIDs = append(rebuildIDs, id)
	}
	sub, err := g.Subgraph(rebuildIDs)
	if err != nil {
		return false, nil
	}

	carried := make(map[string]artifact.Result, len(prevCompleted.Results))
	for id, res := range prevCompleted.Results {
		if !cs.RebuildSet[id] {
			carried[id] = res
		}
	}

	if opts.Cache != nil {
		for _, c := range cs.Changes {
			if c.Kind == changeset.KindOutputModified {
				invalidateStaleCacheEntry(ctx, opts.Cache, g, c.ArtifactID, carried)
			}
		}
	}

	record.Results = carried
	*execGraph = sub
	*execSeed = carried
	return false, nil
}

// invalidateStaleCacheEntry evicts the cache entry an output_modified
// artifact would otherwise hit: its fingerprint (contract plus resolved dep
// hashes) is unchanged from the prior run even though its produced file was
// edited out-of-band, so the stale blob has to be forced out explicitly.
func invalidateStaleCacheEntry(ctx context.Context, store *cache.Store, g *graph.Graph, id string, results map[string]artifact.Result) {
	spec, ok := g.Lookup(id)
	if !ok {
		return
	}
	depHashes := make(map[string]string, len(spec.Requires))
	for _, dep := range spec.Requires {
		if r, ok := results[dep]; ok {
			depHashes[dep] = r.ContentHash
		}
	}
	fingerprint := hasher.Fingerprint(spec.Contract, depHashes)
	_ = store.Invalidate(ctx, fingerprint)
}

// installSignalHandler cancels ctx on SIGINT/SIGTERM so an in-flight run
// persists its partial progress via the Save Run makes once the wave
// executor returns, instead of dying mid-wave.
func (o *Orchestrator) installSignalHandler(ctx context.Context, cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		defer signal.Stop(sigCh)
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
	}()
}

func (o *Orchestrator) emit(sessionID string, typ eventbus.Type, data map[string]any) {
	if o.bus != nil {
		o.bus.Publish(sessionID, typ, data)
	}
}

func buildGraph(specs []artifact.Spec) (*graph.Graph, error) {
	g := graph.New()
	for _, s := range specs {
		if err := g.Add(s); err != nil {
			return nil, err
		}
	}
	if err := g.Freeze(); err != nil {
		return nil, err
	}
	return g, nil
}

func goalFingerprintFor(goal string) string {
	return hasher.Fingerprint(goal, nil)
}
