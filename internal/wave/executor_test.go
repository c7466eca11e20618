package wave

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harrison/artisan/internal/artifact"
	"github.com/harrison/artisan/internal/cache"
	"github.com/harrison/artisan/internal/eventbus"
	"github.com/harrison/artisan/internal/graph"
	"github.com/harrison/artisan/internal/hasher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustGraph(t *testing.T, specs ...artifact.Spec) *graph.Graph {
	t.Helper()
	g := graph.New()
	for _, s := range specs {
		require.NoError(t, g.Add(s))
	}
	require.NoError(t, g.Freeze())
	return g
}

func alwaysSucceed(ctx context.Context, spec artifact.Spec, deps map[string]artifact.Result) (artifact.Result, error) {
	return artifact.Result{OutputInline: "ok:" + spec.ID, Status: artifact.StatusCompleted}, nil
}

func TestRunAllSucceed(t *testing.T) {
	g := mustGraph(t, artifact.Spec{ID: "A"}, artifact.Spec{ID: "B", Requires: []string{"A"}})
	e := New(alwaysSucceed)

	results, err := e.Run(context.Background(), g, nil)
	require.NoError(t, err)
	assert.Equal(t, artifact.StatusCompleted, results["A"].Status)
	assert.Equal(t, artifact.StatusCompleted, results["B"].Status)
}

func TestFailurePropagatesBlockedToDependents(t *testing.T) {
	g := mustGraph(t,
		artifact.Spec{ID: "A"},
		artifact.Spec{ID: "B", Requires: []string{"A"}},
		artifact.Spec{ID: "C", Requires: []string{"B"}},
	)
	fn := func(ctx context.Context, spec artifact.Spec, deps map[string]artifact.Result) (artifact.Result, error) {
		if spec.ID == "A" {
			return artifact.Result{}, fmt.Errorf("boom")
		}
		return artifact.Result{Status: artifact.StatusCompleted}, nil
	}
	e := New(fn)

	results, err := e.Run(context.Background(), g, nil)
	require.NoError(t, err)
	assert.Equal(t, artifact.StatusFailed, results["A"].Status)
	assert.Equal(t, artifact.StatusBlocked, results["B"].Status)
	assert.Equal(t, artifact.StatusBlocked, results["C"].Status)
}

func TestBoundedConcurrencyNeverExceedsLimit(t *testing.T) {
	g := mustGraph(t,
		artifact.Spec{ID: "A"}, artifact.Spec{ID: "B"}, artifact.Spec{ID: "C"}, artifact.Spec{ID: "D"},
	)

	var inFlight, maxSeen atomic.Int32
	fn := func(ctx context.Context, spec artifact.Spec, deps map[string]artifact.Result) (artifact.Result, error) {
		n := inFlight.Add(1)
		for {
			m := maxSeen.Load()
			if n <= m || maxSeen.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return artifact.Result{Status: artifact.StatusCompleted}, nil
	}
	e := New(fn, WithMaxConcurrency(2))

	_, err := e.Run(context.Background(), g, nil)
	require.NoError(t, err)
	assert.LessOrEqual(t, int(maxSeen.Load()), 2)
}

func TestCacheHitSkipsProduce(t *testing.T) {
	store, err := cache.Open(t.TempDir(), 0)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(context.Background(), hasher.Fingerprint("contract-a", nil), []byte("cached-output"), 0))

	g := mustGraph(t, artifact.Spec{ID: "A", Contract: "contract-a"})

	var calls atomic.Int32
	fn := func(ctx context.Context, spec artifact.Spec, deps map[string]artifact.Result) (artifact.Result, error) {
		calls.Add(1)
		return artifact.Result{Status: artifact.StatusCompleted}, nil
	}
	e := New(fn, WithCache(store, 0))

	results, err := e.Run(context.Background(), g, nil)
	require.NoError(t, err)
	assert.Equal(t, artifact.StatusSkipped, results["A"].Status)
	assert.Equal(t, "cached-output", results["A"].OutputInline)
	assert.Equal(t, int32(0), calls.Load())
}

func TestEventsEmittedToBus(t *testing.T) {
	bus := eventbus.New()
	sub := bus.Subscribe("s1", 0)

	g := mustGraph(t, artifact.Spec{ID: "A"})
	e := New(alwaysSucceed, WithEventBus(bus, "s1"))

	_, err := e.Run(context.Background(), g, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var types []eventbus.Type
	for i := 0; i < 4; i++ {
		ev, ok := sub.Next(ctx)
		if !ok {
			break
		}
		types = append(types, ev.Type)
	}
	assert.Contains(t, types, eventbus.TypeWaveStart)
	assert.Contains(t, types, eventbus.TypeArtifactStart)
	assert.Contains(t, types, eventbus.TypeArtifactComplete)
	assert.Contains(t, types, eventbus.TypeWaveComplete)
}
