package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/harrison/artisan/internal/artifact"
	"github.com/harrison/artisan/internal/cache"
	"github.com/harrison/artisan/internal/eventbus"
	"github.com/harrison/artisan/internal/hasher"
	"github.com/harrison/artisan/internal/model"
	"github.com/harrison/artisan/internal/planstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	body string
}

func (f *fakeBackend) Generate(ctx context.Context, req model.Request) (model.Response, error) {
	return model.Response{Content: f.body}, nil
}

func (f *fakeBackend) GenerateStream(ctx context.Context, req model.Request, out chan<- model.Chunk) (model.Response, error) {
	return f.Generate(ctx, req)
}

const twoArtifactPlan = `{"artifacts":[
  {"id":"A","contract":"a"},
  {"id":"B","contract":"b","requires":["A"]}
]}`

func alwaysSucceed(ctx context.Context, spec artifact.Spec, deps map[string]artifact.Result) (artifact.Result, error) {
	return artifact.Result{OutputInline: "ok:" + spec.ID, Status: artifact.StatusCompleted}, nil
}

func TestRunPlansAndExecutesToCompletion(t *testing.T) {
	plans, err := planstore.Open(t.TempDir())
	require.NoError(t, err)
	bus := eventbus.New()
	backend := &fakeBackend{body: twoArtifactPlan}

	o := New(backend, alwaysSucceed, plans, bus)
	record, err := o.Run(context.Background(), "build the thing", Options{Candidates: 1, SessionID: "s1"})
	require.NoError(t, err)
	assert.True(t, record.Complete)
	assert.Equal(t, artifact.StatusCompleted, record.Results["A"].Status)
	assert.Equal(t, artifact.StatusCompleted, record.Results["B"].Status)
}

func TestRunPersistsRecordForResume(t *testing.T) {
	dir := t.TempDir()
	plans, err := planstore.Open(dir)
	require.NoError(t, err)
	backend := &fakeBackend{body: twoArtifactPlan}

	o := New(backend, alwaysSucceed, plans, nil)
	_, err = o.Run(context.Background(), "build the thing", Options{Candidates: 1})
	require.NoError(t, err)

	fingerprint := goalFingerprintFor("build the thing")
	reopened, err := planstore.Open(dir)
	require.NoError(t, err)
	loaded, err := reopened.Load(fingerprint)
	require.NoError(t, err)
	assert.True(t, loaded.Complete)
}

func TestRunResumesIncompleteRecordWithoutReplanning(t *testing.T) {
	plans, err := planstore.Open(t.TempDir())
	require.NoError(t, err)
	fingerprint := goalFingerprintFor("build the thing")

	rec := planstore.NewRecord(fingerprint, "build the thing",
		[]artifact.Spec{{ID: "A"}, {ID: "B", Requires: []string{"A"}}},
		[][]string{{"A"}, {"B"}}, 10)
	rec.Results["A"] = artifact.Result{ArtifactID: "A", Status: artifact.StatusCompleted}
	require.NoError(t, plans.Save(rec))

	var calls int
	fn := func(ctx context.Context, spec artifact.Spec, deps map[string]artifact.Result) (artifact.Result, error) {
		calls++
		return artifact.Result{Status: artifact.StatusCompleted}, nil
	}

	backend := &fakeBackend{body: "should not be called"}
	o := New(backend, fn, plans, nil)
	record, err := o.Run(context.Background(), "build the thing", Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls) // only B re-runs; A was already terminal
	assert.True(t, record.Complete)
}

func TestRunCancellationPausesRun(t *testing.T) {
	plans, err := planstore.Open(t.TempDir())
	require.NoError(t, err)
	backend := &fakeBackend{body: twoArtifactPlan}

	slow := func(ctx context.Context, spec artifact.Spec, deps map[string]artifact.Result) (artifact.Result, error) {
		select {
		case <-time.After(200 * time.Millisecond):
			return artifact.Result{Status: artifact.StatusCompleted}, nil
		case <-ctx.Done():
			return artifact.Result{}, ctx.Err()
		}
	}

	o := New(backend, slow, plans, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = o.Run(ctx, "build the thing", Options{Candidates: 1})
	assert.Error(t, err)
}

// TestRunUnchangedRerunSkipsExecutionEntirely exercises P5: re-running a
// completed goal with nothing changed on disk or in the plan must compute a
// rebuild set of size zero and never touch the wave executor at all.
func TestRunUnchangedRerunSkipsExecutionEntirely(t *testing.T) {
	plans, err := planstore.Open(t.TempDir())
	require.NoError(t, err)
	backend := &fakeBackend{body: twoArtifactPlan}

	var calls int
	fn := func(ctx context.Context, spec artifact.Spec, deps map[string]artifact.Result) (artifact.Result, error) {
		calls++
		return artifact.Result{OutputInline: "ok:" + spec.ID, Status: artifact.StatusCompleted}, nil
	}

	o := New(backend, fn, plans, nil)
	first, err := o.Run(context.Background(), "build the thing", Options{Candidates: 1})
	require.NoError(t, err)
	require.True(t, first.Complete)
	require.Equal(t, 2, calls)

	second, err := o.Run(context.Background(), "build the thing", Options{Candidates: 1, ForceReplan: true})
	require.NoError(t, err)
	assert.True(t, second.Complete)
	assert.Equal(t, 2, calls, "unchanged re-run must not invoke produce again")
	assert.Equal(t, first.Results["A"].ContentHash, second.Results["A"].ContentHash)
}

// TestRunOutputModifiedCascadesToDependents exercises the scenario 5
// cascade: P has no deps, Q requires P, R requires Q. An out-of-band edit
// to P's produced file must force P, Q, and R to all re-produce on the next
// run, even though P's contract and fingerprint are unchanged.
func TestRunOutputModifiedCascadesToDependents(t *testing.T) {
	dir := t.TempDir()
	plans, err := planstore.Open(filepath.Join(dir, "plans"))
	require.NoError(t, err)
	store, err := cache.Open(filepath.Join(dir, "cache"), 0)
	require.NoError(t, err)
	defer store.Close()

	pPath := filepath.Join(dir, "p.txt")
	const chainPlan = `{"artifacts":[
	  {"id":"P","contract":"p","produces_file":"p.txt"},
	  {"id":"Q","contract":"q","requires":["P"]},
	  {"id":"R","contract":"r","requires":["Q"]}
	]}`
	backend := &fakeBackend{body: chainPlan}

	calls := map[string]int{}
	fn := func(ctx context.Context, spec artifact.Spec, deps map[string]artifact.Result) (artifact.Result, error) {
		calls[spec.ID]++
		res := artifact.Result{Status: artifact.StatusCompleted}
		if spec.ID == "P" {
			content := []byte("version-1")
			require.NoError(t, os.WriteFile(pPath, content, 0o644))
			res.OutputPath = pPath
			res.ContentHash = hasher.HashBytes(content)
		} else {
			res.OutputInline = "ok:" + spec.ID
		}
		return res, nil
	}

	o := New(backend, fn, plans, nil)
	first, err := o.Run(context.Background(), "build the chain", Options{Candidates: 1, Cache: store})
	require.NoError(t, err)
	require.True(t, first.Complete)
	require.Equal(t, 1, calls["P"])
	require.Equal(t, 1, calls["Q"])
	require.Equal(t, 1, calls["R"])

	// out-of-band edit: P's produced file changes without touching its contract.
	require.NoError(t, os.WriteFile(pPath, []byte("version-2"), 0o644))

	second, err := o.Run(context.Background(), "build the chain", Options{Candidates: 1, ForceReplan: true, Cache: store})
	require.NoError(t, err)
	assert.True(t, second.Complete)
	assert.Equal(t, 2, calls["P"], "P must re-produce: its output was modified externally")
	assert.Equal(t, 2, calls["Q"], "Q must cascade-rebuild from P")
	assert.Equal(t, 2, calls["R"], "R must cascade-rebuild from Q")
}
