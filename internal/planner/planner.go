// Package planner implements the harmonic planner: it asks a model backend
// for several independent candidate plans, scores each by how well it
// parallelizes work, and returns the winner (spec component C4).
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/harrison/artisan/internal/artifact"
	"github.com/harrison/artisan/internal/eventbus"
	"github.com/harrison/artisan/internal/graph"
	"github.com/harrison/artisan/internal/model"
)

// Options configures a single planning run.
type Options struct {
	Candidates       int     // number of parallel candidates to generate, >= 1
	Tier             model.Tier
	MaxRefinements   int     // 0 disables the refinement loop
	Bus              *eventbus.Bus
	SessionID        string
}

// Result is a scored, frozen candidate graph plus the metadata needed to
// explain why it won.
type Result struct {
	Graph           *graph.Graph
	Score           float64
	CandidateIndex  int
	Refined         bool
	RefinementSteps int
}

// candidatePayload mirrors the schema in schema.go: a flat artifact list
// the model returns for a single candidate.
type candidatePayload struct {
	Artifacts []struct {
		ID           string   `json:"id"`
		Description  string   `json:"description"`
		Contract     string   `json:"contract"`
		Requires     []string `json:"requires"`
		Modifies     []string `json:"modifies"`
		ProducesFile string   `json:"produces_file"`
		DomainType   string   `json:"domain_type"`
	} `json:"artifacts"`
}

// Plan generates opts.Candidates independent candidates for goal, scores
// each, and returns the highest-scoring frozen graph. When opts.MaxRefinements
// > 0, it then asks the model to strictly improve on the winner up to that
// many times, keeping a refinement only if its score is a strict
// improvement (no epsilon tolerance: ties do not replace the incumbent).
func Plan(ctx context.Context, backend model.Backend, goalFingerprint, goalPrompt string, opts Options) (*Result, error) {
	if opts.Candidates < 1 {
		opts.Candidates = 1
	}

	emit := func(typ eventbus.Type, data interface{}) {
		if opts.Bus != nil {
			opts.Bus.Publish(opts.SessionID, typ, data)
		}
	}

	emit(eventbus.TypePlanningStart, map[string]any{"goal_fingerprint": goalFingerprint, "candidates": opts.Candidates})

	type outcome struct {
		idx   int
		g     *graph.Graph
		score float64
		err   error
	}

	results := make([]outcome, opts.Candidates)
	var wg sync.WaitGroup
	for i := 0; i < opts.Candidates; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			g, s, err := generateCandidate(ctx, backend, goalPrompt, opts.Tier, idx)
			results[idx] = outcome{idx: idx, g: g, score: s, err: err}
			if err == nil {
				emit(eventbus.TypePlanCandidate, map[string]any{"index": idx, "score": s})
			}
		}(i)
	}
	wg.Wait()

	var best *outcome
	var errs []error
	for i := range results {
		r := &results[i]
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		if best == nil || betterCandidate(r.score, r.idx, best.score, best.idx) {
			best = r
		}
	}

	if best == nil {
		emit(eventbus.TypePlanningFailed, map[string]any{"goal_fingerprint": goalFingerprint})
		return nil, &PlanningError{GoalFingerprint: goalFingerprint, CandidateErrors: errs}
	}

	result := &Result{Graph: best.g, Score: best.score, CandidateIndex: best.idx}

	for step := 0; step < opts.MaxRefinements; step++ {
		g, s, err := generateCandidate(ctx, backend, refinementPrompt(goalPrompt, result.Score), opts.Tier, opts.Candidates+step)
		if err != nil {
			break
		}
		if s <= result.Score {
			break // strict improvement required; ties and regressions stop the loop
		}
		result.Graph = g
		result.Score = s
		result.Refined = true
		result.RefinementSteps++
	}

	emit(eventbus.TypePlanWinner, map[string]any{
		"goal_fingerprint": goalFingerprint,
		"score":            result.Score,
		"refined":          result.Refined,
	})
	return result, nil
}

// betterCandidate implements the tie-break order: higher score wins; on an
// exact tie, the lower-indexed (first-generated) candidate wins, so
// selection is deterministic given identical inputs. Wave count, artifact
// count and artifact IDs are not compared.
func betterCandidate(scoreA float64, idxA int, scoreB float64, idxB int) bool {
	if scoreA != scoreB {
		return scoreA > scoreB
	}
	return idxA < idxB
}

func generateCandidate(ctx context.Context, backend model.Backend, prompt string, tier model.Tier, idx int) (*graph.Graph, float64, error) {
	temperature := 0.2 + float64(idx%5)*0.15
	req := model.Request{
		Prompt:         prompt,
		Schema:         candidateSchema,
		Tier:           tier,
		Temperature:    temperature,
		ConstraintHint: constraintHint(idx),
	}

	resp, err := backend.Generate(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("candidate %d: backend: %w", idx, err)
	}

	if err := validateCandidateJSON([]byte(resp.Content)); err != nil {
		return nil, 0, fmt.Errorf("candidate %d: schema: %w", idx, err)
	}

	var payload candidatePayload
	if err := json.Unmarshal([]byte(resp.Content), &payload); err != nil {
		return nil, 0, fmt.Errorf("candidate %d: decode: %w", idx, err)
	}

	g := graph.New()
	for _, a := range payload.Artifacts {
		spec := artifact.Spec{
			ID:           a.ID,
			Description:  a.Description,
			Contract:     a.Contract,
			Requires:     a.Requires,
			Modifies:     a.Modifies,
			ProducesFile: a.ProducesFile,
			DomainType:   a.DomainType,
		}
		if err := g.Add(spec); err != nil {
			return nil, 0, fmt.Errorf("candidate %d: %w", idx, err)
		}
	}
	if err := g.Freeze(); err != nil {
		return nil, 0, fmt.Errorf("candidate %d: %w", idx, err)
	}

	waves, err := g.Waves()
	if err != nil {
		return nil, 0, fmt.Errorf("candidate %d: %w", idx, err)
	}

	specs := make(map[string]*artifact.Spec, g.Len())
	for _, id := range g.IDs() {
		s, _ := g.Lookup(id)
		cp := s
		specs[id] = &cp
	}

	return g, score(waves, specs), nil
}

// constraintHint picks a per-candidate structural hint, sent as
// Request.ConstraintHint alongside a per-candidate temperature, so parallel
// generations differ; the prompt text is the same for every candidate.
func constraintHint(idx int) string {
	hints := []string{
		"maximize parallelism across waves",
		"minimize total artifact count",
		"prefer balanced wave sizes",
		"minimize shared-file coupling between artifacts",
		"prefer the shallowest dependency depth possible",
	}
	return hints[idx%len(hints)]
}

func refinementPrompt(goalPrompt string, currentScore float64) string {
	return fmt.Sprintf("%s\n\nImprove on the previous plan (score %.2f): increase parallelism or reduce depth without breaking any dependency.", goalPrompt, currentScore)
}
