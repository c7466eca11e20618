package produce

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/artisan/internal/artifact"
	"github.com/harrison/artisan/internal/hasher"
	"github.com/harrison/artisan/internal/model"
)

// ModelWriter is a default produce.Func that asks a model.Backend to
// satisfy an artifact's contract and writes the result to disk at
// spec.ProducesFile (or returns it inline when ProducesFile is unset).
// It is the simplest concrete implementation of the produce callback the
// core treats as an opaque external collaborator.
type ModelWriter struct {
	Backend model.Backend
	Tier    model.Tier
	RootDir string // base directory ProducesFile paths are resolved under
}

// Produce satisfies produce.Func.
func (w *ModelWriter) Produce(ctx context.Context, spec artifact.Spec, deps map[string]artifact.Result) (artifact.Result, error) {
	req := model.Request{
		Prompt:         w.prompt(spec, deps),
		Tier:           w.Tier,
		SessionID:      spec.ID,
		ConstraintHint: spec.DomainType,
	}

	resp, err := w.Backend.Generate(ctx, req)
	if err != nil {
		return artifact.Result{}, &Error{ArtifactID: spec.ID, Kind: ErrorKindModelFailure, Cause: err}
	}

	res := artifact.Result{
		ArtifactID: spec.ID,
		Status:     artifact.StatusCompleted,
		ModelTier:  string(resp.Tier),
	}

	if spec.ProducesFile == "" {
		res.OutputInline = resp.Content
		res.ContentHash = hasher.HashBytes([]byte(resp.Content))
		return res, nil
	}

	path := spec.ProducesFile
	if w.RootDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(w.RootDir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return artifact.Result{}, &Error{ArtifactID: spec.ID, Kind: ErrorKindWriteFailure, Cause: err}
	}
	if err := os.WriteFile(path, []byte(resp.Content), 0o644); err != nil {
		return artifact.Result{}, &Error{ArtifactID: spec.ID, Kind: ErrorKindWriteFailure, Cause: err}
	}

	res.OutputPath = path
	res.ContentHash = hasher.HashBytes([]byte(resp.Content))
	return res, nil
}

func (w *ModelWriter) prompt(spec artifact.Spec, deps map[string]artifact.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Satisfy the following contract for artifact %q:\n%s\n", spec.ID, spec.Contract)
	if len(deps) > 0 {
		b.WriteString("\nDependency outputs:\n")
		for id, res := range deps {
			content := res.OutputInline
			if content == "" {
				content = res.OutputPath
			}
			fmt.Fprintf(&b, "- %s: %s\n", id, content)
		}
	}
	return b.String()
}
