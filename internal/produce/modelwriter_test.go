package produce

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/artisan/internal/artifact"
	"github.com/harrison/artisan/internal/model"
)

type fakeBackend struct {
	content string
	err     error
}

func (f *fakeBackend) Generate(ctx context.Context, req model.Request) (model.Response, error) {
	if f.err != nil {
		return model.Response{}, f.err
	}
	return model.Response{Content: f.content, Tier: req.Tier}, nil
}

func (f *fakeBackend) GenerateStream(ctx context.Context, req model.Request, out chan<- model.Chunk) (model.Response, error) {
	return f.Generate(ctx, req)
}

func TestModelWriterWritesProducesFileToRootDir(t *testing.T) {
	dir := t.TempDir()
	w := &ModelWriter{Backend: &fakeBackend{content: "package main\n"}, RootDir: dir}

	spec := artifact.Spec{ID: "A", Contract: "write main.go", ProducesFile: "main.go"}
	res, err := w.Produce(context.Background(), spec, nil)
	require.NoError(t, err)
	assert.Equal(t, artifact.StatusCompleted, res.Status)
	assert.Equal(t, filepath.Join(dir, "main.go"), res.OutputPath)

	data, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", string(data))
}

func TestModelWriterReturnsInlineWithoutProducesFile(t *testing.T) {
	w := &ModelWriter{Backend: &fakeBackend{content: "hello"}}
	res, err := w.Produce(context.Background(), artifact.Spec{ID: "A", Contract: "say hello"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", res.OutputInline)
	assert.NotEmpty(t, res.ContentHash)
}

func TestModelWriterWrapsBackendFailure(t *testing.T) {
	w := &ModelWriter{Backend: &fakeBackend{err: assert.AnError}}
	_, err := w.Produce(context.Background(), artifact.Spec{ID: "A"}, nil)
	require.Error(t, err)
	var produceErr *Error
	require.ErrorAs(t, err, &produceErr)
	assert.Equal(t, ErrorKindModelFailure, produceErr.Kind)
}
