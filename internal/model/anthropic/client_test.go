package anthropic

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/artisan/internal/model"
)

type stubMessagesClient struct {
	lastParams sdk.MessageNewParams
	resp       *sdk.Message
	err        error
	stream     *ssestream.Stream[sdk.MessageStreamEventUnion]
}

func (s *stubMessagesClient) New(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) (*sdk.Message, error) {
	s.lastParams = body
	return s.resp, s.err
}

func (s *stubMessagesClient) NewStreaming(_ context.Context, body sdk.MessageNewParams, _ ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion] {
	s.lastParams = body
	if s.stream == nil {
		s.stream = ssestream.NewStream[sdk.MessageStreamEventUnion](&noopDecoder{}, nil)
	}
	return s.stream
}

type noopDecoder struct{}

func (n *noopDecoder) Event() ssestream.Event { return ssestream.Event{} }
func (n *noopDecoder) Next() bool             { return false }
func (n *noopDecoder) Close() error           { return nil }
func (n *noopDecoder) Err() error             { return nil }

func TestGenerateTranslatesTextContent(t *testing.T) {
	stub := &stubMessagesClient{resp: &sdk.Message{
		Content: []sdk.ContentBlockUnion{{Type: "text", Text: "hello there"}},
	}}
	c, err := New(stub, Models{Standard: "claude-test"}, 0)
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), model.Request{Prompt: "hi", Tier: model.TierStandard})
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Content)
	assert.Equal(t, sdk.Model("claude-test"), stub.lastParams.Model)
}

func TestGenerateMapsRateLimitError(t *testing.T) {
	stub := &stubMessagesClient{err: errors.New("429 rate limit exceeded")}
	c, err := New(stub, Models{Standard: "claude-test"}, 0)
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), model.Request{Prompt: "hi"})
	require.Error(t, err)
	var modelErr *model.Error
	require.ErrorAs(t, err, &modelErr)
	assert.Equal(t, model.ErrorKindRateLimit, modelErr.Kind)
	assert.True(t, modelErr.Retryable())
}

func TestGenerateStreamSendsDoneOnEmptyStream(t *testing.T) {
	stub := &stubMessagesClient{}
	c, err := New(stub, Models{Standard: "claude-test"}, 0)
	require.NoError(t, err)

	out := make(chan model.Chunk, 4)
	resp, err := c.GenerateStream(context.Background(), model.Request{Prompt: "hi"}, out)
	require.NoError(t, err)
	assert.Equal(t, "", resp.Content)

	chunk := <-out
	assert.True(t, chunk.Done)
}

func TestNewRejectsMissingStandardModel(t *testing.T) {
	_, err := New(&stubMessagesClient{}, Models{}, 0)
	assert.Error(t, err)
}
