// Package anthropic adapts the Anthropic Claude Messages API to the
// model.Backend contract, mapping planner/producer requests onto
// sdk.MessageNewParams and translating both single-shot and streamed
// responses back into model.Response/model.Chunk.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/harrison/artisan/internal/model"
)

// MessagesClient captures the subset of the Anthropic SDK client the
// adapter depends on, so tests can substitute a fake.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
	NewStreaming(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) *ssestream.Stream[sdk.MessageStreamEventUnion]
}

// Models maps a request's model.Tier onto a concrete Anthropic model
// identifier.
type Models struct {
	Background string // e.g. sdk.ModelClaude3_5HaikuLatest
	Standard   string // e.g. sdk.ModelClaudeSonnet4_5
	Premium    string // e.g. sdk.ModelClaudeOpus4_5
}

// Client implements model.Backend on top of Anthropic Claude Messages.
type Client struct {
	msg       MessagesClient
	models    Models
	maxTokens int
}

// New builds an Anthropic-backed model.Backend. maxTokens bounds
// completion length when a request doesn't override it.
func New(msg MessagesClient, models Models, maxTokens int) (*Client, error) {
	if msg == nil {
		return nil, errors.New("anthropic: messages client is required")
	}
	if models.Standard == "" {
		return nil, errors.New("anthropic: a standard-tier model identifier is required")
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &Client{msg: msg, models: models, maxTokens: maxTokens}, nil
}

// NewFromAPIKey constructs a Client using the SDK's default HTTP client,
// authenticated with apiKey.
func NewFromAPIKey(apiKey string, models Models, maxTokens int) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("anthropic: api key is required")
	}
	ac := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&ac.Messages, models, maxTokens)
}

// Tier returns the tier of model this client was configured to reach for
// by default; the actual tier used per-call is driven by Request.Tier.
func (c *Client) Tier() model.Tier { return model.TierStandard }

func (c *Client) modelFor(tier model.Tier) string {
	switch tier {
	case model.TierBackground:
		if c.models.Background != "" {
			return c.models.Background
		}
	case model.TierPremium:
		if c.models.Premium != "" {
			return c.models.Premium
		}
	}
	return c.models.Standard
}

func (c *Client) params(req model.Request) sdk.MessageNewParams {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.modelFor(req.Tier)),
		MaxTokens: int64(c.maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []sdk.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}
	return params
}

// Generate issues a non-streaming Messages.New call.
func (c *Client) Generate(ctx context.Context, req model.Request) (model.Response, error) {
	msg, err := c.msg.New(ctx, c.params(req))
	if err != nil {
		return model.Response{}, translateError(req.Tier, err)
	}
	return translateMessage(req, msg), nil
}

// GenerateStream issues a streaming Messages.New call, pushing text
// deltas to out as they arrive and returning the coalesced final
// response once the stream completes.
func (c *Client) GenerateStream(ctx context.Context, req model.Request, out chan<- model.Chunk) (model.Response, error) {
	stream := c.msg.NewStreaming(ctx, c.params(req))
	defer stream.Close()

	var text strings.Builder
	for stream.Next() {
		event := stream.Current()
		delta, ok := event.AsAny().(sdk.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		textDelta, ok := delta.Delta.AsAny().(sdk.TextDelta)
		if !ok || textDelta.Text == "" {
			continue
		}
		text.WriteString(textDelta.Text)
		select {
		case out <- model.Chunk{Text: textDelta.Text}:
		case <-ctx.Done():
			return model.Response{}, translateError(req.Tier, ctx.Err())
		}
	}
	if err := stream.Err(); err != nil {
		return model.Response{}, translateError(req.Tier, err)
	}

	out <- model.Chunk{Done: true}
	return model.Response{Content: text.String(), SessionID: req.SessionID, Tier: req.Tier}, nil
}

func translateMessage(req model.Request, msg *sdk.Message) model.Response {
	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return model.Response{Content: text.String(), SessionID: req.SessionID, Tier: req.Tier}
}

func translateError(tier model.Tier, err error) error {
	kind := model.ErrorKindUnknown
	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = model.ErrorKindTimeout
	case errors.Is(err, context.Canceled):
		kind = model.ErrorKindTimeout
	case strings.Contains(msg, "429") || strings.Contains(strings.ToLower(msg), "rate limit"):
		kind = model.ErrorKindRateLimit
	case strings.Contains(msg, "529") || strings.Contains(strings.ToLower(msg), "overloaded") || strings.Contains(strings.ToLower(msg), "unavailable"):
		kind = model.ErrorKindUnavailable
	}
	return &model.Error{Kind: kind, Tier: tier, Cause: fmt.Errorf("anthropic: %w", err)}
}
