// Package anthropic adapts Anthropic's Messages API to the provider token stream.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/zhengjr9/vibes/internal/prompts"
	"github.com/zhengjr9/vibes/internal/provider"
)

// DefaultModel is the model used when Config.Model is empty.
const DefaultModel = "claude-sonnet-4-20250514"

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("anthropic: missing API key")

// Config configures the adapter.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	// MaxRetries is the SDK retry count; negative keeps the SDK default.
	MaxRetries int
	Prompts    *prompts.Catalog
}

// Provider implements provider.Provider for Claude.
type Provider struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
	prompts   *prompts.Catalog
}

// New constructs a Provider. Extra request options are appended after the
// options derived from cfg.
func New(cfg Config, extra ...option.RequestOption) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	opts = append(opts, extra...)

	client := anthropic.NewClient(opts...)

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	catalog := cfg.Prompts
	if catalog == nil {
		catalog = prompts.Default()
	}
	return &Provider{
		client:    &client,
		model:     model,
		maxTokens: int64(maxTokens),
		prompts:   catalog,
	}, nil
}

// Name returns provider.Claude.
func (p *Provider) Name() provider.ID { return provider.Claude }

// Generate opens a streaming Messages request. The first upstream event is read
// before returning so that HTTP-level failures are reported synchronously.
func (p *Provider) Generate(ctx context.Context, req *provider.Request) (<-chan provider.TokenEvent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	params := p.buildParams(req)
	stream := p.client.Messages.NewStreaming(ctx, params)

	if !stream.Next() {
		err := stream.Err()
		_ = stream.Close()
		if err != nil {
			return nil, fmt.Errorf("anthropic: %w", provider.TransportError(err))
		}
		ch := make(chan provider.TokenEvent, 1)
		ch <- provider.Done()
		close(ch)
		return ch, nil
	}

	events := make(chan provider.TokenEvent, 16)
	go func() {
		defer close(events)
		defer stream.Close()

		for {
			if text, ok := textDelta(stream.Current()); ok && text != "" {
				if !provider.Send(ctx, events, provider.Text(text)) {
					return
				}
			}
			if !stream.Next() {
				break
			}
		}

		if err := stream.Err(); err != nil {
			slog.Warn("anthropic stream failed", "error", err)
			provider.Send(ctx, events, provider.Failed(fmt.Errorf("anthropic streaming error: %w", provider.TransportError(err))))
			return
		}
		provider.Send(ctx, events, provider.Done())
	}()

	return events, nil
}

// buildParams constructs the Messages request for req.
func (p *Provider) buildParams(req *provider.Request) anthropic.MessageNewParams {
	userMessage := p.prompts.UserMessage(req.Prompt, req.PriorCode, req.IsModification)

	var blocks []anthropic.ContentBlockParamUnion
	if img := req.ReferenceImage; img != nil {
		blocks = append(blocks,
			anthropic.NewImageBlockBase64(img.MediaType, img.Base64()),
			anthropic.NewTextBlock(p.prompts.WithReferenceImage(userMessage)),
		)
	} else {
		blocks = append(blocks, anthropic.NewTextBlock(userMessage))
	}

	return anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: p.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: p.prompts.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(blocks...),
		},
	}
}

// textDelta extracts generated text from a stream event. Only text deltas
// carry code; every other event type is bookkeeping.
func textDelta(event anthropic.MessageStreamEventUnion) (string, bool) {
	switch e := event.AsAny().(type) {
	case anthropic.ContentBlockDeltaEvent:
		if e.Delta.Type == "text_delta" {
			return e.Delta.Text, true
		}
	}
	return "", false
}
