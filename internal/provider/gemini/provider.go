// Package gemini adapts the Gemini API to the provider token stream.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"google.golang.org/genai"

	"github.com/zhengjr9/vibes/internal/prompts"
	"github.com/zhengjr9/vibes/internal/provider"
)

// DefaultModel uses the flash-lite quota pool.
const DefaultModel = "gemini-2.5-flash-lite"

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("gemini: missing API key")

// Config configures the adapter.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Prompts   *prompts.Catalog
}

type streamFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]

// Provider implements provider.Provider for Gemini.
type Provider struct {
	stream    streamFunc
	model     string
	maxTokens int32
	prompts   *prompts.Catalog
}

// New constructs a Provider backed by a genai client.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	return newProvider(cfg, client.Models.GenerateContentStream), nil
}

func newProvider(cfg Config, stream streamFunc) *Provider {
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
		stream:    stream,
		model:     model,
		maxTokens: int32(maxTokens),
		prompts:   catalog,
	}
}

// Name returns provider.Gemini.
func (p *Provider) Name() provider.ID { return provider.Gemini }

// Generate starts a streaming generateContent call. The first response is
// pulled before returning so setup failures are reported synchronously.
func (p *Provider) Generate(ctx context.Context, req *provider.Request) (<-chan provider.TokenEvent, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	streamCtx, cancel := context.WithCancel(ctx)
	contents, config := p.buildContents(req)
	next, stop := iter.Pull2(p.stream(streamCtx, p.model, contents, config))

	first, err, ok := next()
	if err != nil {
		stop()
		cancel()
		return nil, fmt.Errorf("gemini: %w", provider.TransportError(err))
	}

	events := make(chan provider.TokenEvent, 16)
	go func() {
		defer close(events)
		defer cancel()
		defer stop()

		resp := first
		for ok {
			if err != nil {
				slog.Warn("gemini stream failed", "error", err)
				provider.Send(ctx, events, provider.Failed(fmt.Errorf("gemini streaming error: %w", provider.TransportError(err))))
				return
			}
			if text := responseText(resp); text != "" {
				if !provider.Send(ctx, events, provider.Text(text)) {
					return
				}
			}
			resp, err, ok = next()
		}
		provider.Send(ctx, events, provider.Done())
	}()

	return events, nil
}

// buildContents returns the single user turn and the generation config.
func (p *Provider) buildContents(req *provider.Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	userMessage := p.prompts.UserMessage(req.Prompt, req.PriorCode, req.IsModification)

	var parts []*genai.Part
	if img := req.ReferenceImage; img != nil {
		parts = append(parts,
			&genai.Part{InlineData: &genai.Blob{MIMEType: img.MediaType, Data: img.Data}},
			&genai.Part{Text: p.prompts.WithReferenceImage(userMessage)},
		)
	} else {
		parts = append(parts, &genai.Part{Text: p.prompts.UserRequest + userMessage})
	}

	contents := []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: p.prompts.System}}},
		MaxOutputTokens:   p.maxTokens,
	}
	return contents, config
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && !part.Thought {
			text += part.Text
		}
	}
	return text
}
