// Package a2a exposes the generation pipeline as an A2A agent.
package a2a

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/model"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/zhengjr9/vibes/internal/orchestrator"
	"github.com/zhengjr9/vibes/internal/prompts"
	"github.com/zhengjr9/vibes/internal/provider"
)

// Generator starts a generation. *orchestrator.Orchestrator implements it.
type Generator interface {
	Generate(ctx context.Context, req *provider.Request) (*orchestrator.Result, error)
}

// AgentConfig holds the configuration for the A2A agent.
type AgentConfig struct {
	// Name is the agent name exposed via A2A AgentCard.
	Name string
	// Description is exposed via A2A AgentCard.
	Description string
	// Generator runs each invocation.
	Generator Generator
	// Preference is the provider asked for first; empty uses the default.
	Preference provider.ID
}

// New returns an agent.Agent whose Run streams a generated sketch for the
// user's message. Text parts form the prompt and the first inline image is
// used as a reference image.
func New(cfg AgentConfig) (agent.Agent, error) {
	if cfg.Name == "" {
		return nil, errors.New("a2a agent: Name must not be empty")
	}
	if cfg.Generator == nil {
		return nil, errors.New("a2a agent: Generator must not be nil")
	}

	return agent.New(agent.Config{
		Name:        cfg.Name,
		Description: cfg.Description,
		Run:         runFunc(cfg),
	})
}

// runFunc returns the Run closure that drives one agent invocation.
func runFunc(cfg AgentConfig) func(agent.InvocationContext) iter.Seq2[*session.Event, error] {
	return func(ctx agent.InvocationContext) iter.Seq2[*session.Event, error] {
		return func(yield func(*session.Event, error) bool) {
			newEvent := func(text string, partial bool) *session.Event {
				ev := session.NewEvent(ctx.InvocationID())
				ev.Author = cfg.Name
				ev.Branch = ctx.Branch()
				ev.LLMResponse = model.LLMResponse{
					Content: textContent(text),
					Partial: partial,
				}
				return ev
			}

			req := requestFromContent(ctx.UserContent(), cfg.Preference)
			if err := req.Validate(); err != nil {
				yield(newEvent("(empty input)", false), nil)
				return
			}
			slog.Info("a2a generation",
				"invocation", ctx.InvocationID(),
				"prompt_tokens", prompts.EstimateTokens(req.Prompt),
				"has_image", req.ReferenceImage != nil,
			)

			// Cancelling releases the provider stream when the consumer stops early.
			genCtx, cancel := context.WithCancel(ctx)
			defer cancel()

			res, err := cfg.Generator.Generate(genCtx, req)
			if err != nil {
				yield(nil, fmt.Errorf("generation failed: %w", err))
				return
			}

			var fullText strings.Builder
			for ev := range res.Events {
				switch ev.Kind {
				case provider.KindText:
					fullText.WriteString(ev.Text)
					// Partial events let streaming A2A clients render tokens as they arrive.
					if !yield(newEvent(ev.Text, true), nil) {
						return
					}
				case provider.KindError:
					yield(nil, fmt.Errorf("%s stream error: %w", res.Provider, ev.Err))
					return
				case provider.KindDone:
					// The final non-partial event makes IsFinalResponse() true so
					// the runner closes the invocation.
					yield(newEvent(fullText.String(), false), nil)
					return
				}
			}
			yield(nil, fmt.Errorf("%s stream ended without completing", res.Provider))
		}
	}
}

// requestFromContent builds a generation request from the caller's message.
func requestFromContent(content *genai.Content, pref provider.ID) *provider.Request {
	req := &provider.Request{Preference: pref}
	if content == nil {
		return req
	}
	var sb strings.Builder
	for _, part := range content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
		if part.InlineData != nil && req.ReferenceImage == nil && strings.HasPrefix(part.InlineData.MIMEType, "image/") {
			req.ReferenceImage = &provider.Image{
				MediaType: part.InlineData.MIMEType,
				Data:      part.InlineData.Data,
			}
		}
	}
	req.Prompt = strings.TrimSpace(sb.String())
	return req
}

// textContent is a small helper that wraps a string into a *genai.Content.
func textContent(text string) *genai.Content {
	return &genai.Content{
		Role:  genai.RoleModel,
		Parts: []*genai.Part{{Text: text}},
	}
}
