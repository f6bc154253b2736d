// Package lorem is an offline provider that streams a small p5.js sketch
// decorated with lorem ipsum comments. It needs no API key and is used for
// tests and for running the service without credentials.
package lorem

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	loremgen "github.com/bozaro/golorem"

	"github.com/zhengjr9/vibes/internal/provider"
)

// Option configures a Provider.
type Option func(*Provider)

// WithSetupError makes Generate fail synchronously with err.
func WithSetupError(err error) Option {
	return func(p *Provider) { p.setupErr = err }
}

// WithStreamError makes the stream fail with err after emitting n chunks.
func WithStreamError(n int, err error) Option {
	return func(p *Provider) { p.failAfter, p.streamErr = n, err }
}

// WithChunks replaces the generated sketch with fixed chunks.
func WithChunks(chunks ...string) Option {
	return func(p *Provider) { p.chunks = chunks }
}

// WithDelay sleeps between chunks.
func WithDelay(d time.Duration) Option {
	return func(p *Provider) { p.delay = d }
}

// Provider is a mock provider occupying either provider slot.
type Provider struct {
	id        provider.ID
	generator *loremgen.Lorem
	chunks    []string
	delay     time.Duration
	setupErr  error
	streamErr error
	failAfter int
	calls     atomic.Int32
}

// New creates a lorem provider answering as id.
func New(id provider.ID, opts ...Option) *Provider {
	p := &Provider{id: id, generator: loremgen.New()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the slot this provider answers for.
func (p *Provider) Name() provider.ID { return p.id }

// Calls returns how many times Generate has been invoked.
func (p *Provider) Calls() int { return int(p.calls.Load()) }

// Generate streams the configured chunks, or a generated sketch word by word.
func (p *Provider) Generate(ctx context.Context, req *provider.Request) (<-chan provider.TokenEvent, error) {
	p.calls.Add(1)
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if p.setupErr != nil {
		return nil, p.setupErr
	}

	chunks := p.chunks
	if chunks == nil {
		chunks = splitWords(p.sketch(req))
	}

	events := make(chan provider.TokenEvent, 16)
	go func() {
		defer close(events)
		for i, c := range chunks {
			if p.streamErr != nil && i == p.failAfter {
				provider.Send(ctx, events, provider.Failed(p.streamErr))
				return
			}
			if p.delay > 0 {
				select {
				case <-time.After(p.delay):
				case <-ctx.Done():
					return
				}
			}
			if !provider.Send(ctx, events, provider.Text(c)) {
				return
			}
		}
		if p.streamErr != nil && p.failAfter >= len(chunks) {
			provider.Send(ctx, events, provider.Failed(p.streamErr))
			return
		}
		provider.Send(ctx, events, provider.Done())
	}()
	return events, nil
}

// sketch builds a runnable p5.js program whose header comment echoes the prompt.
func (p *Provider) sketch(req *provider.Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "// %s\n", strings.TrimSpace(req.Prompt))
	fmt.Fprintf(&sb, "// %s\n", p.generator.Sentence(5, 12))
	sb.WriteString("let x, y, dx, dy;\n\n")
	sb.WriteString("function setup() {\n")
	sb.WriteString("  createCanvas(window.__canvasWidth || 400, window.__canvasHeight || 400);\n")
	sb.WriteString("  x = width / 2;\n  y = height / 2;\n  dx = 3;\n  dy = 2;\n}\n\n")
	sb.WriteString("function draw() {\n")
	sb.WriteString("  background(30, 20, 50);\n")
	sb.WriteString("  x += dx;\n  y += dy;\n")
	sb.WriteString("  if (x < 25 || x > width - 25) dx *= -1;\n")
	sb.WriteString("  if (y < 25 || y > height - 25) dy *= -1;\n")
	sb.WriteString("  fill(255, 100, 150);\n  noStroke();\n  ellipse(x, y, 50, 50);\n}\n")
	return sb.String()
}

// splitWords splits s after every space or newline so that the chunks
// concatenate back to s exactly.
func splitWords(s string) []string {
	var chunks []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' || s[i] == '\n' {
			chunks = append(chunks, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		chunks = append(chunks, s[start:])
	}
	return chunks
}
