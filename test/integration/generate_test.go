package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zhengjr9/vibes/internal/client"
	"github.com/zhengjr9/vibes/internal/config"
	"github.com/zhengjr9/vibes/internal/creation"
	"github.com/zhengjr9/vibes/internal/orchestrator"
	"github.com/zhengjr9/vibes/internal/project"
	"github.com/zhengjr9/vibes/internal/provider"
	"github.com/zhengjr9/vibes/internal/server"
	"github.com/zhengjr9/vibes/test/testutil"
)

const testAPIKey = "test-api-key-12345"

type upstreams struct {
	anthropic *testutil.MockAnthropic
	gemini    *testutil.MockGemini
}

// newTestServer wires the real providers against the given mocks. A nil mock
// leaves that provider unconfigured.
func newTestServer(t *testing.T, up upstreams) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		ListenAddr:         ":0",
		MaxOutputTokens:    4096,
		ProviderMaxRetries: 0,
		ProviderTimeout:    10 * time.Second,
	}
	if up.anthropic != nil {
		cfg.AnthropicAPIKey = testAPIKey
		cfg.AnthropicBaseURL = up.anthropic.URL()
	}
	if up.gemini != nil {
		cfg.GoogleAPIKey = testAPIKey
		cfg.GeminiBaseURL = up.gemini.URL()
	}

	ctx := context.Background()
	orch, err := orchestrator.FromConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("orchestrator: %v", err)
	}
	store, err := project.Open(ctx, filepath.Join(t.TempDir(), "projects.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := server.New(cfg, server.Deps{Generator: orch, Projects: store})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

type collector struct {
	chunks   []string
	complete string
	message  string
	info     *client.ErrorInfo
}

func (c *collector) callbacks() client.Callbacks {
	return client.Callbacks{
		OnChunk:    func(s string) { c.chunks = append(c.chunks, s) },
		OnComplete: func(s string) { c.complete = s },
		OnError: func(msg string, info *client.ErrorInfo) {
			c.message, c.info = msg, info
		},
	}
}

func TestGenerate_Anthropic(t *testing.T) {
	mock := testutil.NewMockAnthropic("function setup() {", " createCanvas(400, 400); }")
	defer mock.Close()
	ts := newTestServer(t, upstreams{anthropic: mock})

	var c collector
	gen := client.New(ts.URL).NewGenerator(c.callbacks())
	out := gen.Generate(context.Background(), "bouncing ball", "", "")

	if out.Err != nil {
		t.Fatalf("unexpected error: %+v", out.Err)
	}
	if out.Provider != provider.Claude {
		t.Errorf("provider = %q, want claude", out.Provider)
	}
	want := "function setup() { createCanvas(400, 400); }"
	if out.FullText != want || c.complete != want {
		t.Errorf("text = %q / %q, want %q", out.FullText, c.complete, want)
	}
	if len(c.chunks) != 2 {
		t.Errorf("chunks = %q, want 2", c.chunks)
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("anthropic requests = %d, want 1", len(reqs))
	}
	if reqs[0]["stream"] != true {
		t.Errorf("stream = %v, want true", reqs[0]["stream"])
	}
	if mt, _ := reqs[0]["max_tokens"].(float64); mt != 4096 {
		t.Errorf("max_tokens = %v, want 4096", reqs[0]["max_tokens"])
	}
	if !strings.Contains(flatten(reqs[0]["messages"]), "bouncing ball") {
		t.Errorf("prompt not forwarded: %v", reqs[0]["messages"])
	}
}

func TestGenerate_GeminiPreferred(t *testing.T) {
	a := testutil.NewMockAnthropic("from claude")
	defer a.Close()
	g := testutil.NewMockGemini("from ", "gemini")
	defer g.Close()
	ts := newTestServer(t, upstreams{anthropic: a, gemini: g})

	gen := client.New(ts.URL).NewGenerator(client.Callbacks{})
	gen.SetProvider(provider.Gemini)
	out := gen.Generate(context.Background(), "a rainbow", "", "")

	if out.Err != nil {
		t.Fatalf("unexpected error: %+v", out.Err)
	}
	if out.Provider != provider.Gemini || out.FullText != "from gemini" {
		t.Errorf("got %q from %q", out.FullText, out.Provider)
	}
	if n := len(a.Requests()); n != 0 {
		t.Errorf("anthropic requests = %d, want 0", n)
	}
	paths := g.Paths()
	if len(paths) != 1 || !strings.Contains(paths[0], "gemini-2.5-flash-lite") {
		t.Errorf("gemini paths = %v", paths)
	}
}

func TestGenerate_Modification(t *testing.T) {
	mock := testutil.NewMockAnthropic("function draw() { background(255); }")
	defer mock.Close()
	ts := newTestServer(t, upstreams{anthropic: mock})

	prior := "function draw() { background(0); }"
	out := client.New(ts.URL).NewGenerator(client.Callbacks{}).
		Generate(context.Background(), "make it white", prior, "")
	if out.Err != nil {
		t.Fatalf("unexpected error: %+v", out.Err)
	}

	reqs := mock.Requests()
	if len(reqs) != 1 {
		t.Fatalf("anthropic requests = %d", len(reqs))
	}
	msgs := flatten(reqs[0]["messages"])
	for _, s := range []string{"background(0)", "make it white"} {
		if !strings.Contains(msgs, s) {
			t.Errorf("modification request missing %q: %s", s, msgs)
		}
	}
}

func TestGenerate_FallbackOnCredit(t *testing.T) {
	a := testutil.NewMockAnthropic()
	a.Fail(http.StatusBadRequest, "invalid_request_error", "Your credit balance is too low to access the Anthropic API.")
	defer a.Close()
	g := testutil.NewMockGemini("fallback ", "code")
	defer g.Close()
	ts := newTestServer(t, upstreams{anthropic: a, gemini: g})

	out := client.New(ts.URL).NewGenerator(client.Callbacks{}).
		Generate(context.Background(), "bouncing ball", "", "")
	if out.Err != nil {
		t.Fatalf("unexpected error: %+v", out.Err)
	}
	if out.Provider != provider.Gemini {
		t.Errorf("provider = %q, want gemini", out.Provider)
	}
	if out.FullText != "fallback code" {
		t.Errorf("text = %q", out.FullText)
	}
	if len(a.Requests()) != 1 || len(g.Requests()) != 1 {
		t.Errorf("requests: anthropic=%d gemini=%d, want 1 each", len(a.Requests()), len(g.Requests()))
	}
}

func TestGenerate_FallbackOnQuota(t *testing.T) {
	a := testutil.NewMockAnthropic("claude ", "rescue")
	defer a.Close()
	g := testutil.NewMockGemini()
	g.Fail(http.StatusTooManyRequests, "Resource has been exhausted (e.g. check quota).")
	defer g.Close()
	ts := newTestServer(t, upstreams{anthropic: a, gemini: g})

	gen := client.New(ts.URL).NewGenerator(client.Callbacks{})
	gen.SetProvider(provider.Gemini)
	out := gen.Generate(context.Background(), "stars", "", "")
	if out.Err != nil {
		t.Fatalf("unexpected error: %+v", out.Err)
	}
	if out.Provider != provider.Claude || out.FullText != "claude rescue" {
		t.Errorf("got %q from %q", out.FullText, out.Provider)
	}
}

func TestGenerate_NoFallbackOnInvalidRequest(t *testing.T) {
	a := testutil.NewMockAnthropic()
	a.Fail(http.StatusBadRequest, "invalid_request_error", "messages: invalid request")
	defer a.Close()
	g := testutil.NewMockGemini("unused")
	defer g.Close()
	ts := newTestServer(t, upstreams{anthropic: a, gemini: g})

	var c collector
	out := client.New(ts.URL).NewGenerator(c.callbacks()).
		Generate(context.Background(), "bouncing ball", "", "")
	if out.Err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(out.Err.TechnicalError, "invalid request") {
		t.Errorf("technicalError = %q", out.Err.TechnicalError)
	}
	if !strings.HasPrefix(out.Err.ErrorRef, "VB-") {
		t.Errorf("errorRef = %q", out.Err.ErrorRef)
	}
	if c.message != out.Err.Message || c.complete != "" {
		t.Errorf("callbacks: message=%q complete=%q", c.message, c.complete)
	}
	if n := len(g.Requests()); n != 0 {
		t.Errorf("gemini requests = %d, want 0", n)
	}
}

func TestGenerate_BothFail(t *testing.T) {
	a := testutil.NewMockAnthropic()
	a.Fail(http.StatusTooManyRequests, "rate_limit_error", "Number of request tokens has exceeded your rate limit.")
	defer a.Close()
	g := testutil.NewMockGemini()
	g.Fail(http.StatusTooManyRequests, "Resource has been exhausted (e.g. check quota).")
	defer g.Close()
	ts := newTestServer(t, upstreams{anthropic: a, gemini: g})

	out := client.New(ts.URL).NewGenerator(client.Callbacks{}).
		Generate(context.Background(), "bouncing ball", "", "")
	if out.Err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(out.Err.TechnicalError, "quota") {
		t.Errorf("technicalError = %q, want the fallback provider's error", out.Err.TechnicalError)
	}
	if len(a.Requests()) != 1 || len(g.Requests()) != 1 {
		t.Errorf("requests: anthropic=%d gemini=%d, want 1 each", len(a.Requests()), len(g.Requests()))
	}
}

func TestGenerate_MidStreamFailure(t *testing.T) {
	a := testutil.NewMockAnthropic("partial ", "code ", "never")
	a.FailMidStream(2)
	defer a.Close()
	g := testutil.NewMockGemini("unused")
	defer g.Close()
	ts := newTestServer(t, upstreams{anthropic: a, gemini: g})

	var c collector
	out := client.New(ts.URL).NewGenerator(c.callbacks()).
		Generate(context.Background(), "bouncing ball", "", "")
	if out.Err == nil {
		t.Fatal("expected error for truncated stream")
	}
	if c.complete != "" {
		t.Errorf("OnComplete ran with %q", c.complete)
	}
	if got := strings.Join(c.chunks, ""); got != "partial code " {
		t.Errorf("chunks = %q", got)
	}
	if n := len(g.Requests()); n != 0 {
		t.Errorf("gemini requests = %d, want 0", n)
	}
}

func TestGenerate_Validation(t *testing.T) {
	mock := testutil.NewMockAnthropic("x")
	defer mock.Close()
	ts := newTestServer(t, upstreams{anthropic: mock})

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty prompt", `{"prompt":""}`, http.StatusBadRequest},
		{"whitespace prompt", `{"prompt":"   "}`, http.StatusBadRequest},
		{"malformed", `{"prompt":`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/generate", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
	if n := len(mock.Requests()); n != 0 {
		t.Errorf("anthropic requests = %d, want 0", n)
	}
}

func TestGenerate_NoProviderConfigured(t *testing.T) {
	ts := newTestServer(t, upstreams{})

	out := client.New(ts.URL).NewGenerator(client.Callbacks{}).
		Generate(context.Background(), "bouncing ball", "", "")
	if out.Err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(out.Err.TechnicalError, "No AI provider configured") {
		t.Errorf("technicalError = %q", out.Err.TechnicalError)
	}
}

func TestCreationSession_Autosave(t *testing.T) {
	mock := testutil.NewMockAnthropic("function draw() { circle(1, 1, 1); }")
	defer mock.Close()
	ts := newTestServer(t, upstreams{anthropic: mock})

	api := client.New(ts.URL)
	session := creation.New(api.NewGenerator(client.Callbacks{}), api.Projects())
	ctx := context.Background()

	if out := session.Submit(ctx, "a tiny circle!", ""); out.Err != nil {
		t.Fatalf("first submit: %+v", out.Err)
	}
	if out := session.Submit(ctx, "make it bigger", ""); out.Err != nil {
		t.Fatalf("second submit: %+v", out.Err)
	}

	list, err := api.Projects().List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("projects = %d, want 1 updated in place", len(list))
	}
	if list[0].ID != session.ProjectID() {
		t.Errorf("project id = %q, session has %q", list[0].ID, session.ProjectID())
	}
	if list[0].Title != "a tiny circle" {
		t.Errorf("title = %q", list[0].Title)
	}
	if !session.CanUndo() {
		t.Error("expected undo to be available after two versions")
	}
	reqs := mock.Requests()
	if len(reqs) != 2 || !strings.Contains(flatten(reqs[1]["messages"]), "circle(1, 1, 1)") {
		t.Errorf("second request should carry the current code")
	}
}

// flatten renders a decoded JSON value as one string for substring checks.
func flatten(v any) string {
	var b strings.Builder
	var walk func(any)
	walk = func(v any) {
		switch x := v.(type) {
		case string:
			b.WriteString(x)
			b.WriteByte('\n')
		case []any:
			for _, e := range x {
				walk(e)
			}
		case map[string]any:
			for _, e := range x {
				walk(e)
			}
		}
	}
	walk(v)
	return b.String()
}
