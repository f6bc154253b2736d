package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/zhengjr9/vibes/internal/config"
	apierrors "github.com/zhengjr9/vibes/internal/errors"
	"github.com/zhengjr9/vibes/internal/httputil"
	"github.com/zhengjr9/vibes/internal/orchestrator"
	"github.com/zhengjr9/vibes/internal/project"
	"github.com/zhengjr9/vibes/internal/provider"
	"github.com/zhengjr9/vibes/internal/provider/lorem"
	"github.com/zhengjr9/vibes/internal/stream"
)

type fakeTranscriber struct {
	text string
	err  error
	got  chan []byte
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audio io.Reader, _ string) (string, error) {
	data, _ := io.ReadAll(audio)
	if f.got != nil {
		f.got <- data
	}
	return f.text, f.err
}

func newTestServer(t *testing.T, deps Deps) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(New(&config.Config{ListenAddr: ":0"}, deps).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, _ := json.Marshal(body)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestGenerateStreams(t *testing.T) {
	claude := lorem.New(provider.Claude, lorem.WithChunks("function ", "draw() {}"))
	srv := newTestServer(t, Deps{Generator: orchestrator.New([]provider.Provider{claude})})

	resp := postJSON(t, srv.URL+"/api/generate", generateRequest{Prompt: "bouncing ball"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	for k, want := range map[string]string{
		"Content-Type":          "text/event-stream",
		"Cache-Control":         "no-cache",
		httputil.ProviderHeader: "claude",
	} {
		if got := resp.Header.Get(k); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}

	var sb strings.Builder
	done, err := stream.Decode(resp.Body, func(s string) { sb.WriteString(s) })
	if err != nil || !done {
		t.Fatalf("Decode: done=%v err=%v", done, err)
	}
	if sb.String() != "function draw() {}" {
		t.Errorf("text = %q", sb.String())
	}
}

func TestGenerateFallbackHeader(t *testing.T) {
	claude := lorem.New(provider.Claude, lorem.WithSetupError(errors.New("quota exceeded")))
	gemini := lorem.New(provider.Gemini, lorem.WithChunks("ok"))
	srv := newTestServer(t, Deps{Generator: orchestrator.New([]provider.Provider{claude, gemini})})

	resp := postJSON(t, srv.URL+"/api/generate", generateRequest{Prompt: "stars", Provider: "claude"})
	if got := resp.Header.Get(httputil.ProviderHeader); got != "gemini" {
		t.Errorf("provider header = %q", got)
	}
}

func TestGenerateValidation(t *testing.T) {
	srv := newTestServer(t, Deps{Generator: orchestrator.New([]provider.Provider{lorem.New(provider.Claude)})})

	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty prompt", `{"prompt":""}`, "Prompt is required"},
		{"missing prompt", `{}`, "Prompt is required"},
		{"blank prompt", `{"prompt":"   "}`, "Prompt is required"},
		{"malformed", `{"prompt":`, apierrors.ErrMalformedBody.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/generate", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			var got map[string]string
			_ = json.NewDecoder(resp.Body).Decode(&got)
			if got["error"] != tt.want {
				t.Errorf("error = %q, want %q", got["error"], tt.want)
			}
		})
	}
}

func TestGenerateSetupFailure(t *testing.T) {
	claude := lorem.New(provider.Claude, lorem.WithSetupError(errors.New("invalid request")))
	gemini := lorem.New(provider.Gemini)
	srv := newTestServer(t, Deps{Generator: orchestrator.New([]provider.Provider{claude, gemini})})

	resp := postJSON(t, srv.URL+"/api/generate", generateRequest{Prompt: "stars"})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body apierrors.GenerationError
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.TechnicalError != "invalid request" || !strings.HasPrefix(body.ErrorRef, "VB-") {
		t.Errorf("body = %+v", body)
	}
	if body.Error != apierrors.FriendlyMessage("invalid request") {
		t.Errorf("error = %q", body.Error)
	}
	if gemini.Calls() != 0 {
		t.Error("non-transient failure must not fall back")
	}
}

func TestGenerateNoProvider(t *testing.T) {
	srv := newTestServer(t, Deps{Generator: orchestrator.New(nil)})
	resp := postJSON(t, srv.URL+"/api/generate", generateRequest{Prompt: "stars"})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body apierrors.GenerationError
	_ = json.NewDecoder(resp.Body).Decode(&body)
	if body.TechnicalError != apierrors.ErrNoProvider.Error() {
		t.Errorf("technicalError = %q", body.TechnicalError)
	}
}

func TestGenerateMidStreamAbort(t *testing.T) {
	claude := lorem.New(provider.Claude, lorem.WithChunks("a", "b", "c"), lorem.WithStreamError(2, errors.New("overloaded")))
	srv := newTestServer(t, Deps{Generator: orchestrator.New([]provider.Provider{claude})})

	resp := postJSON(t, srv.URL+"/api/generate", generateRequest{Prompt: "stars"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var sb strings.Builder
	done, _ := stream.Decode(resp.Body, func(s string) { sb.WriteString(s) })
	if done {
		t.Error("aborted stream must not carry the done marker")
	}
	if sb.String() != "ab" {
		t.Errorf("text before abort = %q", sb.String())
	}
}

func TestGenerateModificationRequest(t *testing.T) {
	requests := make(chan *provider.Request, 1)
	gen := generatorFunc(func(_ context.Context, req *provider.Request) (*orchestrator.Result, error) {
		requests <- req
		ch := make(chan provider.TokenEvent, 1)
		ch <- provider.Done()
		close(ch)
		return &orchestrator.Result{Provider: provider.Gemini, Events: ch}, nil
	})
	srv := newTestServer(t, Deps{Generator: gen})

	resp := postJSON(t, srv.URL+"/api/generate", generateRequest{
		Prompt:         "make it blue",
		CurrentCode:    "fill(255)",
		IsModification: true,
		Provider:       "gemini",
		ReferenceImage: "data:image/png;base64,aGVsbG8=",
	})
	io.Copy(io.Discard, resp.Body)
	var seen *provider.Request
	select {
	case seen = <-requests:
	default:
		t.Fatal("generator not called")
	}
	if !seen.IsModification || seen.PriorCode != "fill(255)" || seen.Preference != provider.Gemini {
		t.Errorf("request = %+v", seen)
	}
	if seen.ReferenceImage == nil || string(seen.ReferenceImage.Data) != "hello" {
		t.Errorf("reference image = %+v", seen.ReferenceImage)
	}
}

type generatorFunc func(context.Context, *provider.Request) (*orchestrator.Result, error)

func (f generatorFunc) Generate(ctx context.Context, req *provider.Request) (*orchestrator.Result, error) {
	return f(ctx, req)
}

func multipartAudio(t *testing.T, field string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, _ := mw.CreateFormFile(field, "clip.webm")
		fw.Write([]byte("audio-bytes"))
	} else {
		mw.WriteField("other", "x")
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestTranscribe(t *testing.T) {
	fake := &fakeTranscriber{text: "a red car", got: make(chan []byte, 1)}
	srv := newTestServer(t, Deps{Transcriber: fake})

	body, ct := multipartAudio(t, "audio")
	resp, err := http.Post(srv.URL+"/api/transcribe", ct, body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var got map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&got)
	if resp.StatusCode != http.StatusOK || got["text"] != "a red car" {
		t.Errorf("status=%d body=%v", resp.StatusCode, got)
	}
	if got := <-fake.got; string(got) != "audio-bytes" {
		t.Errorf("forwarded audio = %q", got)
	}
}

func TestTranscribeErrors(t *testing.T) {
	tests := []struct {
		name       string
		tr         *fakeTranscriber
		field      string
		wantStatus int
		wantError  string
	}{
		{"not configured", nil, "audio", http.StatusInternalServerError, "OpenAI API key not configured"},
		{"missing audio", &fakeTranscriber{}, "", http.StatusBadRequest, "No audio file provided"},
		{"backend error", &fakeTranscriber{err: errors.New("Invalid file format")}, "audio", http.StatusInternalServerError, "Invalid file format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := Deps{}
			if tt.tr != nil {
				deps.Transcriber = tt.tr
			}
			srv := newTestServer(t, deps)
			body, ct := multipartAudio(t, tt.field)
			resp, err := http.Post(srv.URL+"/api/transcribe", ct, body)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			var got map[string]string
			_ = json.NewDecoder(resp.Body).Decode(&got)
			if resp.StatusCode != tt.wantStatus || got["error"] != tt.wantError {
				t.Errorf("status=%d error=%q", resp.StatusCode, got["error"])
			}
		})
	}
}

func TestProjectsAPI(t *testing.T) {
	store, err := project.Open(context.Background(), filepath.Join(t.TempDir(), "p.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	srv := newTestServer(t, Deps{Projects: store})

	resp := postJSON(t, srv.URL+"/api/projects", saveProjectRequest{Prompt: "a bouncing ball!", Code: "ellipse()"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	var created project.Project
	_ = json.NewDecoder(resp.Body).Decode(&created)
	if created.Title != "a bouncing ball" {
		t.Errorf("title = %q", created.Title)
	}

	resp = postJSON(t, srv.URL+"/api/projects", saveProjectRequest{Prompt: "bigger", Code: "ellipse(0,0,99)", ID: created.ID})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("update status = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPatch, srv.URL+"/api/projects/"+created.ID, strings.NewReader(`{"title":"Ball"}`))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	var renamed project.Project
	_ = json.NewDecoder(resp.Body).Decode(&renamed)
	resp.Body.Close()
	if renamed.Title != "Ball" || renamed.Code != "ellipse(0,0,99)" {
		t.Errorf("renamed = %+v", renamed)
	}

	resp, err = http.Get(srv.URL + "/api/projects/" + created.ID + "/export")
	if err != nil {
		t.Fatal(err)
	}
	html, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if cd := resp.Header.Get("Content-Disposition"); cd != `attachment; filename="Ball.html"` {
		t.Errorf("content-disposition = %q", cd)
	}
	if !strings.Contains(string(html), "ellipse(0,0,99)") {
		t.Error("export missing code")
	}

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/projects/"+created.ID, nil)
	resp, _ = http.DefaultClient.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d", resp.StatusCode)
	}

	resp, _ = http.Get(srv.URL + "/api/projects/" + created.ID)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d", resp.StatusCode)
	}
}

func TestProjectsDisabled(t *testing.T) {
	srv := newTestServer(t, Deps{})
	resp, err := http.Get(srv.URL + "/api/projects")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}

	abort := recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	defer func() {
		if r := recover(); r != http.ErrAbortHandler {
			t.Errorf("recovered %v, want ErrAbortHandler", r)
		}
	}()
	abort.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestLoggingWriterFlushes(t *testing.T) {
	rec := httptest.NewRecorder()
	lrw := &loggingResponseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	var w http.ResponseWriter = lrw
	f, ok := w.(http.Flusher)
	if !ok {
		t.Fatal("loggingResponseWriter must implement http.Flusher")
	}
	f.Flush()
	if !rec.Flushed {
		t.Error("flush not forwarded")
	}
}
