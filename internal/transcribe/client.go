// Package transcribe turns recorded speech into prompt text using the
// OpenAI audio transcription endpoint.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1/"
	Model          = openai.AudioModelWhisper1
	Language       = "en"
	// Prompt biases recognition towards how children describe creations.
	Prompt = "This is a child describing what they want to create, like a game, animation, or artwork."
)

// ErrNotConfigured is returned when no API key was supplied.
var ErrNotConfigured = errors.New("OpenAI API key not configured")

// Transcriber converts audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Client calls the audio transcriptions endpoint through openai-go.
type Client struct {
	baseURL string
	apiKey  string
	api     openai.Client
}

// NewClient constructs a Client. baseURL may be a bare host, the /v1 root or
// the full transcription URL. An empty apiKey yields a client whose
// Transcribe always fails with ErrNotConfigured.
func NewClient(baseURL, apiKey string, timeout time.Duration, proxyURL string) *Client {
	base := apiRoot(baseURL)

	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if proxyURL != "" {
		if parsed, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	}

	return &Client{
		baseURL: base,
		apiKey:  apiKey,
		api: openai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(base),
			option.WithHTTPClient(&http.Client{Timeout: timeout, Transport: transport}),
		),
	}
}

// apiRoot normalises baseURL to the "<host>/v1/" form the SDK resolves
// request paths against.
func apiRoot(baseURL string) string {
	if baseURL == "" {
		return DefaultBaseURL
	}
	root := strings.TrimRight(baseURL, "/")
	root = strings.TrimSuffix(root, "/audio/transcriptions")
	if !strings.HasSuffix(root, "/v1") {
		root += "/v1"
	}
	return root + "/"
}

// Configured reports whether the client has credentials.
func (c *Client) Configured() bool { return c != nil && c.apiKey != "" }

// Transcribe uploads audio and returns the recognised text. Upstream API
// errors are reduced to the message OpenAI returned.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if filename == "" {
		filename = "recording.webm"
	}

	res, err := c.api.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:     openai.File(audio, filename, "application/octet-stream"),
		Model:    Model,
		Language: openai.String(Language),
		Prompt:   openai.String(Prompt),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return "", errors.New(apiErr.Message)
		}
		return "", fmt.Errorf("transcription request: %w", err)
	}
	return res.Text, nil
}
