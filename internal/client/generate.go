package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"

	apierrors "github.com/zhengjr9/vibes/internal/errors"
	"github.com/zhengjr9/vibes/internal/httputil"
	"github.com/zhengjr9/vibes/internal/provider"
	"github.com/zhengjr9/vibes/internal/stream"
)

const fallbackErrorMessage = "Failed to generate code"

var errIncompleteStream = errors.New("stream ended before the done marker")

// ErrorInfo describes a failed generation.
type ErrorInfo struct {
	Message        string `json:"error"`
	ErrorRef       string `json:"errorRef,omitempty"`
	TechnicalError string `json:"technicalError,omitempty"`
}

func (e *ErrorInfo) Error() string {
	if e.TechnicalError != "" {
		return e.Message + " (" + e.TechnicalError + ")"
	}
	return e.Message
}

// Outcome is the result of one Generate call. FullText holds whatever was
// received, which is partial when Err is set.
type Outcome struct {
	FullText string
	Provider provider.ID
	Err      *ErrorInfo
}

// Callbacks receive generation progress. Any of them may be nil. Exactly one
// of OnComplete and OnError runs per Generate call.
type Callbacks struct {
	OnChunk    func(chunk string)
	OnComplete func(fullText string)
	OnError    func(message string, info *ErrorInfo)
}

// Generator is the client side of a generation. Callers are expected to
// start one generation at a time; concurrent calls are not queued, and each
// call accumulates into its own buffer.
type Generator struct {
	client   *Client
	cb       Callbacks
	provider atomic.Value // provider.ID
	inFlight atomic.Int32
}

// NewGenerator returns a Generator reporting through cb.
func (c *Client) NewGenerator(cb Callbacks) *Generator {
	g := &Generator{client: c, cb: cb}
	g.provider.Store(provider.ID(""))
	return g
}

// SetProvider sets the preferred provider for later calls. The empty ID
// leaves the choice to the server.
func (g *Generator) SetProvider(id provider.ID) { g.provider.Store(id) }

// Provider returns the preferred provider.
func (g *Generator) Provider() provider.ID { return g.provider.Load().(provider.ID) }

// IsGenerating reports whether any Generate call is in progress.
func (g *Generator) IsGenerating() bool { return g.inFlight.Load() > 0 }

type generateBody struct {
	Prompt         string `json:"prompt"`
	CurrentCode    string `json:"currentCode,omitempty"`
	IsModification bool   `json:"isModification"`
	Provider       string `json:"provider,omitempty"`
	ReferenceImage string `json:"referenceImage,omitempty"`
}

// Generate posts prompt to the service and consumes the event stream. A
// non-empty priorCode marks the request as a modification; referenceImage
// is an optional data URI.
func (g *Generator) Generate(ctx context.Context, prompt, priorCode, referenceImage string) Outcome {
	g.inFlight.Add(1)
	defer g.inFlight.Add(-1)

	var full strings.Builder
	out := Outcome{}

	fail := func(info *ErrorInfo) Outcome {
		out.FullText = full.String()
		out.Err = info
		if g.cb.OnError != nil {
			g.cb.OnError(info.Message, info)
		}
		return out
	}

	payload, err := json.Marshal(generateBody{
		Prompt:         prompt,
		CurrentCode:    priorCode,
		IsModification: priorCode != "",
		Provider:       g.Provider().String(),
		ReferenceImage: referenceImage,
	})
	if err != nil {
		return fail(transportError(err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.client.url("/api/generate"), bytes.NewReader(payload))
	if err != nil {
		return fail(transportError(err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := g.client.httpClient.Do(req)
	if err != nil {
		return fail(transportError(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fail(decodeErrorInfo(resp))
	}
	out.Provider = provider.ID(resp.Header.Get(httputil.ProviderHeader))

	done, err := stream.Decode(resp.Body, func(chunk string) {
		if chunk == "" {
			return
		}
		full.WriteString(chunk)
		if g.cb.OnChunk != nil {
			g.cb.OnChunk(chunk)
		}
	})
	if err == nil && !done {
		err = errIncompleteStream
	}
	if err != nil {
		return fail(transportError(err))
	}

	out.FullText = full.String()
	if g.cb.OnComplete != nil {
		g.cb.OnComplete(out.FullText)
	}
	return out
}

// decodeErrorInfo reads the {error, errorRef, technicalError} body of a
// failed generation.
func decodeErrorInfo(resp *http.Response) *ErrorInfo {
	var info ErrorInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return &ErrorInfo{Message: fallbackErrorMessage, TechnicalError: resp.Status}
	}
	if info.Message == "" {
		info.Message = fallbackErrorMessage
	}
	return &info
}

func transportError(err error) *ErrorInfo {
	return &ErrorInfo{
		Message:        apierrors.FriendlyMessage(err.Error()),
		TechnicalError: err.Error(),
	}
}
