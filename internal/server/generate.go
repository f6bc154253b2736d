package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/zhengjr9/vibes/internal/errors"
	"github.com/zhengjr9/vibes/internal/httputil"
	"github.com/zhengjr9/vibes/internal/prompts"
	"github.com/zhengjr9/vibes/internal/provider"
	"github.com/zhengjr9/vibes/internal/stream"
)

// generateRequest is the JSON body of POST /api/generate.
type generateRequest struct {
	Prompt         string `json:"prompt"`
	CurrentCode    string `json:"currentCode,omitempty"`
	IsModification bool   `json:"isModification,omitempty"`
	Provider       string `json:"provider,omitempty"`
	ReferenceImage string `json:"referenceImage,omitempty"`
}

type generateHandler struct {
	gen     Generator
	timeout time.Duration
}

// ServeHTTP handles POST /api/generate.
func (h *generateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body generateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.WriteJSONError(w, http.StatusBadRequest, apierrors.ErrMalformedBody.Error())
		return
	}

	pref, err := provider.ParseID(body.Provider)
	if err != nil {
		slog.Debug("ignoring provider preference", "error", err)
	}
	req := provider.NewRequest(body.Prompt, body.CurrentCode, body.IsModification, body.ReferenceImage, pref)
	if err := req.Validate(); err != nil {
		apierrors.WriteJSONError(w, http.StatusBadRequest, apierrors.ErrEmptyPrompt.Error())
		return
	}
	if body.ReferenceImage != "" && req.ReferenceImage == nil {
		slog.Warn("dropping unparsable reference image")
	}
	slog.Debug("generation request",
		"modification", req.IsModification,
		"has_image", req.ReferenceImage != nil,
		"prompt_tokens", prompts.EstimateTokens(req.Prompt+req.PriorCode),
	)

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if h.timeout > 0 {
		ctx, cancel = context.WithTimeout(r.Context(), h.timeout)
	} else {
		ctx, cancel = context.WithCancel(r.Context())
	}
	defer cancel()

	res, err := h.gen.Generate(ctx, req)
	if err != nil {
		genErr := apierrors.NewGenerationError(err)
		slog.Error("generation failed",
			"error_ref", genErr.ErrorRef,
			"provider", req.Preference,
			"prompt", truncate(req.Prompt, 100),
			"error", err,
		)
		apierrors.WriteGenerationError(w, genErr)
		return
	}

	httputil.SetSSEHeaders(w)
	w.Header().Set(httputil.ProviderHeader, res.Provider.String())
	w.WriteHeader(http.StatusOK)

	start := time.Now()
	st, err := stream.Relay(ctx, stream.NewEncoder(w), res.Events)
	log := slog.With("provider", res.Provider, "chunks", st.Chunks, "bytes", st.Bytes, "duration", time.Since(start).String())
	switch {
	case err == nil:
		log.Info("generation complete")
	case errors.Is(err, stream.ErrClientGone) || errors.Is(err, context.Canceled):
		log.Info("client went away", "error", err)
	default:
		log.Error("generation aborted mid-stream",
			"error_ref", apierrors.NewErrorRef(),
			"prompt", truncate(req.Prompt, 100),
			"error", err,
		)
		// The status line is already sent; dropping the connection is the
		// only way to tell the client the stream is incomplete.
		cancel()
		panic(http.ErrAbortHandler)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
