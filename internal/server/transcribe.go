package server

import (
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/zhengjr9/vibes/internal/errors"
	"github.com/zhengjr9/vibes/internal/httputil"
	"github.com/zhengjr9/vibes/internal/transcribe"
)

// maxAudioSize bounds the multipart body of a transcription request.
const maxAudioSize = 25 << 20

var errMissingAudio = errors.New("No audio file provided")

type transcribeHandler struct {
	transcriber transcribe.Transcriber
}

type configurable interface {
	Configured() bool
}

func (h *transcribeHandler) configured() bool {
	if h.transcriber == nil {
		return false
	}
	if c, ok := h.transcriber.(configurable); ok {
		return c.Configured()
	}
	return true
}

// ServeHTTP handles POST /api/transcribe.
func (h *transcribeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.configured() {
		apierrors.WriteJSONError(w, http.StatusInternalServerError, transcribe.ErrNotConfigured.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAudioSize)
	file, hdr, err := r.FormFile("audio")
	if err != nil {
		slog.Debug("transcription without audio", "error", err)
		apierrors.WriteJSONError(w, http.StatusBadRequest, errMissingAudio.Error())
		return
	}
	defer file.Close()

	text, err := h.transcriber.Transcribe(r.Context(), file, hdr.Filename)
	if err != nil {
		slog.Error("transcription failed", "error", err, "size", hdr.Size)
		apierrors.WriteJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, map[string]string{"text": text})
}
