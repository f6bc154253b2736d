package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	apierrors "github.com/zhengjr9/vibes/internal/errors"
	"github.com/zhengjr9/vibes/internal/httputil"
	"github.com/zhengjr9/vibes/internal/project"
)

type projectHandler struct {
	store *project.Store
}

type saveProjectRequest struct {
	Prompt string `json:"prompt"`
	Code   string `json:"code"`
	ID     string `json:"id,omitempty"`
}

type renameProjectRequest struct {
	Title string `json:"title"`
}

// available writes a 503 and returns false when storage is disabled.
func (h *projectHandler) available(w http.ResponseWriter) bool {
	if h.store == nil {
		apierrors.WriteJSONError(w, http.StatusServiceUnavailable, "project storage is disabled")
		return false
	}
	return true
}

func (h *projectHandler) fail(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, project.ErrNotFound) {
		apierrors.WriteJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	slog.Error("project store", "op", op, "error", err)
	apierrors.WriteJSONError(w, http.StatusInternalServerError, err.Error())
}

func (h *projectHandler) list(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	projects, err := h.store.List(r.Context())
	if err != nil {
		h.fail(w, "list", err)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, projects)
}

func (h *projectHandler) save(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	var body saveProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.WriteJSONError(w, http.StatusBadRequest, apierrors.ErrMalformedBody.Error())
		return
	}
	if body.Code == "" {
		apierrors.WriteJSONError(w, http.StatusBadRequest, "code is required")
		return
	}
	p, err := h.store.Save(r.Context(), body.Prompt, body.Code, body.ID)
	if err != nil {
		h.fail(w, "save", err)
		return
	}
	status := http.StatusCreated
	if body.ID != "" && p.ID == body.ID {
		status = http.StatusOK
	}
	_ = httputil.WriteJSON(w, status, p)
}

func (h *projectHandler) get(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	p, err := h.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "get", err)
		return
	}
	_ = httputil.WriteJSON(w, http.StatusOK, p)
}

func (h *projectHandler) rename(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	var body renameProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		apierrors.WriteJSONError(w, http.StatusBadRequest, apierrors.ErrMalformedBody.Error())
		return
	}
	title := strings.TrimSpace(body.Title)
	if title == "" {
		apierrors.WriteJSONError(w, http.StatusBadRequest, "title is required")
		return
	}
	id := mux.Vars(r)["id"]
	if err := h.store.UpdateTitle(r.Context(), id, title); err != nil {
		h.fail(w, "rename", err)
		return
	}
	h.get(w, r)
}

func (h *projectHandler) delete(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	if err := h.store.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		h.fail(w, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *projectHandler) clear(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	if err := h.store.Clear(r.Context()); err != nil {
		h.fail(w, "clear", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *projectHandler) export(w http.ResponseWriter, r *http.Request) {
	if !h.available(w) {
		return
	}
	p, err := h.store.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.fail(w, "export", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+project.ExportFilename(p)+`"`)
	if err := project.ExportHTML(w, p); err != nil {
		slog.Error("export project", "id", p.ID, "error", err)
	}
}
