// Package creation ties a generation controller to the version history and
// project autosave for one creation being edited.
package creation

import (
	"context"
	"log/slog"
	"sync"

	"github.com/zhengjr9/vibes/internal/client"
	"github.com/zhengjr9/vibes/internal/history"
	"github.com/zhengjr9/vibes/internal/project"
	"github.com/zhengjr9/vibes/internal/prompts"
	"github.com/zhengjr9/vibes/internal/provider"
)

const defaultTitle = "My Creation"

// Generator runs one generation. *client.Generator implements it.
type Generator interface {
	Generate(ctx context.Context, prompt, priorCode, referenceImage string) client.Outcome
}

// Saver persists accepted code. Both *project.Store and *client.Projects
// implement it.
type Saver interface {
	Save(ctx context.Context, prompt, code, existingID string) (*project.Project, error)
}

// Session is the code currently shown plus its undo log.
type Session struct {
	gen     Generator
	saver   Saver
	history *history.Store

	mu        sync.Mutex
	code      string
	projectID string
	title     string
	lastErr   *client.ErrorInfo
}

// New starts a session showing the starter sketch. saver may be nil to
// disable autosave.
func New(gen Generator, saver Saver) *Session {
	return &Session{
		gen:     gen,
		saver:   saver,
		history: history.New(),
		code:    prompts.StarterCode(),
		title:   defaultTitle,
	}
}

// Submit generates from prompt. The current code is sent for modification
// unless it is the starter sketch. A completed, non-empty result becomes the
// current code, is recorded in history and is autosaved.
func (s *Session) Submit(ctx context.Context, prompt, referenceImage string) client.Outcome {
	prior := s.Code()
	if !provider.IsModification(prior) {
		prior = ""
	}

	out := s.gen.Generate(ctx, prompt, prior, referenceImage)

	s.mu.Lock()
	s.lastErr = out.Err
	if out.Err != nil || out.FullText == "" {
		s.mu.Unlock()
		return out
	}
	s.code = out.FullText
	s.history.Push(out.FullText)
	projectID := s.projectID
	s.mu.Unlock()

	if s.saver != nil {
		p, err := s.saver.Save(ctx, prompt, out.FullText, projectID)
		if err != nil {
			slog.Warn("autosave failed", "project", projectID, "error", err)
			return out
		}
		s.mu.Lock()
		s.projectID, s.title = p.ID, p.Title
		s.mu.Unlock()
	}
	return out
}

// Undo shows the previous history entry.
func (s *Session) Undo() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.history.Undo()
	if ok {
		s.code = code
	}
	return code, ok
}

// Redo shows the next history entry.
func (s *Session) Redo() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.history.Redo()
	if ok {
		s.code = code
	}
	return code, ok
}

// CanUndo reports whether Undo would change the code.
func (s *Session) CanUndo() bool { return s.history.CanUndo() }

// CanRedo reports whether Redo would change the code.
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// History exposes the undo log for read-only inspection.
func (s *Session) History() *history.Store { return s.history }

// Load opens a saved project with a single-entry history.
func (s *Session) Load(p *project.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = p.Code
	s.projectID = p.ID
	s.title = p.Title
	s.lastErr = nil
	s.history.Load(p.Code)
}

// Reset returns to the starter sketch with no history or project.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = prompts.StarterCode()
	s.projectID = ""
	s.title = defaultTitle
	s.lastErr = nil
	s.history.Reset()
}

// Code returns the code currently shown.
func (s *Session) Code() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.code
}

// ProjectID is the saved project the session writes to, empty before the first save.
func (s *Session) ProjectID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.projectID
}

// Title is the saved project title, or "My Creation" before the first save.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// LastError is the error of the most recent Submit, if any.
func (s *Session) LastError() *client.ErrorInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}
