// Package workspace holds the per-user UI state of a creation session.
//
// State is an explicit object passed to whoever needs it. Only theme, input
// mode and code visibility survive a restart; everything else is
// session-local.
package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// InputMode is how the user describes a creation.
type InputMode string

const (
	Voice  InputMode = "voice"
	Text   InputMode = "text"
	Blocks InputMode = "blocks"
)

// ParseInputMode validates an input mode.
func ParseInputMode(s string) (InputMode, error) {
	switch m := InputMode(s); m {
	case Voice, Text, Blocks:
		return m, nil
	}
	return "", fmt.Errorf("unknown input mode %q", s)
}

// State is safe for concurrent use.
type State struct {
	mu            sync.RWMutex
	theme         ThemeName
	inputMode     InputMode
	showCode      bool
	isPlaying     bool
	currentPrompt string
	isGenerating  bool
	sidebarOpen   bool
}

// New returns the default state.
func New() *State {
	return &State{
		theme:       DefaultTheme,
		inputMode:   Voice,
		isPlaying:   true,
		sidebarOpen: true,
	}
}

// Theme returns the selected theme.
func (s *State) Theme() ThemeName {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.theme
}

// SetTheme rejects names outside Themes.
func (s *State) SetTheme(name ThemeName) error {
	if _, ok := LookupTheme(name); !ok {
		return fmt.Errorf("unknown theme %q", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.theme = name
	return nil
}

// InputMode returns how prompts are entered.
func (s *State) InputMode() InputMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inputMode
}

// SetInputMode rejects unknown modes.
func (s *State) SetInputMode(m InputMode) error {
	if _, err := ParseInputMode(string(m)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputMode = m
	return nil
}

// ShowCode reports whether generated code is displayed.
func (s *State) ShowCode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.showCode
}

// SetShowCode sets code visibility.
func (s *State) SetShowCode(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showCode = v
}

// ToggleShowCode flips code visibility and returns the new value.
func (s *State) ToggleShowCode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.showCode = !s.showCode
	return s.showCode
}

// IsPlaying reports whether the preview is running.
func (s *State) IsPlaying() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isPlaying
}

// SetPlaying starts or pauses the preview.
func (s *State) SetPlaying(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isPlaying = v
}

// TogglePlaying flips play/pause and returns the new value.
func (s *State) TogglePlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isPlaying = !s.isPlaying
	return s.isPlaying
}

// CurrentPrompt returns the prompt being composed or generated.
func (s *State) CurrentPrompt() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPrompt
}

// SetCurrentPrompt records the prompt. It is not persisted.
func (s *State) SetCurrentPrompt(p string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentPrompt = p
}

// IsGenerating reports whether a generation is running.
func (s *State) IsGenerating() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isGenerating
}

// SetGenerating marks a generation as started or finished.
func (s *State) SetGenerating(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.isGenerating = v
}

// SidebarOpen reports whether the project sidebar is shown.
func (s *State) SidebarOpen() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sidebarOpen
}

// SetSidebarOpen shows or hides the sidebar.
func (s *State) SetSidebarOpen(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sidebarOpen = v
}

// ToggleSidebar flips the sidebar and returns the new value.
func (s *State) ToggleSidebar() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sidebarOpen = !s.sidebarOpen
	return s.sidebarOpen
}

// persisted is the allow-listed subset written to disk.
type persisted struct {
	Theme     ThemeName `json:"theme"`
	InputMode InputMode `json:"inputMode"`
	ShowCode  bool      `json:"showCode"`
}

// Save writes the persisted fields as JSON.
func (s *State) Save(w io.Writer) error {
	s.mu.RLock()
	p := persisted{Theme: s.theme, InputMode: s.inputMode, ShowCode: s.showCode}
	s.mu.RUnlock()
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// Load restores the persisted fields. Unknown keys are ignored and invalid
// values leave the current setting in place.
func (s *State) Load(r io.Reader) error {
	var p persisted
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return fmt.Errorf("decode workspace: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := LookupTheme(p.Theme); ok {
		s.theme = p.Theme
	} else if p.Theme != "" {
		slog.Warn("ignoring persisted theme", "theme", p.Theme)
	}
	if _, err := ParseInputMode(string(p.InputMode)); err == nil {
		s.inputMode = p.InputMode
	}
	s.showCode = p.ShowCode
	return nil
}

// SaveFile writes the persisted fields to path, creating parent directories.
func (s *State) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := s.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFile restores state from path. A missing file is not an error.
func (s *State) LoadFile(path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	return s.Load(f)
}
