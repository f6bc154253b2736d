package workspace

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaults(t *testing.T) {
	s := New()
	if s.Theme() != Space || s.InputMode() != Voice || s.ShowCode() || !s.IsPlaying() || !s.SidebarOpen() {
		t.Errorf("unexpected defaults")
	}
}

func TestSetters(t *testing.T) {
	s := New()
	if err := s.SetTheme("neon"); err == nil {
		t.Error("SetTheme accepted unknown theme")
	}
	if err := s.SetTheme(Candy); err != nil || s.Theme() != Candy {
		t.Errorf("SetTheme: %v theme=%s", err, s.Theme())
	}
	if err := s.SetInputMode("telepathy"); err == nil {
		t.Error("SetInputMode accepted unknown mode")
	}
	if !s.ToggleShowCode() || s.TogglePlaying() || s.ToggleSidebar() {
		t.Error("toggles returned wrong values")
	}
	s.SetGenerating(true)
	s.SetCurrentPrompt("a cat")
	if !s.IsGenerating() || s.CurrentPrompt() != "a cat" {
		t.Error("session fields not stored")
	}
}

func TestPersistenceIsAllowListed(t *testing.T) {
	s := New()
	_ = s.SetTheme(Ocean)
	_ = s.SetInputMode(Text)
	s.SetShowCode(true)
	s.SetCurrentPrompt("secret prompt")
	s.SetGenerating(true)
	s.SetPlaying(false)

	var buf bytes.Buffer
	if err := s.Save(&buf); err != nil {
		t.Fatal(err)
	}
	var raw map[string]any
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if len(raw) != 3 {
		t.Errorf("persisted keys = %v", raw)
	}
	if strings.Contains(buf.String(), "secret prompt") {
		t.Error("current prompt must not be persisted")
	}

	restored := New()
	if err := restored.Load(&buf); err != nil {
		t.Fatal(err)
	}
	if restored.Theme() != Ocean || restored.InputMode() != Text || !restored.ShowCode() {
		t.Errorf("restored theme=%s mode=%s showCode=%v", restored.Theme(), restored.InputMode(), restored.ShowCode())
	}
	if !restored.IsPlaying() || restored.IsGenerating() || restored.CurrentPrompt() != "" {
		t.Error("session-only fields leaked through persistence")
	}
}

func TestLoadIgnoresInvalidValues(t *testing.T) {
	s := New()
	err := s.Load(strings.NewReader(`{"theme":"neon","inputMode":"blocks","isGenerating":true}`))
	if err != nil {
		t.Fatal(err)
	}
	if s.Theme() != Space || s.InputMode() != Blocks || s.IsGenerating() {
		t.Errorf("theme=%s mode=%s generating=%v", s.Theme(), s.InputMode(), s.IsGenerating())
	}
}

func TestFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "workspace.json")
	s := New()
	if err := s.LoadFile(path); err != nil {
		t.Fatalf("missing file: %v", err)
	}
	_ = s.SetTheme(Sunset)
	if err := s.SaveFile(path); err != nil {
		t.Fatal(err)
	}
	restored := New()
	if err := restored.LoadFile(path); err != nil || restored.Theme() != Sunset {
		t.Errorf("LoadFile: %v theme=%s", err, restored.Theme())
	}
}

func TestParseTheme(t *testing.T) {
	for _, th := range Themes {
		if _, err := ParseTheme(string(th.Name)); err != nil {
			t.Errorf("ParseTheme(%q): %v", th.Name, err)
		}
	}
	if _, err := ParseTheme("Space"); err == nil {
		t.Error("theme names are case-sensitive")
	}
}
