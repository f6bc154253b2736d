package main

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/zhengjr9/vibes/internal/client"
	"github.com/zhengjr9/vibes/internal/creation"
	"github.com/zhengjr9/vibes/internal/provider"
	"github.com/zhengjr9/vibes/internal/workspace"
)

const helpText = `Type a description to create something, or a command:
  :undo / :redo        step through versions
  :show                print the current code
  :code                toggle printing code after each creation
  :copy                copy the current code to the clipboard
  :image <path>        use an image as inspiration for the next creation
  :voice <path>        transcribe a recording and create from it
  :theme <name>        space, ocean, forest, candy or sunset
  :provider <name>     claude, gemini or auto
  :projects            list saved projects
  :open <id>           open a saved project
  :new                 start over
  :help                show this help
  :quit                exit`

// repl is the line-oriented terminal client.
type repl struct {
	out        io.Writer
	api        *client.Client
	gen        *client.Generator
	session    *creation.Session
	ws         *workspace.State
	wsPath     string
	styles     styles
	copy       func(string) error
	pendingImg string
}

func (r *repl) printf(style func(...string) string, format string, args ...any) {
	fmt.Fprintln(r.out, style(fmt.Sprintf(format, args...)))
}

// run reads lines from in until EOF or :quit.
func (r *repl) run(ctx context.Context, in io.Reader) error {
	r.printf(r.styles.Title.Render, "VIBES ✨ describe what you want to create (:help for commands)")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, r.styles.Prompt.Render("> "))
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		if quit := r.handle(ctx, strings.TrimSpace(scanner.Text())); quit {
			return nil
		}
	}
}

// handle executes one input line and reports whether the loop should stop.
func (r *repl) handle(ctx context.Context, line string) bool {
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, ":") {
		_ = r.ws.SetInputMode(workspace.Text)
		r.create(ctx, line)
		return false
	}

	cmd, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "quit", "q", "exit":
		return true
	case "help", "h":
		fmt.Fprintln(r.out, helpText)
	case "undo":
		if _, ok := r.session.Undo(); !ok {
			r.printf(r.styles.Muted.Render, "nothing to undo")
			return false
		}
		r.printf(r.styles.Info.Render, "↶ back to version %d of %d", r.session.History().Cursor()+1, r.session.History().Len())
	case "redo":
		if _, ok := r.session.Redo(); !ok {
			r.printf(r.styles.Muted.Render, "nothing to redo")
			return false
		}
		r.printf(r.styles.Info.Render, "↷ forward to version %d of %d", r.session.History().Cursor()+1, r.session.History().Len())
	case "show":
		r.showCode()
	case "code":
		r.printf(r.styles.Info.Render, "show code after each creation: %v", r.ws.ToggleShowCode())
		r.saveWorkspace()
	case "copy":
		if err := r.copy(r.session.Code()); err != nil {
			r.printf(r.styles.Error.Render, "copy failed: %v", err)
			return false
		}
		r.printf(r.styles.Info.Render, "code copied to clipboard")
	case "image":
		r.attachImage(arg)
	case "voice":
		r.voice(ctx, arg)
	case "theme":
		name, err := workspace.ParseTheme(arg)
		if err != nil {
			r.printf(r.styles.Error.Render, "%v", err)
			return false
		}
		_ = r.ws.SetTheme(name)
		r.styles = newStyles(name)
		theme, _ := workspace.LookupTheme(name)
		r.printf(r.styles.Title.Render, "%s %s", theme.Emoji, theme.DisplayName)
		r.saveWorkspace()
	case "provider":
		r.setProvider(arg)
	case "projects":
		r.listProjects(ctx)
	case "open":
		r.open(ctx, arg)
	case "new":
		r.session.Reset()
		r.pendingImg = ""
		r.printf(r.styles.Info.Render, "fresh canvas")
	default:
		r.printf(r.styles.Error.Render, "unknown command :%s (try :help)", cmd)
	}
	return false
}

func (r *repl) create(ctx context.Context, prompt string) {
	r.ws.SetCurrentPrompt(prompt)
	r.ws.SetGenerating(true)
	defer r.ws.SetGenerating(false)

	img := r.pendingImg
	r.pendingImg = ""
	out := r.session.Submit(ctx, prompt, img)
	fmt.Fprintln(r.out)
	if out.Err != nil {
		r.printf(r.styles.Error.Render, "%s", out.Err.Message)
		if out.Err.ErrorRef != "" {
			r.printf(r.styles.Muted.Render, "reference: %s", out.Err.ErrorRef)
		}
		return
	}
	if out.FullText == "" {
		r.printf(r.styles.Muted.Render, "%s returned nothing; the current code is unchanged",
			displayProvider(out.Provider))
		return
	}
	r.printf(r.styles.Info.Render, "✓ made with %s · version %d · saved as %q",
		displayProvider(out.Provider), r.session.History().Cursor()+1, r.session.Title())
	if r.ws.ShowCode() {
		r.showCode()
	}
}

func (r *repl) showCode() {
	fmt.Fprintln(r.out, r.styles.Code.Render(highlight(r.session.Code())))
}

func (r *repl) attachImage(path string) {
	if path == "" {
		r.printf(r.styles.Error.Render, "usage: :image <path>")
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		r.printf(r.styles.Error.Render, "%v", err)
		return
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		r.printf(r.styles.Error.Render, "%s is not an image (%s)", filepath.Base(path), mime)
		return
	}
	r.pendingImg = "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
	r.printf(r.styles.Info.Render, "🖼  %s will inspire the next creation", filepath.Base(path))
}

func (r *repl) voice(ctx context.Context, path string) {
	if path == "" {
		r.printf(r.styles.Error.Render, "usage: :voice <path>")
		return
	}
	f, err := os.Open(path)
	if err != nil {
		r.printf(r.styles.Error.Render, "%v", err)
		return
	}
	defer f.Close()

	_ = r.ws.SetInputMode(workspace.Voice)
	text, err := r.api.Transcribe(ctx, f, filepath.Base(path))
	if err != nil {
		r.printf(r.styles.Error.Render, "transcription failed: %v", err)
		return
	}
	if strings.TrimSpace(text) == "" {
		r.printf(r.styles.Muted.Render, "didn't catch that, try again")
		return
	}
	r.printf(r.styles.Prompt.Render, "🎤 %s", text)
	r.create(ctx, text)
}

func (r *repl) setProvider(name string) {
	if name == "auto" {
		name = ""
	}
	id, err := provider.ParseID(name)
	if err != nil {
		r.printf(r.styles.Error.Render, "%v", err)
		return
	}
	r.gen.SetProvider(id)
	r.printf(r.styles.Info.Render, "provider: %s", displayProvider(id))
}

func (r *repl) listProjects(ctx context.Context) {
	projects, err := r.api.Projects().List(ctx)
	if err != nil {
		r.printf(r.styles.Error.Render, "%v", err)
		return
	}
	if len(projects) == 0 {
		r.printf(r.styles.Muted.Render, "no saved projects yet")
		return
	}
	for _, p := range projects {
		marker := " "
		if p.ID == r.session.ProjectID() {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s %s  %s\n", marker, r.styles.Muted.Render(p.ID), p.Title)
	}
}

func (r *repl) open(ctx context.Context, id string) {
	if id == "" {
		r.printf(r.styles.Error.Render, "usage: :open <id>")
		return
	}
	p, err := r.api.Projects().Get(ctx, id)
	if err != nil {
		r.printf(r.styles.Error.Render, "%v", err)
		return
	}
	r.session.Load(p)
	r.printf(r.styles.Info.Render, "opened %q", p.Title)
}

func (r *repl) saveWorkspace() {
	if r.wsPath == "" {
		return
	}
	if err := r.ws.SaveFile(r.wsPath); err != nil {
		r.printf(r.styles.Muted.Render, "could not save settings: %v", err)
	}
}

func displayProvider(id provider.ID) string {
	if id == "" {
		return "auto"
	}
	return id.String()
}
