// Command vibes is a terminal client for the vibes service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/atotto/clipboard"

	"github.com/zhengjr9/vibes/internal/client"
	"github.com/zhengjr9/vibes/internal/creation"
	"github.com/zhengjr9/vibes/internal/provider"
	"github.com/zhengjr9/vibes/internal/workspace"
)

func defaultWorkspacePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "vibes", "workspace.json")
}

func main() {
	serverURL := flag.String("server", envOr("VIBES_SERVER", "http://localhost:8080"), "vibes service URL")
	wsPath := flag.String("workspace", defaultWorkspacePath(), "file for persisted workspace settings")
	providerName := flag.String("provider", "", "preferred provider: claude or gemini")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	var level slog.Level
	_ = level.UnmarshalText([]byte(*logLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	pref, err := provider.ParseID(*providerName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ws := workspace.New()
	if *wsPath != "" {
		if err := ws.LoadFile(*wsPath); err != nil {
			slog.Warn("could not load workspace", "path", *wsPath, "error", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	api := client.New(*serverURL)
	r := &repl{
		out:    os.Stdout,
		api:    api,
		ws:     ws,
		wsPath: *wsPath,
		styles: newStyles(ws.Theme()),
		copy:   clipboard.WriteAll,
	}
	r.gen = api.NewGenerator(client.Callbacks{
		OnChunk: func(chunk string) {
			fmt.Fprint(r.out, r.styles.Muted.Render(chunk))
		},
	})
	r.gen.SetProvider(pref)
	r.session = creation.New(r.gen, api.Projects())

	if err := r.run(ctx, os.Stdin); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
