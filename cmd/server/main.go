package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/volcengine/veadk-go/apps"
	"github.com/volcengine/veadk-go/apps/a2a_app"
	"google.golang.org/adk/agent"

	"github.com/zhengjr9/vibes/internal/a2a"
	"github.com/zhengjr9/vibes/internal/config"
	"github.com/zhengjr9/vibes/internal/orchestrator"
	"github.com/zhengjr9/vibes/internal/project"
	"github.com/zhengjr9/vibes/internal/provider"
	"github.com/zhengjr9/vibes/internal/server"
	"github.com/zhengjr9/vibes/internal/transcribe"
)

func main() {
	cfg := config.Load()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	slog.Info("starting vibes",
		"listen", cfg.ListenAddr,
		"offline", cfg.Offline,
		"db", cfg.DBPath,
		"a2a_enabled", cfg.A2AEnabled,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orch, err := orchestrator.FromConfig(ctx, cfg)
	if err != nil {
		slog.Error("failed to configure providers", "error", err)
		os.Exit(1)
	}

	deps := server.Deps{
		Generator:   orch,
		Transcriber: transcribe.NewClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, 60*time.Second, ""),
	}
	if cfg.DBPath != "" {
		store, err := project.Open(ctx, cfg.DBPath)
		if err != nil {
			slog.Error("failed to open project store", "path", cfg.DBPath, "error", err)
			os.Exit(1)
		}
		defer store.Close()
		deps.Projects = store
	}

	srv := server.New(cfg, deps)
	srvErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
	}()

	// Optionally start the A2A server.
	a2aErr := make(chan error, 1)
	if cfg.A2AEnabled {
		pref, _ := provider.ParseID(cfg.DefaultProvider)
		vibesAgent, err := a2a.New(a2a.AgentConfig{
			Name:        cfg.AgentName,
			Description: cfg.AgentDesc,
			Generator:   orch,
			Preference:  pref,
		})
		if err != nil {
			slog.Error("failed to create A2A agent", "error", err)
			os.Exit(1)
		}

		slog.Info("starting A2A server", "port", cfg.A2APort, "agent_name", cfg.AgentName)
		app := a2a_app.NewAgentkitA2AServerApp(apps.DefaultApiConfig().SetPort(cfg.A2APort))
		go func() {
			if err := app.Run(ctx, &apps.RunConfig{
				AgentLoader: agent.NewSingleLoader(vibesAgent),
			}); err != nil {
				a2aErr <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	case err := <-srvErr:
		slog.Error("server error", "error", err)
		os.Exit(1)
	case err := <-a2aErr:
		slog.Error("A2A server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}
