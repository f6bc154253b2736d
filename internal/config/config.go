// Package config loads service settings from flags, the environment and
// optional .env.local / .env files.
package config

import (
	"flag"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvFiles are loaded in order before flags are parsed. Variables already
// present in the environment are never overridden.
var EnvFiles = []string{".env.local", ".env"}

type Config struct {
	ListenAddr string
	LogLevel   string

	// Provider A
	AnthropicAPIKey  string
	AnthropicBaseURL string
	AnthropicModel   string
	// Provider B
	GoogleAPIKey  string
	GeminiBaseURL string
	GeminiModel   string
	// Speech-to-text
	OpenAIAPIKey  string
	OpenAIBaseURL string

	DefaultProvider    string
	MaxOutputTokens    int
	ProviderMaxRetries int
	// ProviderTimeout bounds a whole generation; zero leaves it to the provider.
	ProviderTimeout time.Duration
	// Offline serves both provider slots from the built-in lorem provider.
	Offline bool

	DBPath string

	// A2A
	A2AEnabled bool
	A2APort    int
	AgentName  string
	AgentDesc  string
}

// Load reads the configuration for the server binary from os.Args.
func Load() *Config {
	loadEnvFiles()
	cfg, err := Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		// flag.CommandLine exits on error; this is unreachable in practice.
		slog.Error("parse flags", "error", err)
		os.Exit(2)
	}
	return cfg
}

// Parse registers the service flags on fs and parses args. Env defaults are
// read at registration time.
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	cfg := &Config{}

	fs.StringVar(&cfg.ListenAddr, "listen-addr", getEnv("LISTEN_ADDR", ":8080"), "HTTP listen address")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	fs.StringVar(&cfg.AnthropicAPIKey, "anthropic-api-key", getEnv("ANTHROPIC_API_KEY", ""), "Anthropic API key (enables the claude provider)")
	fs.StringVar(&cfg.AnthropicBaseURL, "anthropic-base-url", getEnv("ANTHROPIC_BASE_URL", ""), "Override the Anthropic API base URL")
	fs.StringVar(&cfg.AnthropicModel, "anthropic-model", getEnv("ANTHROPIC_MODEL", "claude-sonnet-4-20250514"), "Anthropic model")

	fs.StringVar(&cfg.GoogleAPIKey, "google-api-key", getEnv("GOOGLE_AI_API_KEY", ""), "Google AI API key (enables the gemini provider)")
	fs.StringVar(&cfg.GeminiBaseURL, "gemini-base-url", getEnv("GEMINI_BASE_URL", ""), "Override the Gemini API base URL")
	fs.StringVar(&cfg.GeminiModel, "gemini-model", getEnv("GEMINI_MODEL", "gemini-2.5-flash-lite"), "Gemini model")

	fs.StringVar(&cfg.OpenAIAPIKey, "openai-api-key", getEnv("OPENAI_API_KEY", ""), "OpenAI API key (enables speech-to-text)")
	fs.StringVar(&cfg.OpenAIBaseURL, "openai-base-url", getEnv("OPENAI_BASE_URL", ""), "Override the OpenAI API base URL")

	fs.StringVar(&cfg.DefaultProvider, "default-provider", getEnv("DEFAULT_PROVIDER", "claude"), "Provider used when a request states no preference: claude or gemini")
	fs.IntVar(&cfg.MaxOutputTokens, "max-output-tokens", getEnvInt("MAX_OUTPUT_TOKENS", 4096), "Output token cap per generation")
	fs.IntVar(&cfg.ProviderMaxRetries, "provider-max-retries", getEnvInt("PROVIDER_MAX_RETRIES", 2), "SDK-level retries per provider call")
	fs.DurationVar(&cfg.ProviderTimeout, "provider-timeout", getEnvDuration("PROVIDER_TIMEOUT", 0), "Upper bound on one generation (0 = none)")
	fs.BoolVar(&cfg.Offline, "offline", getEnvBool("VIBES_OFFLINE", false), "Serve generations from the built-in lorem provider")

	fs.StringVar(&cfg.DBPath, "db", getEnv("VIBES_DB", "vibes.db"), "SQLite database for saved projects (empty disables storage)")

	fs.BoolVar(&cfg.A2AEnabled, "a2a", getEnvBool("A2A_ENABLED", false), "Enable A2A server alongside the HTTP API")
	fs.IntVar(&cfg.A2APort, "a2a-port", getEnvInt("A2A_PORT", 8000), "A2A server listen port")
	fs.StringVar(&cfg.AgentName, "agent-name", getEnv("AGENT_NAME", "vibes"), "A2A AgentCard name")
	fs.StringVar(&cfg.AgentDesc, "agent-desc", getEnv("AGENT_DESC", "Turns a description of a game, animation or artwork into a runnable p5.js sketch"), "A2A AgentCard description")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SlogLevel maps LogLevel to a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func loadEnvFiles() {
	for _, f := range EnvFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			slog.Warn("could not load env file", "file", f, "error", err)
		}
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	switch v {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
