// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	SessionTTL  time.Duration
	LLM         LLMConfig
	Sandbox     SandboxConfig

	// Admins and Trials are the operator/demo allow-lists. Matching either
	// short-circuits the progress store entirely.
	Admins []AllowListEntry
	Trials []AllowListEntry
}

// LLMConfig holds settings for the chat-completion API.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string // tutoring, problem generation, judging
	FastModel      string // flowchart/DOT generation
	RequestTimeout time.Duration
	MaxTokens      int
}

// SandboxConfig holds settings for the code-execution sandbox.
type SandboxConfig struct {
	Mode       string // "docker" or "remote"
	RemoteURL  string // remote execution endpoint (Mode == "remote")
	Image      string // container image (Mode == "docker")
	Runtime    string // Docker runtime: "" = default (runc), "runsc" = gVisor
	RunTimeout time.Duration
}

// AllowListEntry is one operator/demo credential configured outside the
// progress store.
type AllowListEntry struct {
	Identity    string
	DisplayName string
	Credential  string
}

const (
	SandboxModeDocker = "docker"
	SandboxModeRemote = "remote"
)

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	admins, err := parseAllowList(getEnv("ADMIN_ACCOUNTS", ""))
	if err != nil {
		return nil, fmt.Errorf("parse ADMIN_ACCOUNTS: %w", err)
	}
	trials, err := parseAllowList(getEnv("TRIAL_ACCOUNTS", ""))
	if err != nil {
		return nil, fmt.Errorf("parse TRIAL_ACCOUNTS: %w", err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/pycoach.db"),
		SessionTTL:  getEnvDuration("SESSION_TTL", 60*time.Minute),
		LLM: LLMConfig{
			APIKey:         getEnv("LLM_API_KEY", ""),
			BaseURL:        getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
			ChatModel:      getEnv("LLM_CHAT_MODEL", "llama-3.3-70b-versatile"),
			FastModel:      getEnv("LLM_FAST_MODEL", "llama-3.1-8b-instant"),
			RequestTimeout: getEnvDuration("LLM_REQUEST_TIMEOUT", 60*time.Second),
			MaxTokens:      getEnvInt("LLM_MAX_TOKENS", 1024),
		},
		Sandbox: SandboxConfig{
			Mode:       getEnv("SANDBOX_MODE", SandboxModeDocker),
			RemoteURL:  getEnv("SANDBOX_REMOTE_URL", ""),
			Image:      getEnv("SANDBOX_IMAGE", "pycoach-runner:latest"),
			Runtime:    getEnv("SANDBOX_RUNTIME", ""),
			RunTimeout: getEnvDuration("SANDBOX_RUN_TIMEOUT", 15*time.Second),
		},
		Admins: admins,
		Trials: trials,
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
// A missing LLM API key is fatal: the server refuses to serve sessions
// without its completion backend.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM_API_KEY is required")
	}
	switch c.Sandbox.Mode {
	case SandboxModeDocker:
	case SandboxModeRemote:
		if c.Sandbox.RemoteURL == "" {
			return fmt.Errorf("SANDBOX_REMOTE_URL is required when SANDBOX_MODE=remote")
		}
	default:
		return fmt.Errorf("SANDBOX_MODE must be %q or %q", SandboxModeDocker, SandboxModeRemote)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// parseAllowList parses "identity:name:password" entries separated by commas.
func parseAllowList(raw string) ([]AllowListEntry, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var entries []AllowListEntry
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.SplitN(part, ":", 3)
		if len(fields) != 3 {
			return nil, fmt.Errorf("entry %q must be identity:name:password", part)
		}
		entries = append(entries, AllowListEntry{
			Identity:    fields[0],
			DisplayName: fields[1],
			Credential:  fields[2],
		})
	}
	return entries, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
