// PyCoach - AI Python tutoring dashboard server
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

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/pycoach/server/internal/api"
	"github.com/pycoach/server/internal/auth"
	"github.com/pycoach/server/internal/chat"
	"github.com/pycoach/server/internal/config"
	"github.com/pycoach/server/internal/grader"
	"github.com/pycoach/server/internal/llm"
	"github.com/pycoach/server/internal/middleware"
	"github.com/pycoach/server/internal/progression"
	"github.com/pycoach/server/internal/sandbox"
	"github.com/pycoach/server/internal/session"
	"github.com/pycoach/server/internal/store"
	"github.com/pycoach/server/internal/tutor"
	"github.com/pycoach/server/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		// Configuration errors (missing LLM key included) are fatal: the
		// server refuses to serve any session without its collaborators.
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	var runner sandbox.Runner
	switch cfg.Sandbox.Mode {
	case config.SandboxModeRemote:
		runner = sandbox.NewRemoteRunner(cfg.Sandbox.RemoteURL, cfg.Sandbox.RunTimeout)
		slog.Info("Sandbox runner initialized", "mode", "remote", "url", cfg.Sandbox.RemoteURL)
	default:
		dockerRunner, err := sandbox.NewDockerRunner(cfg.Sandbox.Image, cfg.Sandbox.Runtime, cfg.Sandbox.RunTimeout)
		if err != nil {
			slog.Error("Failed to initialize sandbox runner", "error", err)
			os.Exit(1)
		}
		if err := dockerRunner.Ping(context.Background()); err != nil {
			slog.Error("Sandbox health check failed", "error", err)
			os.Exit(1)
		}
		runner = dockerRunner
		slog.Info("Sandbox runner initialized", "mode", "docker", "image", cfg.Sandbox.Image)
	}

	llmClient, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:       cfg.LLM.APIKey,
		BaseURL:      cfg.LLM.BaseURL,
		DefaultModel: cfg.LLM.ChatModel,
		MaxTokens:    cfg.LLM.MaxTokens,
		Timeout:      cfg.LLM.RequestTimeout,
	})
	if err != nil {
		slog.Error("Failed to initialize LLM client", "error", err)
		os.Exit(1)
	}
	client := llm.WithRetry(llmClient, llm.DefaultRetryConfig())
	slog.Info("LLM client initialized", "base_url", cfg.LLM.BaseURL, "chat_model", cfg.LLM.ChatModel)

	// Initialize services.
	tutorSvc := tutor.NewService(client, cfg.LLM.ChatModel, cfg.LLM.FastModel)
	oracle := grader.NewOracle(runner, client, cfg.LLM.ChatModel)
	engine := progression.NewEngine(repo)
	gate := auth.NewGate(cfg, repo)
	sessions := session.NewManager(cfg.IsDevelopment())
	sockets := chat.NewManager()

	// Initialize handlers.
	authHandler := api.NewAuthHandler(gate, sessions, sockets)
	arenaHandler := api.NewArenaHandler(tutorSvc, oracle, engine)
	tutorHandler := api.NewTutorHandler(tutorSvc)
	healthHandler := api.NewHealthHandler(repo, sessions)
	wsHandler := chat.NewWebSocketHandler(tutorSvc, sockets, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))
	r.Use(sessions.Middleware)

	// Public routes.
	healthHandler.RegisterHealth(r)
	authHandler.RegisterRoutes(r)

	// Session-scoped routes (handlers reject missing sessions).
	arenaHandler.RegisterRoutes(r)
	tutorHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/chat", wsHandler.ServeHTTP)

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	// Create server.
	// Note: SSE chat streams require long write timeouts.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout for SSE support
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start idle-session reaper; expired sessions drop their chat socket.
	sessions.StartReaper(ctx, cfg.SessionTTL, sockets.CloseSession)
	slog.Info("Session reaper started", "session_ttl", cfg.SessionTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
