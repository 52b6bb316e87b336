package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ordering_assistant/internal/api"
	"ordering_assistant/internal/assistant"
	"ordering_assistant/internal/config"
	"ordering_assistant/internal/nlu"
	"ordering_assistant/internal/nodes"
	"ordering_assistant/internal/services"
	"ordering_assistant/internal/storage"
	"ordering_assistant/pkg"
	"ordering_assistant/src"
	"ordering_assistant/src/logger"
	"ordering_assistant/src/model"

	"github.com/joho/godotenv"
)

// app holds the wired components of one server process
type app struct {
	store        *storage.ContextStore
	orchestrator *assistant.Orchestrator
}

func main() {
	// a missing .env is fine, the environment may already be set
	_ = godotenv.Load()

	cfg, err := src.LoadConfig()
	if err != nil {
		// logger settings may be the bad part, so report with defaults
		_ = logger.InitLogger(model.LogConfig{Level: "info", Format: "console", Output: "stderr"})
		fatal(err)
	}

	if err := logger.InitLogger(cfg.LogConfig); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	defer func() {
		if err := a.store.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close turn log")
		}
	}()

	sweeperDone := storage.StartSweeper(ctx, a.store,
		time.Duration(cfg.ConversationConfig.SweepIntervalSeconds)*time.Second,
		cfg.ConversationConfig.SessionIdleTimeoutMinutes)

	srv := &http.Server{
		Addr:              ":" + cfg.ServerConfig.Port,
		Handler:           api.NewRouter(api.NewHandler(a.orchestrator)),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	<-sweeperDone
	logger.Info().Msg("server stopped")
}

// build wires config -> NLU -> pipeline -> store -> backend -> orchestrator
func build(ctx context.Context, cfg *src.Config) (*app, error) {
	yamlCfg := &config.YAMLConfig{}
	if path := cfg.NLUConfig.ConfigFile; path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		yamlCfg = loaded
		logger.Info().Str("path", path).Msg("loaded assistant config file")
	}

	menu := config.BuildMenu(yamlCfg)
	processorCfg, err := config.BuildProcessorConfig(yamlCfg, cfg.NLUConfig, menu)
	if err != nil {
		return nil, err
	}
	processor, err := nlu.NewProcessor(processorCfg)
	if err != nil {
		return nil, err
	}

	generator := nodes.NewResponseGenerator(menu)
	pipeline, err := nodes.NewPipeline(ctx, processor, generator)
	if err != nil {
		return nil, err
	}

	conv := cfg.ConversationConfig
	turnLog, err := storage.BuildTurnLog(ctx, cfg.TurnLogConfig.Backend, cfg.TurnLogConfig.RedisURL,
		cfg.TurnLogConfig.SQLitePath, cfg.TurnLogConfig.Dir,
		time.Duration(conv.SessionIdleTimeoutMinutes)*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("failed to open turn log: %w", err)
	}
	store := storage.NewContextStore(storage.ContextStoreConfig{MaxContextTurns: conv.MaxContextTurns}, turnLog)

	backend, err := buildBackend(ctx, cfg, menu)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	backendName := "none"
	if backend != nil {
		backendName = backend.Name()
	}
	logger.Info().
		Str("backend", backendName).
		Str("turn_log", cfg.TurnLogConfig.Backend).
		Int("max_context_turns", conv.MaxContextTurns).
		Strs("entities", processor.Registry().Types()).
		Msg("assistant ready")

	return &app{
		store: store,
		orchestrator: assistant.NewOrchestrator(assistant.OrchestratorConfig{
			Store:     store,
			Backend:   backend,
			Local:     pipeline,
			Generator: generator,
			NLU:       processor,
		}),
	}, nil
}

func buildBackend(ctx context.Context, cfg *src.Config, menu *services.MenuService) (assistant.Backend, error) {
	remote := cfg.RemoteConfig
	timeout := time.Duration(remote.TimeoutMs) * time.Millisecond

	switch remote.Provider {
	case "none":
		return nil, nil
	case "http":
		return assistant.NewHTTPBackend(remote.Endpoint, timeout, nil), nil
	default:
		chatModel, err := assistant.NewChatModel(ctx, remote)
		if err != nil {
			return nil, err
		}
		return assistant.NewChatModelBackend(remote.Provider, chatModel, menu, remote.SystemPrompt, timeout), nil
	}
}

func fatal(err error) {
	var cfgErr *pkg.ConfigurationError
	if errors.As(err, &cfgErr) {
		logger.Fatal().Err(err).Str("field", cfgErr.Field).Msg("invalid configuration")
	}
	logger.Fatal().Err(err).Msg("failed to start assistant")
}
