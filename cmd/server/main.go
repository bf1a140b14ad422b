package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sanjaynair/amlscope/internal/api"
	"github.com/sanjaynair/amlscope/internal/cache"
	"github.com/sanjaynair/amlscope/internal/config"
	"github.com/sanjaynair/amlscope/internal/emit"
	"github.com/sanjaynair/amlscope/internal/engine"
	"github.com/sanjaynair/amlscope/internal/llm"
	"github.com/sanjaynair/amlscope/internal/refdata"
	"github.com/sanjaynair/amlscope/internal/tools"
)

func main() {
	addr := flag.String("addr", ":8080", "HTTP listen address")
	cfgPath := flag.String("config", "configs/config.yaml", "Path to YAML config")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// ── Load config ──────────────────────────────────────────────────────────
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Warn("using default config", "err", err)
	}

	// ── Reference data ────────────────────────────────────────────────────────
	provider := refdata.NewFileProvider(cfg.RefData.Path, cfg.RefData.Precedence)
	if cfg.RefData.Watch {
		stopWatch, err := provider.Watch()
		if err != nil {
			slog.Warn("refdata watcher unavailable (hot-reload disabled)", "err", err)
		} else {
			defer stopWatch()
		}
	}

	// ── Tool registry ─────────────────────────────────────────────────────────
	store := cache.New(cache.NewMemoryStore())
	reg := tools.NewRegistry()
	tools.RegisterBuiltins(reg, store, provider, tools.NewMemoryIndex(nil), tools.NewOfflineLookup(), cfg.TTLs())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── LLM collaborator ──────────────────────────────────────────────────────
	client := buildClient(ctx, cfg.LLM)

	// ── Event emitter ─────────────────────────────────────────────────────────
	var emitter emit.Emitter = emit.NewLogEmitter()
	if cfg.PubSub.Enabled {
		ps, err := emit.NewPubSubEmitter(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicID)
		if err != nil {
			slog.Warn("pubsub emitter unavailable", "err", err)
		} else {
			emitter = emit.NewMultiEmitter(emit.NewLogEmitter(), ps)
		}
	}

	// ── Controller ────────────────────────────────────────────────────────────
	ctrl := engine.NewController(ctx, client, reg, provider, emitter, engine.Conf{
		EnrichmentWorkers: cfg.Engine.EnrichmentWorkers,
		QueueDepth:        cfg.Engine.QueueDepth,
		ToolTimeout:       time.Duration(cfg.Engine.ToolTimeoutMs) * time.Millisecond,
		StageTimeout:      time.Duration(cfg.Engine.StageTimeoutMs) * time.Millisecond,
	})

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.New(ctrl, provider)
	srv := &http.Server{
		Addr:         *addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	cancel() // stop enrichment workers
	ctrl.Shutdown()
	slog.Info("goodbye")
}

// buildClient selects the collaborator. Gemini needs an API key; without
// one the deterministic offline client keeps the service usable.
func buildClient(ctx context.Context, cfg config.LLMConf) llm.Client {
	apiKey := os.Getenv(cfg.APIKeyEnv)
	switch {
	case cfg.Provider == "offline":
		slog.Info("using offline collaborator")
		return llm.NewOffline()
	case apiKey == "":
		slog.Warn("no API key set, using offline collaborator", "env", cfg.APIKeyEnv)
		return llm.NewOffline()
	default:
		client, err := llm.NewGemini(ctx, apiKey, cfg.Model)
		if err != nil {
			slog.Warn("gemini unavailable, using offline collaborator", "err", err)
			return llm.NewOffline()
		}
		slog.Info("using gemini collaborator", "model", cfg.Model)
		return client
	}
}
