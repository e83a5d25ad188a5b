package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/voidspan/concierge/internal/api"
	"github.com/voidspan/concierge/internal/config"
	"github.com/voidspan/concierge/internal/orchestrator"
	"github.com/voidspan/concierge/internal/provider"
	"github.com/voidspan/concierge/internal/registry"
	"github.com/voidspan/concierge/internal/router"
	"github.com/voidspan/concierge/internal/session"
	"github.com/voidspan/concierge/internal/toolexec"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	logger.Info("Starting Concierge...")

	// Load configuration
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "configs/concierge.json"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", cfgPath), zap.Error(err))
	}
	logger.Info("Config loaded", zap.String("path", cfgPath))

	// Session store
	store, err := buildStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize session store", zap.Error(err))
	}
	defer store.Close()

	// Generation providers, walked in config order on failure
	var chain []provider.Generator
	for _, pc := range cfg.Providers {
		provCfg := provider.Config{
			ID: pc.ID, Type: pc.Type, Name: pc.Name,
			Endpoint: pc.Endpoint, APIKey: pc.APIKey, Model: pc.Model,
		}
		switch pc.Type {
		case "openai":
			chain = append(chain, provider.NewOpenAIGenerator(provCfg, logger))
		case "ollama":
			chain = append(chain, provider.NewOllamaGenerator(provCfg, logger))
		default:
			logger.Warn("unknown provider type", zap.String("id", pc.ID), zap.String("type", pc.Type))
		}
	}
	if len(chain) == 0 {
		logger.Fatal("no usable generation providers configured")
	}
	gen := provider.NewFailover(chain, logger)

	// Tool registry and routing strategy
	reg := registry.Builtin()
	var strategy router.Strategy
	switch cfg.Router.Strategy {
	case "model":
		strategy = router.NewModelStrategy(reg, gen, logger)
	default:
		strategy = router.NewRuleStrategy(reg, ruleConfig(cfg.Router), logger)
	}
	logger.Info("Router initialized",
		zap.String("strategy", cfg.Router.Strategy),
		zap.Int("tools", len(reg.List())))

	// Tool executor
	execTimeout := time.Duration(cfg.Tools.TimeoutSeconds) * time.Second
	executor := toolexec.NewHTTPExecutor(cfg.Tools.ExecutorURL, execTimeout, logger)

	// Orchestrator
	orchCfg := orchestrator.DefaultConfig()
	if cfg.Router.HistoryLimit > 0 {
		orchCfg.HistoryLimit = cfg.Router.HistoryLimit
	}
	if execTimeout > 0 {
		orchCfg.CallTimeout = execTimeout
	}
	orch := orchestrator.New(store, strategy, gen, executor, orchCfg, logger)

	// HTTP server
	handler := api.NewHandler(orch, store, reg, logger)

	port := fmt.Sprintf("%d", cfg.Server.Port)
	if port == "0" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: handler.Router(),
	}

	go func() {
		logger.Info("Concierge listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Concierge...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
}

// buildStore constructs the configured session store backend.
func buildStore(cfg *config.Config, logger *zap.Logger) (session.Store, error) {
	ttlDays := cfg.Memory.TTLDays
	if ttlDays <= 0 {
		ttlDays = 30
	}
	ttl := time.Duration(ttlDays) * 24 * time.Hour

	switch cfg.Memory.Backend {
	case "postgres":
		store, err := session.NewPostgresStore(cfg.Memory.Postgres.DSN, ttl, logger)
		if err != nil {
			return nil, err
		}
		dir := cfg.Memory.Postgres.MigrationsDir
		if dir == "" {
			dir = "migrations"
		}
		if err := store.Migrate(context.Background(), dir); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case "memory":
		logger.Warn("using in-memory session store, turns will not survive restart")
		return session.NewMemStore(ttl), nil
	default:
		return session.NewRedisStore(cfg.Memory.Redis.URL, ttl, logger)
	}
}

// ruleConfig maps config fields onto the rule strategy's weights, keeping
// defaults for anything unset.
func ruleConfig(rc config.RouterConfig) router.RuleConfig {
	out := router.DefaultRuleConfig()
	if rc.ConfidenceThreshold > 0 {
		out.Threshold = rc.ConfidenceThreshold
	}
	if rc.PhraseWeight > 0 {
		out.PhraseWeight = rc.PhraseWeight
	}
	if rc.KeywordWeight > 0 {
		out.KeywordWeight = rc.KeywordWeight
	}
	if rc.VerbBonus > 0 {
		out.VerbBonus = rc.VerbBonus
	}
	if rc.PatternWeight > 0 {
		out.PatternWeight = rc.PatternWeight
	}
	if rc.Saturation > 0 {
		out.Saturation = rc.Saturation
	}
	return out
}
