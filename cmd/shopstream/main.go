package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"shopstream/internal/adapter/catalog"
	"shopstream/internal/adapter/gateway"
	"shopstream/internal/adapter/llm"
	"shopstream/internal/adapter/store"
	"shopstream/internal/adapter/tool"
	"shopstream/internal/domain"
	"shopstream/internal/infra/config"
	"shopstream/internal/infra/logger"
	"shopstream/internal/infra/tracer"
	"shopstream/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return err
	}
	defer shutdownTracer(context.Background())

	convStore, err := newStore(cfg.Store)
	if err != nil {
		return err
	}
	defer convStore.Close()

	cat, err := catalog.NewCatalog(cfg.Catalog, log)
	if err != nil {
		return err
	}

	registry := tool.NewRegistry(log)
	for _, t := range []domain.Tool{
		tool.NewSearchTool(cat, cfg.Catalog.SearchLimit),
		tool.NewOrderHistoryTool(cat),
		tool.NewReviewsTool(cat),
	} {
		if err := registry.Register(t); err != nil {
			return err
		}
	}

	bedrock, err := llm.NewBedrockProvider(cfg.LLM, log)
	if err != nil {
		return err
	}
	provider := llm.NewCircuitBreakerProvider(bedrock, cfg.LLM.Breaker, log)

	orchestrator := usecase.NewOrchestrator(usecase.OrchestratorDeps{
		Router:      usecase.NewRouter(provider, log),
		Context:     usecase.NewContextBuilder(convStore, log, cfg.Store.HistoryLimit, cfg.LLM.ContextBudget),
		LLM:         provider,
		Tools:       registry,
		Store:       convStore,
		Orders:      cat,
		Reviews:     cat,
		Logger:      log,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		SessionTTL:  cfg.Store.SessionTTL,
	})

	janitor := usecase.NewJanitor(convStore, log, cfg.Store.SweepCron)
	if err := janitor.Start(ctx); err != nil {
		return err
	}
	defer janitor.Stop()

	auth := gateway.NewStaticTokenAuth(cfg.Gateway.Tokens)
	server := gateway.NewServer(orchestrator, auth, cfg.Gateway, log)

	log.Info("shopstream starting",
		"addr", cfg.Gateway.Addr,
		"model", cfg.LLM.Model,
		"store", cfg.Store.Backend,
	)
	return server.Start(ctx)
}

func newStore(cfg config.StoreConfig) (domain.ConversationStore, error) {
	switch cfg.Backend {
	case "redis":
		return store.NewRedisStore(cfg.RedisURL, cfg.SessionTTL)
	default:
		return store.NewSQLiteStore(cfg.Path)
	}
}
