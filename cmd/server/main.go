package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/otic-foundation/chatrelay/pkg/chat"
	"github.com/otic-foundation/chatrelay/pkg/config"
	"github.com/otic-foundation/chatrelay/pkg/guardrails"
	"github.com/otic-foundation/chatrelay/pkg/interfaces"
	"github.com/otic-foundation/chatrelay/pkg/llm/groq"
	"github.com/otic-foundation/chatrelay/pkg/logging"
	"github.com/otic-foundation/chatrelay/pkg/memory"
	"github.com/otic-foundation/chatrelay/pkg/server"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	apiKey, err := config.APIKey()
	if err != nil {
		log.Fatalf("refusing to start: %v", err)
	}

	logger := logging.New(logging.WithLevel(cfg.Logging.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := initMemory(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to init conversation store: %v", err)
	}
	defer closeStore()

	service, err := chat.NewService(buildServiceOptions(cfg, apiKey, logger, store)...)
	if err != nil {
		log.Fatalf("failed to create chat service: %v", err)
	}

	go sweepLoop(ctx, service, cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           server.New(service, server.WithLogger(logger)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "Server listening", map[string]interface{}{"addr": srv.Addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}
}

func initMemory(ctx context.Context, cfg *config.Config) (interfaces.Memory, func() error, error) {
	if cfg.Memory.Backend == "redis" {
		store, err := memory.NewRedisMemoryFromConfig(ctx,
			memory.RedisConfig{
				Addr:     cfg.Memory.RedisAddr,
				Password: cfg.Memory.RedisPassword,
				DB:       cfg.Memory.RedisDB,
			},
			memory.WithRedisMaxTurns(cfg.Memory.MaxTurns),
			memory.WithTTL(cfg.SessionTTL()),
		)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}

	store := memory.NewConversationBuffer(memory.WithMaxTurns(cfg.Memory.MaxTurns))
	return store, func() error { return nil }, nil
}

func buildServiceOptions(cfg *config.Config, apiKey string, logger logging.Logger, store interfaces.Memory) []chat.Option {
	providerOptions := []groq.Option{
		groq.WithLogger(logger),
		groq.WithMaxTokens(cfg.Provider.MaxTokens),
		groq.WithTemperature(cfg.Provider.Temperature),
	}
	if cfg.Provider.Model != "" {
		providerOptions = append(providerOptions, groq.WithModel(cfg.Provider.Model))
	}
	if cfg.Provider.BaseURL != "" {
		providerOptions = append(providerOptions, groq.WithBaseURL(cfg.Provider.BaseURL))
	}

	options := []chat.Option{
		chat.WithProvider(groq.NewClient(apiKey, providerOptions...)),
		chat.WithMemory(store),
		chat.WithLimiter(guardrails.NewSlidingWindowLimiter(
			guardrails.WithLimit(cfg.Guard.RateLimit),
			guardrails.WithWindow(cfg.RateWindow()),
		)),
		chat.WithFilter(guardrails.NewContentFilter(
			guardrails.WithExtraPhrases(cfg.Guard.ExtraBlockedPhrases...),
		)),
		chat.WithResponseBudget(cfg.Guard.ResponseBudget),
		chat.WithCallTimeout(cfg.ProviderTimeout()),
		chat.WithLogger(logger),
	}
	if cfg.Persona != "" {
		options = append(options, chat.WithPersona(cfg.Persona))
	}

	return options
}

func sweepLoop(ctx context.Context, service *chat.Service, cfg *config.Config) {
	ticker := time.NewTicker(cfg.SweepInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			service.Sweep(cfg.IdleTTL())
		}
	}
}
