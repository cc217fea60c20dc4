package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/SeanStafford/ENTROPY/internal/agent"
	"github.com/SeanStafford/ENTROPY/internal/config"
	"github.com/SeanStafford/ENTROPY/internal/httpapi"
	"github.com/SeanStafford/ENTROPY/internal/obslog"
	"github.com/SeanStafford/ENTROPY/internal/orchestrator"
	"github.com/SeanStafford/ENTROPY/internal/session"
	"github.com/SeanStafford/ENTROPY/internal/specialistpool"
)

var errMissingAPIKey = errors.New("CLAUDE_API_KEY not set")

func main() {
	_ = godotenv.Load()

	if err := obslog.Init(); err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := requireAPIKey(ctx); err != nil {
		obslog.ErrorWithErr(ctx, "startup misconfiguration", err)
		os.Exit(1)
	}

	llm := initializeLLM()
	retriever, docs := initializeRetrieval(ctx, cfg)
	mdt, feed := initializeMarketData(cfg)
	if err := feed.Start(ctx, nil); err != nil {
		obslog.ErrorWithErr(ctx, "quotes feed failed to start, market data will report absent", err)
	}

	generalist, marketSpecialist, newsSpecialist := initializeAgents(llm, retriever, mdt, cfg.Agent.MaxSteps)

	sessions := session.New()
	poolOpts := []specialistpool.Option{
		specialistpool.WithWorkers(cfg.Specialist.MaxWorkers),
		specialistpool.WithQueueCapacity(cfg.Specialist.QueueCapacity),
		specialistpool.WithCacheTTL(cfg.TTL()),
		specialistpool.WithCacheCapacity(cfg.Specialist.CacheCapacity),
	}
	orch := orchestrator.New(generalist, agent.GeneralistConfig(), marketSpecialist, newsSpecialist, sessions, poolOpts,
		orchestrator.WithSpecialistTimeout(cfg.SpecialistTimeout()))

	server := httpapi.New(orch, retriever, mdt, docs)

	httpServer := &http.Server{Addr: cfg.HTTP.Addr, Handler: server}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		obslog.Info(ctx, "ENTROPY listening", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			obslog.ErrorWithErr(ctx, "http server failed", err)
		}
	}()

	<-sigc
	obslog.Info(ctx, "shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	orch.Shutdown()
	feed.Stop()
	_ = obslog.Shutdown(shutdownCtx)
}
