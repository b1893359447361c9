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
	"go.uber.org/zap"

	"github.com/agenthands/genai/internal/config"
	"github.com/agenthands/genai/internal/core"
	"github.com/agenthands/genai/internal/driver"
	"github.com/agenthands/genai/internal/llm"
	"github.com/agenthands/genai/internal/logging"
	"github.com/agenthands/genai/internal/sequence"
	"github.com/agenthands/genai/internal/server"
	"github.com/agenthands/genai/internal/store"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = config.DefaultPath
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Printf("Could not load %s: %v. Using defaults", cfgPath, err)
		cfg = config.Defaults()
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	switch cfg.Storage.Backend {
	case "memory":
		logger.Warn("Using in-memory storage; data is lost on restart")
		st = store.NewMemoryStore()
	default:
		d, err := driver.NewMemgraphDriver(ctx, cfg.Memgraph.URI, cfg.Memgraph.User, cfg.Memgraph.Password, logger.Named("memgraph"))
		if err != nil {
			return err
		}
		defer func() { _ = d.Close(context.Background()) }()
		if err := d.BuildIndices(ctx); err != nil {
			return fmt.Errorf("build indices: %w", err)
		}
		st = store.NewGraphStore(d)
	}

	var ids sequence.Generator
	switch cfg.Storage.BatchIDs {
	case "redis":
		rdb, err := sequence.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer func() { _ = rdb.Close() }()
		ids = sequence.NewRedis(rdb, cfg.Redis.KeyPrefix)
	case "graph":
		ids = sequence.FromCounter(st, driver.SeqBatch)
	default:
		logger.Warn("Batch ids come from a process-local counter")
		ids = sequence.NewLocal()
	}

	router := llm.NewRouter(cfg.LLM)
	defer func() { _ = router.Close() }()

	g := core.NewGenAI(st, router, ids, cfg, logger)
	srv := server.NewServer(g, cfg.Server, logger.Named("http"))

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", zap.String("port", cfg.Server.Port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
