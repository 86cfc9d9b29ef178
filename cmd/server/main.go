package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/slidecast/engine/internal/api"
	"github.com/slidecast/engine/internal/cleanup"
	"github.com/slidecast/engine/internal/config"
	"github.com/slidecast/engine/internal/db"
	"github.com/slidecast/engine/internal/interfaces"
	"github.com/slidecast/engine/internal/jobs"
	"github.com/slidecast/engine/internal/llm"
	"github.com/slidecast/engine/internal/logger"
	"github.com/slidecast/engine/internal/media"
	"github.com/slidecast/engine/internal/nats"
	"github.com/slidecast/engine/internal/pipeline"
	"github.com/slidecast/engine/internal/tts"
	"github.com/slidecast/engine/internal/websocket"
	"github.com/slidecast/engine/internal/worker"
)

const migrationsDir = "migrations"

func main() {
	logger.Init("slidecast-engine")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Invalid configuration")
	}
	if err := cfg.Storage.EnsureDirs(); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to create artifact directories")
	}

	// Jobs live in Postgres when DATABASE_URL is set, in memory
	// otherwise.
	var store interfaces.JobStore
	if cfg.Database.URL != "" {
		database, err := db.Connect(cfg.Database.URL)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer database.Close()

		if err := db.RunMigrations(database, migrationsDir); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to run migrations")
		}

		store = db.NewStore(database)
		api.SetDBConnection(database)
		logger.Logger.Info().Msg("Using PostgreSQL job store")
	} else {
		store = jobs.NewMemoryStore(0)
		logger.Logger.Info().Msg("Using in-memory job store")
	}

	manager := jobs.NewManager(store, cfg.Limits.MaxConcurrentJobs)

	hub := websocket.NewHub()
	go hub.Run()

	// Job events flow straight into the hub, or through NATS when a
	// relay URL is configured so several instances share one stream.
	if cfg.NATS.URL != "" {
		publisher, err := nats.NewPublisher(cfg.NATS.URL)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to connect to NATS")
		}
		defer publisher.Close()

		relay, err := nats.NewRelay(cfg.NATS.URL, hub)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to create NATS relay")
		}
		if err := relay.Subscribe(); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to subscribe to NATS")
		}
		defer relay.Close()

		manager.AddNotifier(publisher)
		logger.Logger.Info().Str("url", cfg.NATS.URL).Msg("NATS event relay started")
	} else {
		manager.AddNotifier(hub)
	}

	llmClient := llm.NewClient(cfg.LLM)
	api.SetLLMPinger(llmClient)

	speech := tts.NewSynthesizer(cfg.TTS, cfg.Storage.AudioDir())
	assembler := media.NewAssembler(cfg.Video, cfg.Storage)
	processor := pipeline.NewProcessor(manager, llmClient, speech, assembler)

	pool := worker.NewPool(manager, processor, cfg.Limits.MaxConcurrentJobs, cfg.Limits.JobTimeout)
	pool.Start()

	var sweeper *cleanup.Sweeper
	if cfg.Cleanup.Enabled {
		sweeper = cleanup.NewSweeper(cfg.Storage, cfg.Cleanup.MaxAge)
		if err := sweeper.Start(cfg.Cleanup.Schedule); err != nil {
			logger.Logger.Fatal().Err(err).Msg("Failed to schedule cleanup")
		}
	}

	server := api.NewServer(cfg, manager, hub)
	go func() {
		if err := server.Start(); err != nil {
			logger.Logger.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info().Msg("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error().Err(err).Msg("HTTP shutdown failed")
	}

	pool.Stop()
	if sweeper != nil {
		sweeper.Stop()
	}

	logger.Logger.Info().Msg("Engine stopped")
}
