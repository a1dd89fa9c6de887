package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/npc-mind/internal/config"
	"github.com/jwebster45206/npc-mind/internal/dialogue"
	"github.com/jwebster45206/npc-mind/internal/handlers"
	"github.com/jwebster45206/npc-mind/internal/logger"
	"github.com/jwebster45206/npc-mind/internal/services/events"
	"github.com/jwebster45206/npc-mind/internal/services/queue"
	"github.com/jwebster45206/npc-mind/internal/storage"
	"github.com/jwebster45206/npc-mind/internal/worker"
	pkgstorage "github.com/jwebster45206/npc-mind/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting NPC Mind API",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"storage_backend", cfg.StorageBackend,
		"dialogue_mode", cfg.DialogueMode)

	store, err := storage.Open(cfg, log)
	if err != nil {
		log.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	storageCtx, storageCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer storageCancel()
	if err := storage.Connect(storageCtx, store, 10, 2*time.Second); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	log.Info("Storage connection established successfully")

	h := handlers.Handlers{}
	locks := pkgstorage.NewAgentLocks()
	extra := map[string]handlers.Pinger{}
	var canceller handlers.AgentCanceller
	var deletions handlers.DeletionPublisher

	switch cfg.DialogueMode {
	case config.DialogueQueued:
		queueCtx, queueCancel := context.WithTimeout(context.Background(), 10*time.Second)
		queueClient, err := queue.NewClient(queueCtx, cfg.RedisURL, log)
		queueCancel()
		if err != nil {
			log.Error("Failed to create queue client", "error", err)
			os.Exit(1)
		}
		defer func() {
			if err := queueClient.Close(); err != nil {
				log.Error("Error closing queue client", "error", err)
			}
		}()

		broadcaster := events.NewBroadcaster(queueClient.Redis(), log)
		deletions = broadcaster
		extra["queue"] = queueClient
		h.Dialogue = handlers.NewDialogueHandler(store, queue.NewDialogueQueue(queueClient), broadcaster, nil, log)
		h.Events = handlers.NewEventsHandler(broadcaster, log)
		log.Info("Queue service initialized successfully")

	case config.DialogueInline:
		dispatcher, err := dialogue.NewFromConfig(cfg, log)
		if err != nil {
			log.Error("Failed to create dialogue service", "error", err)
			os.Exit(1)
		}
		defer dispatcher.Close()

		canceller = dispatcher
		processor := worker.NewDialogueProcessor(store, dispatcher, cfg.ContentRating, log).WithLocks(locks)
		h.Dialogue = handlers.NewDialogueHandler(store, nil, nil, processor, log)
		log.Info("Inline dialogue initialized", "model", dispatcher.ModelName())
	}

	h.Health = handlers.NewHealthHandler(store, extra, log)
	h.NPCs = handlers.NewNPCHandler(store, canceller, deletions, log).WithLocks(locks)

	server := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     handlers.NewRouter(h, log),
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: the events stream stays open
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Info("Server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server is shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	if err := store.Close(); err != nil {
		log.Error("Error closing storage connection", "error", err)
	}

	log.Info("Server exited")
}
