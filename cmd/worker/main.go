package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jwebster45206/npc-mind/internal/config"
	"github.com/jwebster45206/npc-mind/internal/dialogue"
	"github.com/jwebster45206/npc-mind/internal/logger"
	"github.com/jwebster45206/npc-mind/internal/services/queue"
	"github.com/jwebster45206/npc-mind/internal/storage"
	"github.com/jwebster45206/npc-mind/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	log := logger.Setup(cfg)

	log.Info("Starting NPC Mind Worker",
		"environment", cfg.Environment,
		"redis_url", cfg.RedisURL,
		"storage_backend", cfg.StorageBackend)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	queueClient, err := queue.NewClient(ctx, cfg.RedisURL, log)
	if err != nil {
		log.Error("Failed to create queue client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			log.Error("Error closing queue client", "error", err)
		}
	}()
	dialogueQueue := queue.NewDialogueQueue(queueClient)
	log.Info("Queue service initialized successfully")

	store, err := storage.Open(cfg, log)
	if err != nil {
		log.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	if err := storage.Connect(ctx, store, 10, 2*time.Second); err != nil {
		log.Error("Failed to connect to storage", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Error closing storage", "error", err)
		}
	}()
	log.Info("Storage service initialized successfully")

	dispatcher, err := dialogue.NewFromConfig(cfg, log)
	if err != nil {
		log.Error("Failed to create dialogue service", "error", err)
		os.Exit(1)
	}
	defer dispatcher.Close()
	log.Info("Dialogue service initialized successfully", "model", dispatcher.ModelName())

	processor := worker.NewDialogueProcessor(store, dispatcher, cfg.ContentRating, log)
	w := worker.New(dialogueQueue, processor, queueClient.Redis(), log, cfg.WorkerID)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := w.Start(); err != nil {
			log.Error("Worker error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("Worker started, waiting for requests...", "worker_id", w.ID())

	<-quit
	log.Info("Worker shutdown signal received")

	w.Stop()

	// give the current request time to finish
	time.Sleep(2 * time.Second)

	log.Info("Worker exited")
}
