package main

import (
	"context"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"notification-engine/internal/api"
	"notification-engine/internal/config"
	"notification-engine/internal/db"
	"notification-engine/internal/directory"
	"notification-engine/internal/dispatch"
	"notification-engine/internal/engine"
	"notification-engine/internal/kafka"
	"notification-engine/internal/logging"
	"notification-engine/internal/models"
	"notification-engine/internal/providers"
	"notification-engine/internal/status"
	"notification-engine/internal/template"
	"notification-engine/internal/utils"
	"notification-engine/internal/ws"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// Connect to database
	dbConn, err := db.New(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	defer dbConn.Close()
	if err := utils.Retry(logger, 5, time.Second, func() error {
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return dbConn.Pool.Ping(pingCtx)
	}); err != nil {
		logger.Errorf("Database unreachable: %v", err)
		log.Fatalf("Database unreachable: %v", err)
	}

	dir := directory.NewClient(cfg.Directory.BaseURL, cfg.Directory.Token)
	hub := ws.NewHub(logger)
	tracker := status.NewTracker(dbConn, logger)

	// Wire channel transports
	transports := map[models.Channel]dispatch.Transport{
		models.ChannelDashboard: hub,
		models.ChannelEmail:     providers.NewEmailTransport(cfg),
	}
	if cfg.Chat.Provider == "telegram" {
		tg, err := providers.NewTelegramTransport(cfg, dbConn)
		if err != nil {
			logger.Errorf("Chat transport disabled: %v", err)
		} else {
			transports[models.ChannelChat] = tg
		}
	} else {
		transports[models.ChannelChat] = providers.NewWhatsAppTransport(cfg)
	}

	// Start dispatch workers
	queue := dispatch.NewQueue(cfg.Dispatch.QueueSize, cfg.Dispatch.MaxAttempts, tracker, transports, logger)
	var wg sync.WaitGroup
	queue.Start(cfg.Dispatch.MaxWorkers, &wg)

	// Event processor
	renderer := template.NewRenderer(template.DefaultPhrases(), rand.New(rand.NewSource(time.Now().UnixNano())))
	processor := engine.NewProcessor(dbConn, dbConn, dir, renderer, queue, logger)

	// Start Kafka consumer
	ctx, cancel := context.WithCancel(context.Background())
	consumer := kafka.NewConsumer([]string{cfg.Kafka.Broker}, cfg.Kafka.Topic, cfg.Kafka.GroupID, processor, logger)
	consumer.Start(ctx, &wg)

	// Start API server
	handler := api.NewHandler(dbConn, logger, processor, tracker, queue, hub, dir)
	router := api.NewRouter(cfg, handler)
	go func() {
		logger.Infof("API started on %s", cfg.API.Port)
		if err := router.Run(cfg.API.Port); err != nil {
			logger.Errorf("API server failed: %v", err)
		}
	}()

	// Handle graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.Info("Shutting down...")
	cancel()
	if err := consumer.Close(); err != nil {
		logger.Errorf("Kafka close failed: %v", err)
	}
	queue.Stop()
	wg.Wait()
	logger.Info("Service stopped")
}
