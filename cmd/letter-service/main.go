package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/glossa/backend/internal/classifier"
	"github.com/glossa/backend/internal/config"
	"github.com/glossa/backend/internal/monitoring"
	"github.com/glossa/backend/internal/stream"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	model, err := classifier.LoadModel(cfg.Model.WeightsPath, cfg.Model.LabelsPath)
	if err != nil {
		log.Fatalf("Failed to load classifier model: %v", err)
	}
	log.Printf("✅ Loaded classifier model from %s", cfg.Model.WeightsPath)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatalf("Failed to connect to Redis at %s: %v", cfg.Redis.Addr, err)
	}
	cancel()
	log.Printf("✅ Connected to Redis at %s", cfg.Redis.Addr)

	landmarks := stream.NewBus(rdb, cfg.Streams.LandmarksStream, cfg.Streams.Shards,
		cfg.Streams.MaxLen, cfg.Streams.ConsumerRegistry, cfg.Streams.SubscriptionTTL)
	letters := stream.NewBus(rdb, cfg.Streams.LettersStream, cfg.Streams.Shards,
		cfg.Streams.MaxLen, cfg.Streams.ConsumerRegistry, cfg.Streams.SubscriptionTTL)

	const consumerName = "letter-service"
	service := classifier.NewService(model, letters)
	consumer := stream.NewConsumer(consumerName, cfg.Streams.LandmarksStream,
		landmarks, service.HandleFrame,
		cfg.Streams.BlockTimeout, cfg.Streams.SubscriptionTTL, cfg.Streams.MaxRetryDelay)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	created, err := landmarks.RegisterConsumer(ctx, consumerName)
	if err != nil {
		log.Fatalf("Failed to register stream consumer: %v", err)
	}
	if created {
		log.Printf("✅ Registered stream consumer %s", consumerName)
	} else {
		log.Printf("✅ Reusing stream consumer registration for %s", consumerName)
	}

	// Health and metrics endpoint for the orchestrator.
	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "service": "letter-service"})
	}).Methods("GET")
	router.Handle("/metrics", monitoring.Handler())

	server := &http.Server{Addr: ":" + cfg.Server.Port, Handler: router}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Health server failed: %v", err)
		}
	}()

	log.Printf("🚀 Letter service starting (%d shards)", cfg.Streams.Shards)
	if err := consumer.Run(ctx); err != nil {
		log.Printf("Consumer stopped: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := landmarks.DeregisterConsumer(shutdownCtx, consumerName); err != nil {
		log.Printf("⚠️ Deregister stream consumer: %v", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Letter service stopped")
}
