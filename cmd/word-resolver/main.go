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

	"github.com/glossa/backend/internal/config"
	"github.com/glossa/backend/internal/engine"
	"github.com/glossa/backend/internal/events"
	"github.com/glossa/backend/internal/lexicon"
	"github.com/glossa/backend/internal/monitoring"
	"github.com/glossa/backend/internal/outbound"
	"github.com/glossa/backend/internal/resolver"
	"github.com/glossa/backend/internal/session"
	"github.com/glossa/backend/internal/stream"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

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

	var lex lexicon.Store
	if cfg.Lexicon.PostgresURL != "" {
		pg, err := lexicon.NewPostgresStore(cfg.Lexicon.PostgresURL)
		if err != nil {
			log.Fatalf("Failed to connect to lexicon store: %v", err)
		}
		lex = pg
	} else {
		log.Println("⚠️ POSTGRES_URL not set, using in-memory lexicon")
		lex = lexicon.NewMemoryStore()
	}

	dispatcher, err := outbound.New(cfg.KB.ProjectID, cfg.Outbound.TasksLocation,
		cfg.Outbound.TasksQueue, cfg.Outbound.PushWorkerURL)
	if err != nil {
		log.Fatalf("Failed to create outbound dispatcher: %v", err)
	}
	defer dispatcher.Shutdown()

	res := resolver.New(lex, cfg.Lexicon)
	sessions := session.NewRedisStore(rdb, cfg.Commit.SessionTTL())

	emit := func(ctx context.Context, sessionID, rawWord, trigger string) {
		resolved := res.Resolve(ctx, cfg.Lexicon.DefaultUserID, sessionID, rawWord, trigger)
		dispatcher.Dispatch(resolved)
	}
	eng := engine.New(sessions, cfg.Commit, emit)

	letters := stream.NewBus(rdb, cfg.Streams.LettersStream, cfg.Streams.Shards,
		cfg.Streams.MaxLen, cfg.Streams.ConsumerRegistry, cfg.Streams.SubscriptionTTL)

	handler := func(ctx context.Context, rec stream.Record) error {
		var event events.LetterEvent
		if err := json.Unmarshal(rec.Data, &event); err != nil {
			log.Printf("⚠️ dropping undecodable letter event at %s: %v", rec.ID, err)
			return nil
		}
		switch event.Type {
		case events.TypeSkip:
			return eng.ProcessSkip(ctx, event.SessionID, event.SkipReason)
		case events.TypePrediction:
			return eng.ProcessPrediction(ctx, event.SessionID, event.Char, event.Confidence, event.TimestampMS)
		default:
			log.Printf("⚠️ unknown letter event type %q, dropping", event.Type)
			return nil
		}
	}
	const consumerName = "word-resolver"
	consumer := stream.NewConsumer(consumerName, cfg.Streams.LettersStream,
		letters, handler,
		cfg.Streams.BlockTimeout, cfg.Streams.SubscriptionTTL, cfg.Streams.MaxRetryDelay)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	created, err := letters.RegisterConsumer(ctx, consumerName)
	if err != nil {
		log.Fatalf("Failed to register stream consumer: %v", err)
	}
	if created {
		log.Printf("✅ Registered stream consumer %s", consumerName)
	} else {
		log.Printf("✅ Reusing stream consumer registration for %s", consumerName)
	}

	// Pause sweep catches sessions that went silent.
	go eng.Run(ctx)

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "service": "word-resolver"})
	}).Methods("GET")
	router.Handle("/metrics", monitoring.Handler())

	server := &http.Server{Addr: ":" + cfg.Server.Port, Handler: router}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Health server failed: %v", err)
		}
	}()

	log.Printf("🚀 Word resolver starting (%d shards)", cfg.Streams.Shards)
	if err := consumer.Run(ctx); err != nil {
		log.Printf("Consumer stopped: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := letters.DeregisterConsumer(shutdownCtx, consumerName); err != nil {
		log.Printf("⚠️ Deregister stream consumer: %v", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("Word resolver stopped")
}
