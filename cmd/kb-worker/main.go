package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/glossa/backend/internal/config"
	"github.com/glossa/backend/internal/events"
	"github.com/glossa/backend/internal/kb"
	"github.com/glossa/backend/internal/lexicon"
	"github.com/glossa/backend/internal/monitoring"
)

// Subscription ids follow the topic names with a "-sub" suffix.
const subSuffix = "-sub"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.KB.ProjectID == "" {
		log.Fatal("GCP_PROJECT must be set for the KB worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jobs, err := kb.NewSpannerJobs(ctx, cfg.KB.ProjectID, cfg.KB.SpannerInstance, cfg.KB.SpannerDatabase)
	if err != nil {
		log.Fatalf("Failed to connect to Spanner: %v", err)
	}
	defer jobs.Close()

	objects, err := kb.NewGCSStore(ctx)
	if err != nil {
		log.Fatalf("Failed to create storage client: %v", err)
	}
	defer objects.Close()

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

	var generator kb.AliasGenerator
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		generator, err = kb.NewOpenAIGenerator(apiKey, cfg.KB.LLMModel)
		if err != nil {
			log.Fatalf("Failed to create alias generator: %v", err)
		}
		log.Printf("✅ Alias generation via %s", cfg.KB.LLMModel)
	} else {
		log.Println("⚠️ OPENAI_API_KEY not set, using placeholder alias generation")
		generator = kb.PlaceholderGenerator{}
	}

	var ocr kb.OCRClient
	if cfg.KB.OCRServiceURL != "" {
		ocr = kb.NewHTTPOCRClient(cfg.KB.OCRServiceURL)
	} else {
		log.Println("⚠️ OCR service URL not set, PDF uploads will fail")
		ocr = failingOCR{}
	}

	termsReady, err := kb.NewNotifier(cfg.KB.ProjectID, cfg.KB.TermsReadyTopic)
	if err != nil {
		log.Fatalf("Failed to create terms-ready notifier: %v", err)
	}
	defer termsReady.Close()

	uploads, err := kb.NewNotifier(cfg.KB.ProjectID, cfg.KB.UploadsTopic)
	if err != nil {
		log.Fatalf("Failed to create uploads notifier: %v", err)
	}
	defer uploads.Close()

	ocrDone, err := kb.NewNotifier(cfg.KB.ProjectID, cfg.KB.OCRDoneTopic)
	if err != nil {
		log.Fatalf("Failed to create OCR-done notifier: %v", err)
	}
	defer ocrDone.Close()

	submitter := kb.NewSubmitter(jobs, ocr)
	ingestor := kb.NewIngestor(jobs, objects, termsReady, cfg.KB.RawBucket)
	aliasWorker := kb.NewAliasWorker(jobs, objects, generator, lex,
		cfg.KB.RawBucket, cfg.KB.AliasesBucket, cfg.KB.LLMBatchSize, cfg.KB.MaxAliasesPerKey)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return uploads.Subscribe(ctx, cfg.KB.UploadsTopic+subSuffix, func(ctx context.Context, data []byte) error {
			var n events.UploadNotification
			if err := json.Unmarshal(data, &n); err != nil {
				log.Printf("⚠️ dropping undecodable upload notification: %v", err)
				return nil
			}
			if err := submitter.HandleUpload(ctx, n); err != nil {
				return err
			}
			// txt/csv/md uploads skip OCR; ingest them right away.
			reqID := kb.RequestIDFor(n)
			if job, err := jobs.Get(ctx, reqID); err == nil && job.Status == kb.StatusSucceeded {
				return ingestor.IngestText(ctx, job)
			}
			return nil
		})
	})

	g.Go(func() error {
		return ocrDone.Subscribe(ctx, cfg.KB.OCRDoneTopic+subSuffix, func(ctx context.Context, data []byte) error {
			var n events.OCRDoneNotification
			if err := json.Unmarshal(data, &n); err != nil {
				log.Printf("⚠️ dropping undecodable OCR notification: %v", err)
				return nil
			}
			return ingestor.HandleOCRDone(ctx, n)
		})
	})

	g.Go(func() error {
		return termsReady.Subscribe(ctx, cfg.KB.TermsReadyTopic+subSuffix, func(ctx context.Context, data []byte) error {
			var n events.TermsReadyNotification
			if err := json.Unmarshal(data, &n); err != nil {
				log.Printf("⚠️ dropping undecodable terms notification: %v", err)
				return nil
			}
			return aliasWorker.HandleTermsReady(ctx, n)
		})
	})

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy", "service": "kb-worker"})
	}).Methods("GET")
	router.Handle("/metrics", monitoring.Handler())

	server := &http.Server{Addr: ":" + cfg.Server.Port, Handler: router}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Health server failed: %v", err)
		}
	}()

	log.Printf("🚀 KB worker starting (project=%s)", cfg.KB.ProjectID)
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Printf("Subscriber stopped: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	log.Println("KB worker stopped")
}

type failingOCR struct{}

func (failingOCR) StartAnalysis(context.Context, string, string) (string, error) {
	return "", errors.New("OCR service not configured")
}
