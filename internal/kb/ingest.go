package kb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/glossa/backend/internal/events"
)

// Publisher is the terms-ready notification sink; satisfied by *Notifier.
type Publisher interface {
	Publish(ctx context.Context, userID string, payload interface{}) error
}

// termsArtifact is the <user>/<base>_terms.json object.
type termsArtifact struct {
	JobID        string   `json:"job_id"`
	UserID       string   `json:"user_id"`
	OriginalFile string   `json:"original_file"`
	TermCount    int      `json:"term_count"`
	Terms        []string `json:"terms"`
}

// ingestMetadata is the <user>/<base>_metadata.json object.
type ingestMetadata struct {
	JobID            string `json:"job_id"`
	UserID           string `json:"user_id"`
	OriginalFile     string `json:"original_file"`
	ProcessedAt      string `json:"processed_at"`
	LineCount        int    `json:"line_count"`
	TableCount       int    `json:"table_count"`
	BlockCount       int    `json:"block_count"`
	RawWordCount     int    `json:"raw_word_count"`
	CleanedTermCount int    `json:"cleaned_term_count"`
}

// Ingestor turns OCR output (or directly uploaded text) into cleaned
// term sets in the raw bucket and announces them for alias generation.
type Ingestor struct {
	jobs      JobStore
	objects   ObjectStore
	notifier  Publisher
	rawBucket string
	logger    *log.Logger
	now       func() time.Time
}

func NewIngestor(jobs JobStore, objects ObjectStore, notifier Publisher, rawBucket string) *Ingestor {
	return &Ingestor{
		jobs:      jobs,
		objects:   objects,
		notifier:  notifier,
		rawBucket: rawBucket,
		logger:    log.New(log.Writer(), "[KB-INGEST] ", log.LstdFlags),
		now:       time.Now,
	}
}

// HandleOCRDone processes one OCR completion notification. Redelivered
// notifications and already-ingested jobs are skipped; a non-SUCCEEDED
// OCR result marks the job FAILED.
func (in *Ingestor) HandleOCRDone(ctx context.Context, n events.OCRDoneNotification) error {
	job, err := in.jobs.Get(ctx, n.JobID)
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			in.logger.Printf("⚠️ job %s not found, skipping notification", n.JobID)
			return nil
		}
		return fmt.Errorf("load job %s: %w", n.JobID, err)
	}

	claimed, err := in.jobs.ClaimNotification(ctx, n.JobID, n.NotificationID)
	if err != nil {
		return fmt.Errorf("claim notification: %w", err)
	}
	if !claimed {
		in.logger.Printf("notification %s already processed for job %s, skipping", n.NotificationID, n.JobID)
		return nil
	}
	if job.Status == StatusIngested {
		in.logger.Printf("job %s already ingested, skipping", n.JobID)
		return nil
	}

	if n.Status != StatusSucceeded {
		in.logger.Printf("⚠️ OCR job %s finished with status %s", n.JobID, n.Status)
		return in.jobs.Update(ctx, n.JobID, StatusFailed, "")
	}

	text := strings.Join(n.Lines, "\n")
	return in.ingest(ctx, job, text, len(n.Lines), n.BlockCount, n.TableCount)
}

// IngestText ingests a job whose source object is already plain text
// (txt/csv/md uploads that skipped OCR).
func (in *Ingestor) IngestText(ctx context.Context, job *Job) error {
	data, err := in.objects.Read(ctx, job.Bucket, job.ObjectKey)
	if err != nil {
		return fmt.Errorf("read upload gs://%s/%s: %w", job.Bucket, job.ObjectKey, err)
	}
	text := string(data)
	lines := strings.Count(text, "\n") + 1
	return in.ingest(ctx, job, text, lines, 0, 0)
}

// ingest writes the raw text, the sorted unique term set and a metadata
// record to the raw bucket, marks the job INGESTED and publishes a
// terms-ready notification.
func (in *Ingestor) ingest(ctx context.Context, job *Job, text string, lineCount, blockCount, tableCount int) error {
	terms := Tokenize(text)
	in.logger.Printf("job %s: %d unique terms from %d raw words", job.JobID, len(terms), len(strings.Fields(text)))

	base := strings.TrimSuffix(path.Base(job.ObjectKey), path.Ext(job.ObjectKey))
	textKey := job.UserID + "/" + base + ".txt"
	termsKey := job.UserID + "/" + base + "_terms.json"
	metadataKey := job.UserID + "/" + base + "_metadata.json"

	if err := in.objects.Write(ctx, in.rawBucket, textKey, []byte(text), "text/plain"); err != nil {
		return fmt.Errorf("write raw text: %w", err)
	}

	termsData, err := json.Marshal(termsArtifact{
		JobID:        job.JobID,
		UserID:       job.UserID,
		OriginalFile: job.ObjectKey,
		TermCount:    len(terms),
		Terms:        terms,
	})
	if err != nil {
		return fmt.Errorf("marshal terms: %w", err)
	}
	if err := in.objects.Write(ctx, in.rawBucket, termsKey, termsData, "application/json"); err != nil {
		return fmt.Errorf("write terms: %w", err)
	}

	metadata, err := json.Marshal(ingestMetadata{
		JobID:            job.JobID,
		UserID:           job.UserID,
		OriginalFile:     job.ObjectKey,
		ProcessedAt:      in.now().UTC().Format(time.RFC3339),
		LineCount:        lineCount,
		TableCount:       tableCount,
		BlockCount:       blockCount,
		RawWordCount:     len(strings.Fields(text)),
		CleanedTermCount: len(terms),
	})
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := in.objects.Write(ctx, in.rawBucket, metadataKey, metadata, "application/json"); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	if err := in.jobs.Update(ctx, job.JobID, StatusIngested, textKey); err != nil {
		return fmt.Errorf("mark ingested: %w", err)
	}

	notification := events.TermsReadyNotification{
		JobID:     job.JobID,
		UserID:    job.UserID,
		TermsKey:  termsKey,
		TermCount: len(terms),
	}
	if err := in.notifier.Publish(ctx, job.UserID, notification); err != nil {
		// Alias generation can be re-triggered; the ingest itself
		// succeeded.
		in.logger.Printf("⚠️ terms-ready publish failed for job %s: %v", job.JobID, err)
	}

	in.logger.Printf("✅ ingested job %s → %s (%d terms)", job.JobID, termsKey, len(terms))
	return nil
}
