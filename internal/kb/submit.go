package kb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"github.com/glossa/backend/internal/events"
)

// OCRClient starts asynchronous document analysis and returns the
// provider-side job id.
type OCRClient interface {
	StartAnalysis(ctx context.Context, bucket, key string) (string, error)
}

// Submitter turns upload notifications into jobs. PDFs go through OCR;
// plain-text formats are marked ready for ingestion immediately.
type Submitter struct {
	jobs   JobStore
	ocr    OCRClient
	logger *log.Logger
	now    func() time.Time
}

func NewSubmitter(jobs JobStore, ocr OCRClient) *Submitter {
	return &Submitter{
		jobs:   jobs,
		ocr:    ocr,
		logger: log.New(log.Writer(), "[KB-SUBMIT] ", log.LstdFlags),
		now:    time.Now,
	}
}

// requestID derives a stable id from the object's identity, so a
// re-delivered upload notification maps to the same job row.
func requestID(bucket, key, etag string) string {
	sum := sha256.Sum256([]byte(bucket + "|" + key + "|" + etag))
	return hex.EncodeToString(sum[:])[:16]
}

// RequestIDFor exposes the job id an upload notification maps to.
func RequestIDFor(n events.UploadNotification) string {
	return requestID(n.Bucket, n.Key, n.Etag)
}

// userFromKey extracts the owner from an upload key of the form
// <user_id>/<filename>.
func userFromKey(key string) string {
	if i := strings.IndexByte(key, '/'); i > 0 {
		return key[:i]
	}
	return ""
}

// HandleUpload processes one upload notification.
func (s *Submitter) HandleUpload(ctx context.Context, n events.UploadNotification) error {
	userID := n.UserID
	if userID == "" {
		userID = userFromKey(n.Key)
	}
	if userID == "" {
		return fmt.Errorf("upload key %q has no user prefix", n.Key)
	}

	reqID := requestID(n.Bucket, n.Key, n.Etag)
	now := s.now().UTC()
	job := &Job{
		JobID:     reqID,
		RequestID: reqID,
		UserID:    userID,
		Bucket:    n.Bucket,
		ObjectKey: n.Key,
		Etag:      n.Etag,
		FileSize:  n.Size,
		CreatedAt: now,
		ExpiresAt: now.Add(jobTTL),
	}

	switch strings.ToLower(path.Ext(n.Key)) {
	case ".pdf":
		ocrJobID, err := s.ocr.StartAnalysis(ctx, n.Bucket, n.Key)
		if err != nil {
			s.logger.Printf("❌ OCR start failed for gs://%s/%s: %v", n.Bucket, n.Key, err)
			job.Status = StatusFailed
			if insertErr := s.jobs.Insert(ctx, job); insertErr != nil {
				return fmt.Errorf("record failed job: %w", insertErr)
			}
			return nil
		}
		// OCR job id becomes the job key so the completion
		// notification can find the row.
		job.JobID = ocrJobID
		job.Status = StatusRunning
		if err := s.jobs.Insert(ctx, job); err != nil {
			return fmt.Errorf("record running job: %w", err)
		}
		s.logger.Printf("📤 OCR started for gs://%s/%s (job=%s)", n.Bucket, n.Key, ocrJobID)

	case ".txt", ".csv", ".md":
		// No OCR needed; the text is already readable.
		job.Status = StatusSucceeded
		if err := s.jobs.Insert(ctx, job); err != nil {
			return fmt.Errorf("record job: %w", err)
		}
		s.logger.Printf("✅ text upload gs://%s/%s ready for ingestion (job=%s)", n.Bucket, n.Key, job.JobID)

	default:
		s.logger.Printf("⚠️ unsupported file type %q, skipping gs://%s/%s", path.Ext(n.Key), n.Bucket, n.Key)
	}
	return nil
}
