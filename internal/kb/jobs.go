// Package kb builds the per-user alias knowledge base: documents come
// in through the uploads bucket, get OCR'd and tokenized into terms,
// and an LLM proposes fingerspelling aliases that are validated
// against the confusion matrix before landing in the lexicon.
package kb

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/spanner"
	"google.golang.org/grpc/codes"
)

// Job statuses.
const (
	StatusRunning   = "RUNNING"
	StatusSucceeded = "SUCCEEDED"
	StatusIngested  = "INGESTED"
	StatusCompleted = "COMPLETED"
	StatusFailed    = "FAILED"
)

// jobTTL bounds how long job rows are kept.
const jobTTL = 30 * 24 * time.Hour

var ErrJobNotFound = errors.New("kb: job not found")

// Job is one document-processing job.
type Job struct {
	JobID          string
	RequestID      string
	UserID         string
	Bucket         string
	ObjectKey      string
	Etag           string
	FileSize       int64
	Status         string
	NotificationID string
	RawTextKey     string
	CreatedAt      time.Time
	LastPolledAt   time.Time
	ExpiresAt      time.Time
}

// JobStore persists jobs.
type JobStore interface {
	Insert(ctx context.Context, job *Job) error
	Get(ctx context.Context, jobID string) (*Job, error)
	// ClaimNotification atomically records a notification id on a
	// job. It returns false when the same notification was already
	// recorded, which is the idempotency guard for redelivered
	// notifications.
	ClaimNotification(ctx context.Context, jobID, notificationID string) (bool, error)
	// Update sets status and optionally the raw-text key, refreshing
	// LastPolledAt.
	Update(ctx context.Context, jobID, status, rawTextKey string) error
}

var jobColumns = []string{
	"JobID", "RequestID", "UserID", "Bucket", "ObjectKey", "Etag",
	"FileSize", "Status", "NotificationID", "RawTextKey",
	"CreatedAt", "LastPolledAt", "ExpiresAt",
}

// SpannerJobs implements JobStore on Cloud Spanner (table KbJobs).
type SpannerJobs struct {
	client *spanner.Client
	logger *log.Logger
}

func NewSpannerJobs(ctx context.Context, project, instance, database string) (*SpannerJobs, error) {
	dbPath := fmt.Sprintf("projects/%s/instances/%s/databases/%s", project, instance, database)
	client, err := spanner.NewClient(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("spanner.NewClient: %w", err)
	}
	return &SpannerJobs{
		client: client,
		logger: log.New(log.Writer(), "[KB-JOBS] ", log.LstdFlags),
	}, nil
}

func (s *SpannerJobs) Close() { s.client.Close() }

func (s *SpannerJobs) Insert(ctx context.Context, job *Job) error {
	m := spanner.InsertOrUpdate("KbJobs", jobColumns, []interface{}{
		job.JobID, job.RequestID, job.UserID, job.Bucket, job.ObjectKey, job.Etag,
		job.FileSize, job.Status, job.NotificationID, job.RawTextKey,
		job.CreatedAt, job.LastPolledAt, job.ExpiresAt,
	})
	if _, err := s.client.Apply(ctx, []*spanner.Mutation{m}); err != nil {
		return fmt.Errorf("insert job %s: %w", job.JobID, err)
	}
	return nil
}

func (s *SpannerJobs) Get(ctx context.Context, jobID string) (*Job, error) {
	row, err := s.client.Single().ReadRow(ctx, "KbJobs", spanner.Key{jobID}, jobColumns)
	if err != nil {
		if spanner.ErrCode(err) == codes.NotFound {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("read job %s: %w", jobID, err)
	}
	return scanJob(row)
}

func scanJob(row *spanner.Row) (*Job, error) {
	var j Job
	if err := row.Columns(
		&j.JobID, &j.RequestID, &j.UserID, &j.Bucket, &j.ObjectKey, &j.Etag,
		&j.FileSize, &j.Status, &j.NotificationID, &j.RawTextKey,
		&j.CreatedAt, &j.LastPolledAt, &j.ExpiresAt,
	); err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	return &j, nil
}

func (s *SpannerJobs) ClaimNotification(ctx context.Context, jobID, notificationID string) (bool, error) {
	claimed := false
	_, err := s.client.ReadWriteTransaction(ctx, func(ctx context.Context, txn *spanner.ReadWriteTransaction) error {
		row, err := txn.ReadRow(ctx, "KbJobs", spanner.Key{jobID}, []string{"NotificationID"})
		if err != nil {
			if spanner.ErrCode(err) == codes.NotFound {
				return ErrJobNotFound
			}
			return err
		}
		var existing string
		if err := row.Columns(&existing); err != nil {
			return err
		}
		if existing == notificationID {
			claimed = false
			return nil
		}
		claimed = true
		return txn.BufferWrite([]*spanner.Mutation{
			spanner.Update("KbJobs",
				[]string{"JobID", "NotificationID", "LastPolledAt"},
				[]interface{}{jobID, notificationID, time.Now().UTC()},
			),
		})
	})
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			return false, ErrJobNotFound
		}
		return false, fmt.Errorf("claim notification for %s: %w", jobID, err)
	}
	return claimed, nil
}

func (s *SpannerJobs) Update(ctx context.Context, jobID, status, rawTextKey string) error {
	cols := []string{"JobID", "Status", "LastPolledAt"}
	vals := []interface{}{jobID, status, time.Now().UTC()}
	if rawTextKey != "" {
		cols = append(cols, "RawTextKey")
		vals = append(vals, rawTextKey)
	}
	if _, err := s.client.Apply(ctx, []*spanner.Mutation{spanner.Update("KbJobs", cols, vals)}); err != nil {
		return fmt.Errorf("update job %s: %w", jobID, err)
	}
	s.logger.Printf("job %s → %s", jobID, status)
	return nil
}
