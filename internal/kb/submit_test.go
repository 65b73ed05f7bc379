package kb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glossa/backend/internal/events"
)

type fakeOCR struct {
	jobID string
	err   error
	calls int
}

func (f *fakeOCR) StartAnalysis(context.Context, string, string) (string, error) {
	f.calls++
	return f.jobID, f.err
}

func TestHandleUploadPDFStartsOCR(t *testing.T) {
	jobs := NewMemoryJobs()
	ocr := &fakeOCR{jobID: "ocr-123"}
	sub := NewSubmitter(jobs, ocr)

	err := sub.HandleUpload(context.Background(), events.UploadNotification{
		Bucket: "uploads", Key: "alice/terms.pdf", Etag: "e1", Size: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ocr.calls)

	job, err := jobs.Get(context.Background(), "ocr-123")
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, job.Status)
	assert.Equal(t, "alice", job.UserID)
	assert.Equal(t, requestID("uploads", "alice/terms.pdf", "e1"), job.RequestID)
	assert.True(t, job.ExpiresAt.After(job.CreatedAt))
}

func TestHandleUploadTextSkipsOCR(t *testing.T) {
	jobs := NewMemoryJobs()
	ocr := &fakeOCR{}
	sub := NewSubmitter(jobs, ocr)

	err := sub.HandleUpload(context.Background(), events.UploadNotification{
		Bucket: "uploads", Key: "bob/glossary.txt", Etag: "e2",
	})
	require.NoError(t, err)
	assert.Zero(t, ocr.calls)

	job, err := jobs.Get(context.Background(), requestID("uploads", "bob/glossary.txt", "e2"))
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, job.Status)
	assert.Equal(t, "bob", job.UserID)
}

func TestHandleUploadOCRFailureRecordsFailedJob(t *testing.T) {
	jobs := NewMemoryJobs()
	sub := NewSubmitter(jobs, &fakeOCR{err: errors.New("throttled")})

	err := sub.HandleUpload(context.Background(), events.UploadNotification{
		Bucket: "uploads", Key: "alice/doc.pdf", Etag: "e3",
	})
	require.NoError(t, err)

	job, err := jobs.Get(context.Background(), requestID("uploads", "alice/doc.pdf", "e3"))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, job.Status)
}

func TestHandleUploadUnsupportedTypeIgnored(t *testing.T) {
	jobs := NewMemoryJobs()
	ocr := &fakeOCR{}
	sub := NewSubmitter(jobs, ocr)

	err := sub.HandleUpload(context.Background(), events.UploadNotification{
		Bucket: "uploads", Key: "alice/photo.png", Etag: "e4",
	})
	require.NoError(t, err)
	assert.Zero(t, ocr.calls)
	_, err = jobs.Get(context.Background(), requestID("uploads", "alice/photo.png", "e4"))
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestHandleUploadRequiresUserPrefix(t *testing.T) {
	sub := NewSubmitter(NewMemoryJobs(), &fakeOCR{})
	err := sub.HandleUpload(context.Background(), events.UploadNotification{
		Bucket: "uploads", Key: "orphan.pdf",
	})
	assert.Error(t, err)
}

func TestRequestIDStable(t *testing.T) {
	a := requestID("b", "k", "e")
	b := requestID("b", "k", "e")
	assert.Equal(t, a, b)
	assert.Len(t, a, 16)
	assert.NotEqual(t, a, requestID("b", "k", "e2"))
}
