package kb

import (
	"context"
	"sync"
	"time"
)

// MemoryJobs is an in-memory JobStore for tests.
type MemoryJobs struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func NewMemoryJobs() *MemoryJobs {
	return &MemoryJobs{jobs: make(map[string]*Job)}
}

func (m *MemoryJobs) Insert(_ context.Context, job *Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *job
	m.jobs[job.JobID] = &copied
	return nil
}

func (m *MemoryJobs) Get(_ context.Context, jobID string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

func (m *MemoryJobs) ClaimNotification(_ context.Context, jobID, notificationID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return false, ErrJobNotFound
	}
	if job.NotificationID == notificationID {
		return false, nil
	}
	job.NotificationID = notificationID
	job.LastPolledAt = time.Now().UTC()
	return true, nil
}

func (m *MemoryJobs) Update(_ context.Context, jobID, status, rawTextKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	job.Status = status
	if rawTextKey != "" {
		job.RawTextKey = rawTextKey
	}
	job.LastPolledAt = time.Now().UTC()
	return nil
}
