package jobs

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/studyowl/studyowl/internal/core"
)

// Status is the lifecycle state of a processing job. Transitions only move
// forward: pending -> processing -> completed | failed.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var statusRank = map[Status]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusCompleted:  2,
	StatusFailed:     2,
}

// Job tracks one asynchronous ingestion request. Completed and failed jobs
// are immutable.
type Job struct {
	ID                string     `json:"id"`
	FileName          string     `json:"file_name"`
	Status            Status     `json:"status"`
	Message           string     `json:"message"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	ChunksCreated     int        `json:"chunks_created,omitempty"`
	ErrorDetails      string     `json:"error_details,omitempty"`
	EstimatedDuration string     `json:"estimated_processing_time,omitempty"`
}

// UpdateOption sets optional fields alongside a status transition.
type UpdateOption func(*Job)

func WithChunksCreated(n int) UpdateOption {
	return func(j *Job) { j.ChunksCreated = n }
}

func WithErrorDetails(detail string) UpdateOption {
	return func(j *Job) { j.ErrorDetails = detail }
}

// Tracker is an in-memory, mutex-guarded job store. Jobs are process-local:
// they are lost on restart and invisible to other server processes.
type Tracker struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

// NewTracker creates a tracker that evicts terminal jobs older than ttl once
// the sweeper is running. A ttl of zero disables eviction.
func NewTracker(ttl time.Duration, logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		jobs:   make(map[string]*Job),
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Create registers a new pending job for fileName and returns a copy of it.
// The estimated duration is advisory only, derived from file type and size.
func (t *Tracker) Create(fileName string, fileSize int64) Job {
	job := &Job{
		ID:                uuid.NewString(),
		FileName:          fileName,
		Status:            StatusPending,
		Message:           "Job created, waiting to start",
		CreatedAt:         t.now(),
		EstimatedDuration: estimateDuration(fileName, fileSize),
	}

	t.mu.Lock()
	t.jobs[job.ID] = job
	t.mu.Unlock()

	t.logger.Info("created processing job",
		zap.String("job_id", job.ID), zap.String("file", fileName))
	return *job
}

// Get returns a copy of the job, or core.ErrNotFound.
func (t *Tracker) Get(id string) (Job, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	job, ok := t.jobs[id]
	if !ok {
		return Job{}, core.ErrNotFound
	}
	return *job, nil
}

// Update moves a job forward. Transitions that would move a job backward or
// out of a terminal state are rejected. Reaching completed or failed stamps
// the completion time.
func (t *Tracker) Update(id string, status Status, message string, opts ...UpdateOption) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	job, ok := t.jobs[id]
	if !ok {
		return core.ErrNotFound
	}
	if job.Status.Terminal() {
		return &InvalidTransitionError{From: job.Status, To: status}
	}
	if statusRank[status] < statusRank[job.Status] {
		return &InvalidTransitionError{From: job.Status, To: status}
	}

	job.Status = status
	job.Message = message
	for _, opt := range opts {
		opt(job)
	}
	if status.Terminal() {
		done := t.now()
		job.CompletedAt = &done
	}

	t.logger.Info("job updated",
		zap.String("job_id", id), zap.String("status", string(status)), zap.String("message", message))
	return nil
}

// StartSweeper periodically drops terminal jobs older than the tracker TTL.
// It returns immediately; the sweep loop exits when ctx is cancelled.
func (t *Tracker) StartSweeper(ctx context.Context, interval time.Duration) {
	if t.ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := t.evictTerminal(); n > 0 {
					t.logger.Info("evicted terminal jobs", zap.Int("count", n))
				}
			}
		}
	}()
}

func (t *Tracker) evictTerminal() int {
	cutoff := t.now().Add(-t.ttl)

	t.mu.Lock()
	defer t.mu.Unlock()

	var evicted int
	for id, job := range t.jobs {
		if job.Status.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(t.jobs, id)
			evicted++
		}
	}
	return evicted
}

// InvalidTransitionError reports a rejected job state change.
type InvalidTransitionError struct {
	From, To Status
}

func (e *InvalidTransitionError) Error() string {
	return "invalid job transition: " + string(e.From) + " -> " + string(e.To)
}

// estimateDuration guesses processing time from file type and size. It is a
// hint for clients deciding how often to poll, not a contract.
func estimateDuration(fileName string, fileSize int64) string {
	const megabyte = 1 << 20

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
	switch ext {
	case "pdf":
		if fileSize > 5*megabyte {
			return "2-5 minutes"
		}
		return "1-2 minutes"
	case "docx", "doc":
		return "1-2 minutes"
	default:
		if fileSize > 1*megabyte {
			return "1-2 minutes"
		}
		return "under a minute"
	}
}
