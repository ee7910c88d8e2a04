package research

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pouria-abbasi/mediascout/internal/metrics"
	"github.com/pouria-abbasi/mediascout/models"
)

// Registry tracks in-flight research jobs and their cancellation requests.
// Cancellation is cooperative: RequestCancel only raises a flag, and the
// orchestrator decides at its checkpoint whether the job actually ends as
// cancelled. Terminal jobs are immutable.
type Registry struct {
	mu     sync.Mutex
	jobs   map[string]*jobEntry
	logger *log.Logger
}

type jobEntry struct {
	job          models.Job
	cancelWanted bool
}

// NewRegistry creates an empty job registry.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(log.Writer(), "[JOBS] ", log.LstdFlags)
	}
	return &Registry{jobs: make(map[string]*jobEntry), logger: logger}
}

// Create registers a new job in the processing state and returns it.
func (r *Registry) Create(topic string, mediaTypes []models.MediaType) models.Job {
	job := models.Job{
		ID:         uuid.NewString(),
		Topic:      topic,
		MediaTypes: mediaTypes,
		Status:     models.JobProcessing,
		Counts:     map[models.MediaType]int{},
		CreatedAt:  time.Now().UTC(),
	}
	r.mu.Lock()
	r.jobs[job.ID] = &jobEntry{job: job}
	r.mu.Unlock()
	return job
}

// Get returns a copy of the job, or false if it is unknown.
func (r *Registry) Get(id string) (models.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.jobs[id]
	if !ok {
		return models.Job{}, false
	}
	return cloneJob(entry.job), true
}

// RequestCancel flags the job for cancellation. It is idempotent and a no-op
// on unknown or already-terminal jobs, so callers can always issue it safely.
func (r *Registry) RequestCancel(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.jobs[id]
	if !ok || entry.job.Status.Terminal() {
		return
	}
	if !entry.cancelWanted {
		entry.cancelWanted = true
		r.logger.Printf("cancellation requested for job %s", id)
	}
}

// Cancelled reports whether cancellation has been requested for the job.
func (r *Registry) Cancelled(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.jobs[id]
	return ok && entry.cancelWanted
}

// Finalize moves a processing job into a terminal state. Calls against
// unknown or already-terminal jobs are ignored, which makes the late loser
// of a finalize race harmless.
func (r *Registry) Finalize(id string, status models.JobStatus, counts map[models.MediaType]int, jobErr string) {
	if !status.Terminal() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.jobs[id]
	if !ok || entry.job.Status.Terminal() {
		return
	}
	entry.job.Status = status
	entry.job.ErrorMessage = jobErr
	now := time.Now().UTC()
	entry.job.CompletedAt = &now
	if counts != nil {
		entry.job.Counts = counts
	}
	metrics.JobsFinalizedTotal.WithLabelValues(string(status)).Inc()
	r.logger.Printf("job %s finalized as %s", id, status)
}

// Remove evicts a job from the registry. Persistent state survives in the
// store; this only frees the in-memory entry.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.jobs, id)
	r.mu.Unlock()
}

// EvictTerminalOlderThan drops jobs that finished before the cutoff and
// returns how many were removed.
func (r *Registry) EvictTerminalOlderThan(age time.Duration) int {
	cutoff := time.Now().UTC().Add(-age)
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, entry := range r.jobs {
		if entry.job.CompletedAt != nil && entry.job.CompletedAt.Before(cutoff) {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}

func cloneJob(job models.Job) models.Job {
	out := job
	out.Counts = make(map[models.MediaType]int, len(job.Counts))
	for k, v := range job.Counts {
		out.Counts[k] = v
	}
	out.MediaTypes = append([]models.MediaType(nil), job.MediaTypes...)
	return out
}
