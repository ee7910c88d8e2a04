package research

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pouria-abbasi/mediascout/models"
	"github.com/pouria-abbasi/mediascout/sources"
)

type memorySink struct {
	mu      sync.Mutex
	jobs    map[string]models.Job
	records map[string][]models.CanonicalRecord

	createErr error
	insertErr error
}

func newMemorySink() *memorySink {
	return &memorySink{
		jobs:    make(map[string]models.Job),
		records: make(map[string][]models.CanonicalRecord),
	}
}

func (s *memorySink) CreateJob(_ context.Context, job models.Job) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return nil
}

func (s *memorySink) InsertMediaRecord(_ context.Context, jobID string, rec models.CanonicalRecord) (bool, error) {
	if s.insertErr != nil {
		return false, s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.records[jobID] {
		if existing.URL == rec.URL {
			return false, nil
		}
	}
	s.records[jobID] = append(s.records[jobID], rec)
	return true, nil
}

func (s *memorySink) UpdateJobStatus(_ context.Context, job models.Job) error {
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return nil
}

func (s *memorySink) recordCount(jobID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records[jobID])
}

func newTestOrchestrator(adapters []sources.Adapter, sink Sink) *Orchestrator {
	return NewOrchestrator(OrchestratorOptions{
		Planner:           NewPlanner(nil, 1, nil),
		Executor:          NewExecutor(time.Second, nil, 0, nil),
		Filter:            NewFilter(nil, 0.5, 10, nil, nil),
		Registry:          NewRegistry(nil),
		Adapters:          adapters,
		Sink:              sink,
		PerCallLimit:      10,
		MaxConcurrentJobs: 2,
	})
}

func waitTerminal(t *testing.T, o *Orchestrator, jobID string) models.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, ok := o.Registry().Get(jobID)
		if !ok {
			t.Fatal("job vanished from registry")
		}
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("job never reached a terminal state")
	return models.Job{}
}

func TestStartResearchEndToEnd(t *testing.T) {
	// Three sources with overlapping results collapse to three unique records.
	adapters := []sources.Adapter{
		&fakeAdapter{name: "one", tier: models.TierArchival, hits: []models.RawHit{
			videoHit("one", "https://x.example/a.mp4"),
			videoHit("one", "https://x.example/b.mp4"),
		}},
		&fakeAdapter{name: "two", tier: models.TierCurated, hits: []models.RawHit{
			videoHit("two", "https://x.example/b.mp4"),
			videoHit("two", "https://x.example/c.mp4"),
		}},
		&fakeAdapter{name: "three", tier: models.TierWebSearch, hits: []models.RawHit{
			videoHit("three", "https://x.example/a.mp4"),
		}},
	}
	sink := newMemorySink()
	o := newTestOrchestrator(adapters, sink)

	job, err := o.StartResearch(context.Background(), "1969 moon landing", []models.MediaType{models.MediaVideo})
	if err != nil {
		t.Fatalf("StartResearch: %v", err)
	}
	if job.Status != models.JobProcessing {
		t.Fatalf("job started in %s", job.Status)
	}

	final := waitTerminal(t, o, job.ID)
	if final.Status != models.JobCompleted {
		t.Fatalf("job ended %s (%s)", final.Status, final.ErrorMessage)
	}
	if got := final.Counts[models.MediaVideo]; got != 3 {
		t.Fatalf("expected 3 deduplicated records, counted %d", got)
	}
	if sink.recordCount(job.ID) != 3 {
		t.Fatalf("sink holds %d records, want 3", sink.recordCount(job.ID))
	}

	// Terminal sink row mirrors the registry.
	sink.mu.Lock()
	persisted := sink.jobs[job.ID]
	sink.mu.Unlock()
	if persisted.Status != models.JobCompleted {
		t.Fatalf("persisted status %s", persisted.Status)
	}
}

func TestStartResearchFailingAdapterStillCompletes(t *testing.T) {
	adapters := []sources.Adapter{
		&fakeAdapter{name: "good", hits: []models.RawHit{videoHit("good", "https://x.example/a.mp4")}},
		&fakeAdapter{name: "bad", err: errors.New("upstream down")},
	}
	sink := newMemorySink()
	o := newTestOrchestrator(adapters, sink)

	job, err := o.StartResearch(context.Background(), "topic", []models.MediaType{models.MediaVideo})
	if err != nil {
		t.Fatalf("StartResearch: %v", err)
	}

	final := waitTerminal(t, o, job.ID)
	if final.Status != models.JobCompleted {
		t.Fatalf("one failed source must not fail the job: %s", final.Status)
	}
	if final.Counts[models.MediaVideo] != 1 {
		t.Fatalf("expected the good source's record, counted %d", final.Counts[models.MediaVideo])
	}
}

func TestStartResearchJobRowFailureIsFatal(t *testing.T) {
	sink := newMemorySink()
	sink.createErr = errors.New("db down")
	o := newTestOrchestrator(nil, sink)

	_, err := o.StartResearch(context.Background(), "topic", []models.MediaType{models.MediaVideo})
	if err == nil {
		t.Fatal("expected error when the job row cannot be created")
	}
}

func TestCancelledJobEndsCancelled(t *testing.T) {
	release := make(chan struct{})
	slow := &blockingAdapter{release: release, hits: []models.RawHit{videoHit("slow", "https://x.example/a.mp4")}}
	sink := newMemorySink()
	o := newTestOrchestrator([]sources.Adapter{slow}, sink)

	job, err := o.StartResearch(context.Background(), "topic", []models.MediaType{models.MediaVideo})
	if err != nil {
		t.Fatalf("StartResearch: %v", err)
	}

	o.Registry().RequestCancel(job.ID)
	close(release)

	final := waitTerminal(t, o, job.ID)
	if final.Status != models.JobCancelled {
		t.Fatalf("job ended %s, want cancelled", final.Status)
	}
	if final.ErrorMessage != CancelledByUser {
		t.Fatalf("cancelled job carries message %q, want %q", final.ErrorMessage, CancelledByUser)
	}
	// Work done before the checkpoint is kept.
	if sink.recordCount(job.ID) != 1 {
		t.Fatalf("pre-checkpoint records lost: %d", sink.recordCount(job.ID))
	}
}

func TestCancelAfterCompletionKeepsCompleted(t *testing.T) {
	adapter := &fakeAdapter{name: "a", hits: []models.RawHit{videoHit("a", "https://x.example/a.mp4")}}
	sink := newMemorySink()
	o := newTestOrchestrator([]sources.Adapter{adapter}, sink)

	job, _ := o.StartResearch(context.Background(), "topic", []models.MediaType{models.MediaVideo})
	final := waitTerminal(t, o, job.ID)
	if final.Status != models.JobCompleted {
		t.Fatalf("setup: job ended %s", final.Status)
	}

	o.Registry().RequestCancel(job.ID)
	got, _ := o.Registry().Get(job.ID)
	if got.Status != models.JobCompleted {
		t.Fatalf("late cancel changed status to %s", got.Status)
	}
}

func TestInsertFailureLosesRecordNotJob(t *testing.T) {
	adapter := &fakeAdapter{name: "a", hits: []models.RawHit{videoHit("a", "https://x.example/a.mp4")}}
	sink := newMemorySink()
	sink.insertErr = errors.New("constraint violation")
	o := newTestOrchestrator([]sources.Adapter{adapter}, sink)

	job, _ := o.StartResearch(context.Background(), "topic", []models.MediaType{models.MediaVideo})
	final := waitTerminal(t, o, job.ID)
	if final.Status != models.JobCompleted {
		t.Fatalf("insert failures must not fail the job: %s", final.Status)
	}
	if final.Counts[models.MediaVideo] != 0 {
		t.Fatalf("lost records still counted: %d", final.Counts[models.MediaVideo])
	}
}

func TestDuplicateURLAcrossPipelinesCountedOnce(t *testing.T) {
	// One URL surfaces as both a video and an image. Only one row can land
	// in the store, so the per-type counts must sum to one as well.
	url := "https://x.example/shared"
	adapters := []sources.Adapter{
		&fakeAdapter{name: "vid", types: []models.MediaType{models.MediaVideo}, hits: []models.RawHit{
			{URL: url, Title: "shared", SourceName: "vid", MediaType: models.MediaVideo},
		}},
		&fakeAdapter{name: "img", types: []models.MediaType{models.MediaImage}, hits: []models.RawHit{
			{URL: url, Title: "shared", SourceName: "img", MediaType: models.MediaImage},
		}},
	}
	sink := newMemorySink()
	o := newTestOrchestrator(adapters, sink)

	job, err := o.StartResearch(context.Background(), "topic", []models.MediaType{models.MediaVideo, models.MediaImage})
	if err != nil {
		t.Fatalf("StartResearch: %v", err)
	}

	final := waitTerminal(t, o, job.ID)
	if final.Status != models.JobCompleted {
		t.Fatalf("job ended %s (%s)", final.Status, final.ErrorMessage)
	}
	total := final.Counts[models.MediaVideo] + final.Counts[models.MediaImage]
	if total != 1 {
		t.Fatalf("counts sum to %d, want 1: %v", total, final.Counts)
	}
	if sink.recordCount(job.ID) != 1 {
		t.Fatalf("sink holds %d records, want 1", sink.recordCount(job.ID))
	}
}

func TestDefaultMediaTypesWhenUnspecified(t *testing.T) {
	sink := newMemorySink()
	o := newTestOrchestrator([]sources.Adapter{&fakeAdapter{name: "a"}}, sink)

	job, err := o.StartResearch(context.Background(), "topic", nil)
	if err != nil {
		t.Fatalf("StartResearch: %v", err)
	}
	if len(job.MediaTypes) != len(models.AllMediaTypes()) {
		t.Fatalf("expected all media types, got %v", job.MediaTypes)
	}
	waitTerminal(t, o, job.ID)
}

// blockingAdapter holds every Search call until release closes.
type blockingAdapter struct {
	release <-chan struct{}
	hits    []models.RawHit
}

func (b *blockingAdapter) Descriptor() sources.Descriptor {
	return sources.Descriptor{Name: "slow", Tier: models.TierCurated, License: models.LicenseUnknown, MediaTypes: []models.MediaType{models.MediaVideo}}
}

func (b *blockingAdapter) Search(ctx context.Context, _ string, _ int) ([]models.RawHit, error) {
	select {
	case <-b.release:
		return b.hits, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
