package research

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/pouria-abbasi/mediascout/internal/metrics"
	"github.com/pouria-abbasi/mediascout/models"
	"github.com/pouria-abbasi/mediascout/sources"
)

var orchestratorTracer = otel.Tracer("mediascout/internal/research")

// CancelledByUser is stored as the error message of a cancelled job so its
// terminal state is distinguishable from a failure when read back later.
const CancelledByUser = "cancelled by user"

// Sink is the persistence surface the orchestrator writes through.
// Implemented by store.Store. InsertMediaRecord reports whether a row was
// actually stored; false without error means the (job, url) pair already
// existed and the record must not be counted again.
type Sink interface {
	CreateJob(ctx context.Context, job models.Job) error
	InsertMediaRecord(ctx context.Context, jobID string, record models.CanonicalRecord) (bool, error)
	UpdateJobStatus(ctx context.Context, job models.Job) error
}

// Indexer receives a job's final record set for ad-hoc search. Optional.
type Indexer interface {
	Build(jobID string, records []models.CanonicalRecord) error
}

// Orchestrator runs research jobs end to end: plan queries, fan out to the
// source adapters per media type, normalize, rank, filter and persist. One
// goroutine per job, one goroutine per media type inside the job.
type Orchestrator struct {
	planner  *Planner
	executor *Executor
	filter   *Filter
	registry *Registry
	adapters []sources.Adapter
	sink     Sink
	indexer  Indexer

	perCallLimit int
	jobSlots     chan struct{}
	logger       *log.Logger
}

// OrchestratorOptions carries the collaborators an orchestrator needs.
type OrchestratorOptions struct {
	Planner  *Planner
	Executor *Executor
	Filter   *Filter
	Registry *Registry
	Adapters []sources.Adapter
	Sink     Sink
	Indexer  Indexer

	PerCallLimit      int
	MaxConcurrentJobs int
	Logger            *log.Logger
}

// NewOrchestrator wires an orchestrator from its parts.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	if opts.PerCallLimit <= 0 {
		opts.PerCallLimit = 20
	}
	if opts.MaxConcurrentJobs <= 0 {
		opts.MaxConcurrentJobs = 4
	}
	if opts.Logger == nil {
		opts.Logger = log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
	}
	return &Orchestrator{
		planner:      opts.Planner,
		executor:     opts.Executor,
		filter:       opts.Filter,
		registry:     opts.Registry,
		adapters:     opts.Adapters,
		sink:         opts.Sink,
		indexer:      opts.Indexer,
		perCallLimit: opts.PerCallLimit,
		jobSlots:     make(chan struct{}, opts.MaxConcurrentJobs),
		logger:       opts.Logger,
	}
}

// Registry exposes the job registry for the HTTP layer.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// StartResearch registers a job and kicks off its pipeline in the background.
// It returns as soon as the job row is durable; callers poll for progress.
// The persistent job row is created synchronously so a jobless record can
// never exist, and its failure is the only error this method returns.
func (o *Orchestrator) StartResearch(ctx context.Context, topic string, mediaTypes []models.MediaType) (models.Job, error) {
	if len(mediaTypes) == 0 {
		mediaTypes = models.AllMediaTypes()
	}
	job := o.registry.Create(topic, mediaTypes)

	if err := o.sink.CreateJob(ctx, job); err != nil {
		o.registry.Remove(job.ID)
		return models.Job{}, fmt.Errorf("create job: %w", err)
	}

	go o.runJob(job)
	return job, nil
}

// runJob drives one job to a terminal state. It owns the job's context and
// never lets a pipeline panic escape the goroutine.
func (o *Orchestrator) runJob(job models.Job) {
	o.jobSlots <- struct{}{}
	defer func() { <-o.jobSlots }()

	ctx, span := orchestratorTracer.Start(context.Background(), "research.job")
	defer span.End()
	span.SetAttributes(
		attribute.String("job_id", job.ID),
		attribute.String("topic", job.Topic),
		attribute.Int("media_types", len(job.MediaTypes)),
	)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("job panic: %v", r)
			span.SetStatus(codes.Error, err.Error())
			o.logger.Printf("job %s panicked: %v", job.ID, r)
			o.finalize(ctx, job.ID, models.JobFailed, nil, err.Error())
		}
	}()

	started := time.Now()
	o.logger.Printf("job %s started: %q (%d media types)", job.ID, job.Topic, len(job.MediaTypes))

	plan := o.planner.PlanQueries(ctx, job.Topic, job.MediaTypes)
	descriptors := DescriptorIndex(o.adapters)

	// Counts has one pre-allocated slot per media type so each pipeline
	// goroutine writes only its own entry.
	counts := make(map[models.MediaType]int, len(job.MediaTypes))
	for _, mt := range job.MediaTypes {
		counts[mt] = 0
	}

	var (
		wg         sync.WaitGroup
		countsMu   sync.Mutex
		allMu      sync.Mutex
		all        []models.CanonicalRecord
		panicked   bool
		panickedMu sync.Mutex
	)
	for _, mt := range job.MediaTypes {
		wg.Add(1)
		go func(mt models.MediaType) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					o.logger.Printf("job %s: %s pipeline panicked: %v", job.ID, mt, r)
					panickedMu.Lock()
					panicked = true
					panickedMu.Unlock()
				}
			}()
			records := o.runPipeline(ctx, job, mt, plan[mt], descriptors)
			countsMu.Lock()
			counts[mt] = len(records)
			countsMu.Unlock()
			allMu.Lock()
			all = append(all, records...)
			allMu.Unlock()
		}(mt)
	}
	wg.Wait()

	if panicked {
		span.SetStatus(codes.Error, "pipeline panic")
		o.finalize(ctx, job.ID, models.JobFailed, counts, "internal pipeline failure")
		return
	}

	// Sole cancellation checkpoint. Work done up to here is kept either way;
	// only the terminal status differs.
	if o.registry.Cancelled(job.ID) {
		span.SetAttributes(attribute.String("result", "cancelled"))
		o.logger.Printf("job %s cancelled after %s", job.ID, time.Since(started).Round(time.Millisecond))
		o.finalize(ctx, job.ID, models.JobCancelled, counts, CancelledByUser)
		return
	}

	if o.indexer != nil {
		if err := o.indexer.Build(job.ID, all); err != nil {
			o.logger.Printf("job %s: index build failed: %v", job.ID, err)
		}
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	span.SetAttributes(attribute.Int("records", total))
	o.logger.Printf("job %s completed with %d records in %s", job.ID, total, time.Since(started).Round(time.Millisecond))
	o.finalize(ctx, job.ID, models.JobCompleted, counts, "")
}

// runPipeline executes the full pipeline for one media type and returns the
// records that were persisted.
func (o *Orchestrator) runPipeline(ctx context.Context, job models.Job, mt models.MediaType, queries []string, descriptors map[string]sources.Descriptor) []models.CanonicalRecord {
	ctx, span := orchestratorTracer.Start(ctx, "research.pipeline")
	defer span.End()
	span.SetAttributes(
		attribute.String("job_id", job.ID),
		attribute.String("media_type", string(mt)),
		attribute.Int("queries", len(queries)),
	)

	var calls []Call
	for _, adapter := range sources.ForMediaType(o.adapters, mt) {
		for _, q := range queries {
			calls = append(calls, Call{Adapter: adapter, Query: q, Limit: o.perCallLimit})
		}
	}
	if len(calls) == 0 {
		o.logger.Printf("job %s: no adapters registered for %s", job.ID, mt)
		return nil
	}

	hits, outcomes := o.executor.Execute(ctx, calls)
	failures := 0
	for _, oc := range outcomes {
		if !oc.OK {
			failures++
		}
	}
	span.SetAttributes(attribute.Int("hits", len(hits)), attribute.Int("call_failures", failures))

	// Hits for the wrong media type can slip through mixed-mode sources.
	filtered := hits[:0:0]
	for _, h := range hits {
		if h.MediaType == mt {
			filtered = append(filtered, h)
		}
	}

	records := Normalize(filtered, descriptors, o.logger)
	Rank(records)
	records = o.filter.Apply(ctx, job.Topic, records)

	// Per-record persistence; a failed insert loses one record, not the batch.
	// A record whose URL was already stored by a concurrent pipeline is not
	// counted again, so per-type counts sum to the rows actually stored.
	persisted := records[:0:0]
	for _, rec := range records {
		inserted, err := o.sink.InsertMediaRecord(ctx, job.ID, rec)
		if err != nil {
			o.logger.Printf("job %s: persist %s failed: %v", job.ID, rec.URL, err)
			continue
		}
		if !inserted {
			continue
		}
		metrics.RecordsPersistedTotal.WithLabelValues(string(mt)).Inc()
		persisted = append(persisted, rec)
	}
	span.SetAttributes(attribute.Int("persisted", len(persisted)))
	return persisted
}

// finalize records the terminal state in the registry and mirrors it to the
// sink. A sink write failure cannot un-finalize the job; it is logged.
func (o *Orchestrator) finalize(ctx context.Context, jobID string, status models.JobStatus, counts map[models.MediaType]int, errMsg string) {
	o.registry.Finalize(jobID, status, counts, errMsg)
	job, ok := o.registry.Get(jobID)
	if !ok {
		return
	}
	if err := o.sink.UpdateJobStatus(ctx, job); err != nil {
		o.logger.Printf("job %s: status update failed: %v", jobID, err)
	}
}
