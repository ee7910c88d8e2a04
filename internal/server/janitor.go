package server

import (
	"context"
	"log"
	"time"

	"github.com/pouria-abbasi/mediascout/internal/index"
	"github.com/pouria-abbasi/mediascout/internal/research"
)

// jobPruner is the slice of the store the janitor needs.
type jobPruner interface {
	DeleteJobsOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// janitor reclaims memory and storage behind finished jobs: registry entries
// past the retention window, expired search indexes and old database rows.
// The status handler falls back to the store, so evicting a registry entry
// never makes a job unreadable.
type janitor struct {
	interval        time.Duration
	jobRetention    time.Duration
	recordRetention time.Duration

	registry *research.Registry
	indexes  *index.Manager
	store    jobPruner
	logger   *log.Logger
}

func newJanitor(cfgInterval, jobRetention, recordRetention time.Duration, reg *research.Registry, indexes *index.Manager, st jobPruner, logger *log.Logger) *janitor {
	if cfgInterval <= 0 {
		cfgInterval = 5 * time.Minute
	}
	if jobRetention <= 0 {
		jobRetention = time.Hour
	}
	if recordRetention <= 0 {
		recordRetention = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[JANITOR] ", log.LstdFlags)
	}
	return &janitor{
		interval:        cfgInterval,
		jobRetention:    jobRetention,
		recordRetention: recordRetention,
		registry:        reg,
		indexes:         indexes,
		store:           st,
		logger:          logger,
	}
}

// run sweeps on a fixed cadence until ctx is cancelled.
func (j *janitor) run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

func (j *janitor) sweep(ctx context.Context) {
	if j.registry != nil {
		if n := j.registry.EvictTerminalOlderThan(j.jobRetention); n > 0 {
			j.logger.Printf("evicted %d finished jobs from the registry", n)
		}
	}
	if j.indexes != nil {
		if n := j.indexes.EvictExpired(); n > 0 {
			j.logger.Printf("evicted %d expired search indexes", n)
		}
	}
	if j.store != nil {
		n, err := j.store.DeleteJobsOlderThan(ctx, j.recordRetention)
		if err != nil {
			j.logger.Printf("database retention sweep failed: %v", err)
		} else if n > 0 {
			j.logger.Printf("deleted %d jobs past retention from the database", n)
		}
	}
}
