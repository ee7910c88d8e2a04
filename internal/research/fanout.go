package research

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/pouria-abbasi/mediascout/internal/cache"
	"github.com/pouria-abbasi/mediascout/internal/metrics"
	"github.com/pouria-abbasi/mediascout/models"
	"github.com/pouria-abbasi/mediascout/sources"
)

// Call is one adapter invocation scheduled by the executor.
type Call struct {
	Adapter sources.Adapter
	Query   string
	Limit   int
}

// Outcome is the per-call diagnostic record the executor emits alongside the
// combined hit list.
type Outcome struct {
	Source   string        `json:"source"`
	Query    string        `json:"query"`
	OK       bool          `json:"ok"`
	Count    int           `json:"count"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Executor fans a set of adapter calls out concurrently. Every call gets its
// own timeout and a recovery boundary: one adapter failing, timing out or
// panicking never affects its siblings.
type Executor struct {
	CallTimeout time.Duration
	Cache       cache.HitCache
	CacheTTL    time.Duration
	Logger      *log.Logger
}

// NewExecutor builds an executor with the given per-call timeout. hitCache
// may be nil to disable memoisation.
func NewExecutor(callTimeout time.Duration, hitCache cache.HitCache, cacheTTL time.Duration, logger *log.Logger) *Executor {
	if callTimeout <= 0 {
		callTimeout = 20 * time.Second
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[FANOUT] ", log.LstdFlags)
	}
	return &Executor{CallTimeout: callTimeout, Cache: hitCache, CacheTTL: cacheTTL, Logger: logger}
}

// Execute runs all calls concurrently and returns the union of successful
// hits plus one Outcome per call, in call order. Hit order is deterministic
// per adapter (whatever the adapter returned) but not across adapters; the
// ranking stage downstream imposes the final order.
func (e *Executor) Execute(ctx context.Context, calls []Call) ([]models.RawHit, []Outcome) {
	var (
		mu       sync.Mutex
		combined []models.RawHit
	)
	outcomes := make([]Outcome, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c Call) {
			defer wg.Done()
			hits, outcome := e.runCall(ctx, c)
			outcomes[idx] = outcome
			if len(hits) > 0 {
				mu.Lock()
				combined = append(combined, hits...)
				mu.Unlock()
			}
		}(i, call)
	}
	wg.Wait()

	return combined, outcomes
}

// runCall executes one adapter call and reduces its result to hits plus a
// diagnostic outcome.
func (e *Executor) runCall(ctx context.Context, c Call) ([]models.RawHit, Outcome) {
	desc := c.Adapter.Descriptor()
	outcome := Outcome{Source: desc.Name, Query: c.Query}
	started := time.Now()

	hits, err := e.searchWithRecovery(ctx, c)
	outcome.Duration = time.Since(started)

	mediaType := ""
	if len(desc.MediaTypes) > 0 {
		mediaType = string(desc.MediaTypes[0])
	}
	metrics.FanoutCallDuration.WithLabelValues(desc.Name).Observe(outcome.Duration.Seconds())

	if err != nil {
		outcome.Error = err.Error()
		metrics.FanoutCallsTotal.WithLabelValues(desc.Name, mediaType, "error").Inc()
		e.Logger.Printf("source %s failed for %q: %v", desc.Name, c.Query, err)
		return nil, outcome
	}

	outcome.OK = true
	outcome.Count = len(hits)
	metrics.FanoutCallsTotal.WithLabelValues(desc.Name, mediaType, "ok").Inc()
	return hits, outcome
}

// searchWithRecovery wraps the adapter call with cache lookup, per-call
// timeout and panic recovery. A panicking adapter is reported as an error
// from this call only.
func (e *Executor) searchWithRecovery(ctx context.Context, c Call) (hits []models.RawHit, err error) {
	key := cache.Key(c.Adapter.Descriptor().Name, c.Query, c.Limit)
	if e.Cache != nil {
		if cached, ok := e.Cache.Get(ctx, key); ok {
			metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
			return cached, nil
		}
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	}

	callCtx, cancel := context.WithTimeout(ctx, e.CallTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			hits = nil
			err = fmt.Errorf("adapter panic: %v", r)
		}
	}()

	hits, err = c.Adapter.Search(callCtx, c.Query, c.Limit)
	if err != nil {
		return nil, err
	}
	if e.Cache != nil {
		e.Cache.Set(ctx, key, hits, e.CacheTTL)
	}
	return hits, nil
}
