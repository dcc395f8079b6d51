// Package metrics collects per-stage pipeline latencies for the metrics
// endpoint.
package metrics

import (
	"sync"
	"time"
)

// Stage names accepted by Record. Anything else is silently dropped.
const (
	StageRewrite = "rewrite_ms"
	StageEmbed   = "embed_ms"
	StageSearch  = "search_ms"
	StageRerank  = "rerank_ms"
	StagePrompt  = "prompt_ms"
	StageLLM     = "llm_ms"
)

// Registry accumulates stage durations and a query counter. Safe for
// concurrent use.
type Registry struct {
	mu        sync.Mutex
	startTime time.Time
	durations map[string][]float64
	queries   int
}

// NewRegistry returns an empty registry with the uptime clock started.
func NewRegistry() *Registry {
	r := &Registry{startTime: time.Now()}
	r.resetLocked()
	return r
}

func (r *Registry) resetLocked() {
	r.durations = map[string][]float64{
		StageRewrite: {},
		StageEmbed:   {},
		StageSearch:  {},
		StageRerank:  {},
		StagePrompt:  {},
		StageLLM:     {},
	}
	r.queries = 0
}

// Reset clears all recorded durations and the query counter. Uptime keeps
// running.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetLocked()
}

// Record appends one duration sample for a known stage.
func (r *Registry) Record(stage string, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.durations[stage]; !ok {
		return
	}
	r.durations[stage] = append(r.durations[stage], float64(d.Milliseconds()))
}

// IncrementQueries bumps the served-query counter.
func (r *Registry) IncrementQueries() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries++
}

// Summary returns average latency per stage plus the query count and uptime.
func (r *Registry) Summary() map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]any{
		"query_count":    r.queries,
		"uptime_seconds": int(time.Since(r.startTime).Seconds()),
	}
	for stage, samples := range r.durations {
		var sum float64
		for _, s := range samples {
			sum += s
		}
		avg := 0.0
		if len(samples) > 0 {
			avg = sum / float64(len(samples))
		}
		out["avg_"+stage] = avg
	}
	return out
}
