// Package stats implements the process-wide counter set described in
// spec.md §4.J: additive atomic counters plus a derived waste_ratio.
// Readers may sample at any time; there is no cross-counter consistency
// guarantee.
//
// The counters themselves are plain atomic.Int64 — spec.md's Non-goal on
// persistent statistics rules out a real store, and an in-process atomic
// counter needs nothing heavier. Each counter is mirrored into one
// Prometheus Counter (registered through promauto.With) so the same
// numbers are scrapable over /metrics without a second bookkeeping path;
// waste_ratio is not exported there.
package stats

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Kind is one of the additive counter categories in spec.md §3.
type Kind int

const (
	TotalRequests Kind = iota
	InputTokens
	HistoryTokens
	AssistantTokens
	SystemTokens
	CacheReadTokens
	CacheCreationTokens
	numKinds
)

func (k Kind) label() string {
	switch k {
	case TotalRequests:
		return "total_requests"
	case InputTokens:
		return "input_tokens"
	case HistoryTokens:
		return "history_tokens"
	case AssistantTokens:
		return "assistant_tokens"
	case SystemTokens:
		return "system_tokens"
	case CacheReadTokens:
		return "cache_read_tokens"
	case CacheCreationTokens:
		return "cache_creation_tokens"
	default:
		return "unknown"
	}
}

// Snapshot is a point-in-time, independently-sampled read of every
// counter plus the derived waste_ratio.
type Snapshot struct {
	TotalRequests        int64   `json:"total_requests"`
	InputTokens          int64   `json:"input_tokens"`
	HistoryTokens        int64   `json:"history_tokens"`
	AssistantTokens      int64   `json:"assistant_tokens"`
	SystemTokens         int64   `json:"system_tokens"`
	CacheReadTokens      int64   `json:"cache_read_tokens"`
	CacheCreationTokens  int64   `json:"cache_creation_tokens"`
	WasteRatio           float64 `json:"waste_ratio"`
}

// Registry holds the counters and their Prometheus mirrors.
type Registry struct {
	counters [numKinds]atomic.Int64

	promCounters [numKinds]prometheus.Counter
}

// NewRegistry creates a Registry and registers its Prometheus
// instruments against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{}
	factory := promauto.With(reg)
	for k := Kind(0); k < numKinds; k++ {
		r.promCounters[k] = factory.NewCounter(prometheus.CounterOpts{
			Namespace: "llmgate",
			Subsystem: "requests",
			Name:      k.label(),
			Help:      "Cumulative count of " + k.label() + " observed by the gateway.",
		})
	}
	return r
}

// Record adds n to the given counter. n may be zero (e.g. to record a
// request that carried no tokens of that category) but must not be
// negative — counters are additive only, per spec.md §3.
func (r *Registry) Record(kind Kind, n int64) {
	if n == 0 {
		return
	}
	r.counters[kind].Add(n)
	r.promCounters[kind].Add(float64(n))
}

// IncRequests records one processed request. Split out from Record
// because it is the single counter every request path touches
// regardless of outcome.
func (r *Registry) IncRequests() {
	r.Record(TotalRequests, 1)
}

// Snapshot returns an independently-sampled read of every counter.
func (r *Registry) Snapshot() Snapshot {
	s := Snapshot{
		TotalRequests:       r.counters[TotalRequests].Load(),
		InputTokens:         r.counters[InputTokens].Load(),
		HistoryTokens:       r.counters[HistoryTokens].Load(),
		AssistantTokens:     r.counters[AssistantTokens].Load(),
		SystemTokens:        r.counters[SystemTokens].Load(),
		CacheReadTokens:     r.counters[CacheReadTokens].Load(),
		CacheCreationTokens: r.counters[CacheCreationTokens].Load(),
	}
	denom := s.InputTokens + s.HistoryTokens
	if denom < 1 {
		denom = 1
	}
	s.WasteRatio = float64(s.HistoryTokens) / float64(denom)
	return s
}
