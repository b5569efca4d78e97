// Package selector implements the two-tier round-robin upstream/key
// picker described in spec.md §4.D: an outer cursor chooses an upstream,
// an inner cursor (one per upstream) chooses a key within it.
//
// No direct teacher analog exists — CirtusX-ctrl-ai-v1 routes by a fixed
// provider-key-to-URL map, never load-balancing across a pool. The
// cursor bookkeeping is grounded on the corpus's atomic.Uint64 epoch
// idiom (internal/config.Cell, ManuGH/xg2g's ConfigHolder) generalized
// from "one counter" to "one counter per upstream, recreated on resize".
package selector

import (
	"fmt"
	"sync/atomic"

	"github.com/ctrlai/llmgate/internal/config"
)

// Pick is a materialized, owned selection result — the strings are
// copied out of the snapshot so the caller never needs to hold the
// snapshot handle past the call to Pick.
type Pick struct {
	UpstreamIndex int
	Endpoint      string
	Model         string
	APIKey        string
	Dialect       config.Dialect
}

// Selector holds the mutable cursor state shared across every request.
// Safe for concurrent use; Pick never blocks.
type Selector struct {
	cell *config.Cell

	upstreamCursor atomic.Uint64

	// keyCursors is replaced wholesale (never mutated element-by-element
	// across a resize) whenever the configured upstream count changes,
	// so a cursor from a stale slice can never alias a live one.
	keyCursors atomic.Pointer[[]*atomic.Uint64]
}

// New creates a Selector reading snapshots from cell.
func New(cell *config.Cell) *Selector {
	s := &Selector{cell: cell}
	s.syncKeyCursors(cell.Load())
	return s
}

// syncKeyCursors (re)allocates the per-upstream key cursor slice if the
// upstream count changed since the last observation. Safe to call from
// any goroutine: a fresh slice is published with a plain atomic store
// (no compare-and-swap, so when two callers race the later store wins),
// and no lock is needed since stale readers only ever read through the
// pointer they already captured.
func (s *Selector) syncKeyCursors(cfg *config.Config) []*atomic.Uint64 {
	cur := s.keyCursors.Load()
	if cur != nil && len(*cur) == len(cfg.Upstreams) {
		return *cur
	}
	fresh := make([]*atomic.Uint64, len(cfg.Upstreams))
	for i := range fresh {
		fresh[i] = &atomic.Uint64{}
	}
	s.keyCursors.Store(&fresh)
	return fresh
}

// Pick chooses the next upstream and key via strict round robin.
//
// spec.md §4.D: cursors are monotone non-decreasing; n is read from the
// current snapshot at selection time, so a config swap that shrinks a
// collection is safe — mod is evaluated after the read, never before.
func (s *Selector) Pick() (Pick, error) {
	cfg := s.cell.Load()
	if len(cfg.Upstreams) == 0 {
		return Pick{}, fmt.Errorf("no upstreams configured")
	}

	cursors := s.syncKeyCursors(cfg)

	i := int(s.upstreamCursor.Add(1)-1) % len(cfg.Upstreams)
	up := cfg.Upstreams[i]
	if len(up.APIKeys) == 0 {
		return Pick{}, fmt.Errorf("upstream %d has no api keys", i)
	}

	j := int(cursors[i].Add(1)-1) % len(up.APIKeys)

	return Pick{
		UpstreamIndex: i,
		Endpoint:      up.Endpoint,
		Model:         up.Model,
		APIKey:        up.APIKeys[j],
		Dialect:       up.Dialect,
	}, nil
}
