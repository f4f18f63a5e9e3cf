package orchestrator

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// inflightKey identifies one in-flight order (spec.md §4.G).
type inflightKey struct {
	StrategyID string
	WindowID   string
	RequestID  string
}

// inflightEntry is one tracked order awaiting acknowledgement.
type inflightEntry struct {
	OrderID  string
	Deadline time.Time
}

// inflightRegistry tracks every submitted order from placement until it is
// acknowledged or its deadline expires, per (strategy_id, window_id,
// request_id). It is the orchestrator's own in-memory state (spec.md §3
// ownership), never persisted.
type inflightRegistry struct {
	mu      sync.Mutex
	entries map[inflightKey]inflightEntry
	log     zerolog.Logger
}

func newInflightRegistry(log zerolog.Logger) *inflightRegistry {
	return &inflightRegistry{
		entries: make(map[inflightKey]inflightEntry),
		log:     log.With().Str("component", "inflight").Logger(),
	}
}

func (r *inflightRegistry) track(strategyID, windowID, requestID, orderID string, timeout time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[inflightKey{strategyID, windowID, requestID}] = inflightEntry{
		OrderID:  orderID,
		Deadline: time.Now().Add(timeout),
	}
}

func (r *inflightRegistry) acknowledge(strategyID, windowID, requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, inflightKey{strategyID, windowID, requestID})
}

// expired returns every entry whose deadline has passed as of now, without
// removing them — callers remove an entry only after successfully
// cancelling its order via (H).
func (r *inflightRegistry) expired(now time.Time) []inflightKey {
	r.mu.Lock()
	defer r.mu.Unlock()

	var keys []inflightKey
	for k, v := range r.entries {
		if now.After(v.Deadline) {
			keys = append(keys, k)
		}
	}
	return keys
}

func (r *inflightRegistry) orderIDFor(key inflightKey) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	return e.OrderID, ok
}

func (r *inflightRegistry) remove(key inflightKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

func (r *inflightRegistry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// orderIDs returns every order id currently tracked in flight, for
// (J)'s shutdown snapshot.
func (r *inflightRegistry) orderIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		ids = append(ids, e.OrderID)
	}
	return ids
}
