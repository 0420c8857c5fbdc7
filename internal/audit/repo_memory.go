package audit

import (
	"context"
	"slices"
	"sync"
)

// MemoryRepo keeps events in process. Tests use it to assert on the trail.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(_ context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events, optionally only those of
// the given types.
func (r *MemoryRepo) Events(types ...EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(types) == 0 {
		return slices.Clone(r.events)
	}
	var out []Event
	for _, e := range r.events {
		if slices.Contains(types, e.Type) {
			out = append(out, e)
		}
	}
	return out
}
