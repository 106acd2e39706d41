package pipeline

import "sync"

// claimTable hands out per-event-id exclusive claims, first writer
// wins. A claim must be held before any transition past Denied so
// concurrent duplicate triggers cannot re-run the oracle or executor.
type claimTable struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func newClaimTable() *claimTable {
	return &claimTable{active: make(map[string]struct{})}
}

// acquire returns true if the caller now owns the event id.
func (c *claimTable) acquire(eventID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, held := c.active[eventID]; held {
		return false
	}
	c.active[eventID] = struct{}{}
	return true
}

func (c *claimTable) release(eventID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, eventID)
}

// seenSet is the append-only set of event ids the poller has already
// handed to the pipeline. Safe for concurrent insertion.
type seenSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func newSeenSet() *seenSet {
	return &seenSet{ids: make(map[string]struct{})}
}

// add returns true on first sighting.
func (s *seenSet) add(eventID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[eventID]; ok {
		return false
	}
	s.ids[eventID] = struct{}{}
	return true
}
