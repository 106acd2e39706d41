package ledger

import (
	"context"
	"fmt"
	"sync"

	"aidSentinel/internal/model"
)

// MemoryStore is the in-process ledger used by simulate mode and
// tests. Events keep insertion order so history is stable.
type MemoryStore struct {
	mu        sync.RWMutex
	order     []string
	events    map[string]model.CanonicalEvent
	states    map[string]model.EventState
	decisions map[string]model.Decision
	transfers map[string]model.Transfer
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:    make(map[string]model.CanonicalEvent),
		states:    make(map[string]model.EventState),
		decisions: make(map[string]model.Decision),
		transfers: make(map[string]model.Transfer),
	}
}

func (s *MemoryStore) PutEvent(_ context.Context, event model.CanonicalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[event.ID]; !ok {
		s.order = append(s.order, event.ID)
		s.events[event.ID] = event
		s.states[event.ID] = model.StateSeen
	}
	return nil
}

func (s *MemoryStore) GetEvent(_ context.Context, eventID string) (model.CanonicalEvent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[eventID]
	return ev, ok, nil
}

func (s *MemoryStore) EventState(_ context.Context, eventID string) (model.EventState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[eventID]
	return state, ok, nil
}

func (s *MemoryStore) SetEventState(_ context.Context, eventID string, state model.EventState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[eventID]; !ok {
		return fmt.Errorf("set state %s: %w", eventID, model.ErrUnknownEvent)
	}
	s.states[eventID] = state
	return nil
}

func (s *MemoryStore) PutDecision(_ context.Context, decision model.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions[decision.EventID] = decision
	return nil
}

func (s *MemoryStore) GetDecision(_ context.Context, eventID string) (*model.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.decisions[eventID]; ok {
		return &d, nil
	}
	return nil, nil
}

func (s *MemoryStore) PutTransfer(_ context.Context, transfer model.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers[transfer.EventID] = transfer
	return nil
}

func (s *MemoryStore) UpdateTransferStatus(_ context.Context, eventID string, status model.TransferStatus, txReference string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transfers[eventID]
	if !ok {
		return fmt.Errorf("update transfer %s: %w", eventID, model.ErrUnknownEvent)
	}
	t.Status = status
	if txReference != "" {
		t.TxReference = txReference
	}
	s.transfers[eventID] = t
	return nil
}

func (s *MemoryStore) GetTransfer(_ context.Context, eventID string) (*model.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.transfers[eventID]; ok {
		return &t, nil
	}
	return nil, nil
}

func (s *MemoryStore) InflightTransfers(_ context.Context) ([]model.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Transfer
	for _, t := range s.transfers {
		if t.Status == model.TransferPending {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryStore) ConfirmedTotal(_ context.Context) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total float64
	for _, t := range s.transfers {
		if t.Status == model.TransferConfirmed {
			total += t.Amount
		}
	}
	return total, nil
}

func (s *MemoryStore) Statistics(ctx context.Context, initialBalance float64) (model.Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := model.Statistics{EventsByType: make(map[model.DisasterType]int)}
	for _, id := range s.order {
		ev := s.events[id]
		stats.EventsProcessed++
		stats.EventsByType[ev.DisasterType]++
	}

	var total float64
	for _, id := range s.order {
		t, ok := s.transfers[id]
		if !ok || t.Status != model.TransferConfirmed {
			continue
		}
		stats.PayoutsCount++
		total += t.Amount
		last := t
		stats.LastPayout = &last
	}
	stats.TotalPayoutAmount = total
	stats.CurrentBalance = initialBalance - total
	if stats.CurrentBalance < 0 {
		stats.CurrentBalance = 0
	}
	return stats, nil
}

func (s *MemoryStore) History(_ context.Context, limit int) ([]model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}

	// Newest first.
	entries := make([]model.HistoryEntry, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(entries) < limit; i-- {
		id := s.order[i]
		entry := model.HistoryEntry{Event: s.events[id], State: s.states[id]}
		if d, ok := s.decisions[id]; ok {
			dd := d
			entry.Decision = &dd
		}
		if t, ok := s.transfers[id]; ok {
			tt := t
			entry.Transfer = &tt
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
