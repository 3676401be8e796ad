package billing

import (
	"context"
	"sync"

	"github.com/fissionlabs/fissionpay/internal/amount"
)

type memEntry struct {
	bill    *Bill
	applied map[string]struct{} // tx hashes already counted
}

// MemStore is the in-process Store used when no database is configured.
// A single mutex guards the map; per-bill payment application is therefore
// trivially serialized.
type MemStore struct {
	mu    sync.RWMutex
	bills map[string]*memEntry
	order []string
}

func NewMemStore() *MemStore {
	return &MemStore{bills: make(map[string]*memEntry)}
}

func (s *MemStore) Create(ctx context.Context, bill *Bill) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bills[bill.ID]; exists {
		return ErrInvalidInput
	}
	s.bills[bill.ID] = &memEntry{bill: bill.clone(), applied: make(map[string]struct{})}
	s.order = append(s.order, bill.ID)
	return nil
}

func (s *MemStore) Get(ctx context.Context, id string) (*Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.bills[id]
	if !ok {
		return nil, ErrNotFound
	}
	return entry.bill.clone(), nil
}

func (s *MemStore) List(ctx context.Context) ([]*Bill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Bill, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.bills[id].bill.clone())
	}
	return out, nil
}

func (s *MemStore) SetRemaining(ctx context.Context, id, remaining string) (*Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.bills[id]
	if !ok {
		return nil, ErrNotFound
	}
	entry.bill.RemainingAmount = remaining
	return entry.bill.clone(), nil
}

func (s *MemStore) ApplyPayment(ctx context.Context, id, paid, txHash string) (*Bill, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.bills[id]
	if !ok {
		return nil, ErrNotFound
	}
	if txHash != "" {
		if _, seen := entry.applied[txHash]; seen {
			return entry.bill.clone(), nil
		}
	}
	remaining, err := amount.ClampedSub(entry.bill.RemainingAmount, paid)
	if err != nil {
		return nil, err
	}
	entry.bill.RemainingAmount = remaining
	if txHash != "" {
		entry.applied[txHash] = struct{}{}
	}
	return entry.bill.clone(), nil
}
