package cart

import (
	"sync"

	"github.com/google/uuid"
)

// State is the aggregate cart value exposed to consumers. Loading is
// true until the first authoritative read completes for the current
// session.
type State struct {
	Items     []LineItem `json:"items"`
	Total     float64    `json:"total"`
	ItemCount int        `json:"itemCount"`
	Loading   bool       `json:"isLoading"`
}

// Store holds the cart state and applies the closed set of transitions
// that are the only legal mutation path. Transitions run to completion
// under the lock, so no reader observes a torn intermediate state; none
// of them performs I/O.
type Store struct {
	mu    sync.Mutex
	state State
}

// NewStore returns an empty store awaiting its first authoritative read.
func NewStore() *Store {
	return &Store{state: State{Loading: true}}
}

// Snapshot returns a copy of the current state. The items slice is
// copied; callers never alias internal storage.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.state
	out.Items = append([]LineItem(nil), s.state.Items...)
	return out
}

// SetCart replaces the state wholesale with authoritative data and
// clears the loading flag. Totals are recomputed from the items rather
// than trusted from the payload.
func (s *Store) SetCart(c Cart) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Items = append([]LineItem(nil), c.Items...)
	s.state.Loading = false
	s.recompute()
}

// SetLoading sets the loading flag.
func (s *Store) SetLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Loading = v
}

// Add applies an optimistic add. A line for the same product has its
// quantity incremented; otherwise a pending line with a locally
// generated ID is appended. Non-positive quantities are ignored.
func (s *Store) Add(p Product, quantity int) {
	if quantity < 1 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Items {
		if s.state.Items[i].Product.ID == p.ID {
			s.state.Items[i].Quantity += quantity
			s.recompute()
			return
		}
	}
	s.state.Items = append(s.state.Items, LineItem{
		ID:       uuid.NewString(),
		Status:   StatusPending,
		Product:  p,
		Quantity: quantity,
		Price:    p.Price,
	})
	s.recompute()
}

// Update applies an optimistic quantity change to an existing line. An
// unknown item ID or a quantity below 1 is a no-op; quantity zero means
// removal and is the orchestrator's job to redirect.
func (s *Store) Update(itemID string, quantity int) {
	if quantity < 1 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Items {
		if s.state.Items[i].ID == itemID {
			s.state.Items[i].Quantity = quantity
			s.recompute()
			return
		}
	}
}

// Remove drops the line with the given ID. Removing an absent ID is a
// no-op.
func (s *Store) Remove(itemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.Items {
		if s.state.Items[i].ID == itemID {
			s.state.Items = append(s.state.Items[:i], s.state.Items[i+1:]...)
			s.recompute()
			return
		}
	}
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Items = nil
	s.recompute()
}

// recompute must be called with the lock held after any items change.
func (s *Store) recompute() {
	s.state.Total, s.state.ItemCount = Totals(s.state.Items)
}
