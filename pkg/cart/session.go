package cart

import "sync"

// Role classifies the active identity for cart eligibility.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Session identifies the active user.
type Session struct {
	ID   string
	User string
	Role Role
}

// Gate decides whether the active session may hold a cart. When the
// session transitions from eligible to ineligible the store is cleared
// immediately: a cart belonging to a no-longer-active identity must not
// remain visible.
type Gate struct {
	mu    sync.Mutex
	store *Store
	sess  *Session
}

// NewGate returns a gate with no active session.
func NewGate(store *Store) *Gate {
	return &Gate{store: store}
}

// Set replaces the active session; nil means logged out. On an
// eligible-to-ineligible transition the store is cleared synchronously;
// on the opposite transition the store is reset to await a fresh
// authoritative read.
func (g *Gate) Set(s *Session) {
	g.mu.Lock()
	defer g.mu.Unlock()
	was := eligible(g.sess)
	g.sess = s
	now := eligible(s)
	if was && !now {
		g.store.Clear()
	}
	if !was && now {
		g.store.Clear()
		g.store.SetLoading(true)
	}
}

// Enabled reports whether the active session may hold a cart.
func (g *Gate) Enabled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return eligible(g.sess)
}

// Check returns the active session if it may hold a cart, and the
// reason it may not otherwise: ErrNotAuthorized with no session,
// ErrForbidden with the wrong role.
func (g *Gate) Check() (Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sess == nil {
		return Session{}, ErrNotAuthorized
	}
	if g.sess.Role != RoleCustomer {
		return Session{}, ErrForbidden
	}
	return *g.sess, nil
}

func eligible(s *Session) bool {
	return s != nil && s.Role == RoleCustomer
}
