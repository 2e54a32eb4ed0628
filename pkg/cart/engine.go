package cart

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"cartflow/pkg/logger"
)

// Options configure an Engine. Zero values fall back to defaults.
type Options struct {
	// Freshness bounds how long an authoritative read stays valid
	// before a view triggers another fetch.
	Freshness time.Duration

	// Timeout bounds each remote call; expiry counts as a write
	// failure and forces reconciliation.
	Timeout time.Duration
}

const (
	defaultFreshness = 5 * time.Minute
	defaultTimeout   = 10 * time.Second
)

// Flags report which mutations currently have a remote write in
// flight, so calling UI can disable the matching controls.
type Flags struct {
	Adding   bool `json:"isAdding"`
	Updating bool `json:"isUpdating"`
	Removing bool `json:"isRemoving"`
	Clearing bool `json:"isClearing"`
}

// Engine coordinates the local cart state with the authoritative
// backend. Each mutation applies its optimistic transition first, so
// readers see the change with no round-trip latency, then issues the
// remote write; success replaces local state with the server's answer,
// failure forces a reconciling refresh that discards the guess.
//
// Recovery is always by reconciliation, never by snapshot/restore, and
// concurrent remote writes deliberately race: whichever acknowledgment
// arrives last determines final state (last-response-wins). The
// authoritative store is the real arbiter at checkout.
type Engine struct {
	store   *Store
	gate    *Gate
	backend Backend
	log     *logger.Logger

	freshness time.Duration
	timeout   time.Duration

	mu        sync.Mutex
	fetchedAt time.Time

	adding   atomic.Int32
	updating atomic.Int32
	removing atomic.Int32
	clearing atomic.Int32
}

// NewEngine builds an engine around the given authoritative backend.
// The engine owns its store and gate; create one per session and
// discard it at session end.
func NewEngine(backend Backend, log *logger.Logger, opts Options) *Engine {
	if opts.Freshness == 0 {
		opts.Freshness = defaultFreshness
	}
	if opts.Timeout == 0 {
		opts.Timeout = defaultTimeout
	}
	store := NewStore()
	return &Engine{
		store:     store,
		gate:      NewGate(store),
		backend:   backend,
		log:       log,
		freshness: opts.Freshness,
		timeout:   opts.Timeout,
	}
}

// SetSession installs the active session (nil on logout) and resets
// the freshness clock, since cached data never survives an identity
// change.
func (e *Engine) SetSession(s *Session) {
	e.gate.Set(s)
	e.mu.Lock()
	e.fetchedAt = time.Time{}
	e.mu.Unlock()
}

// Gate exposes the session gate.
func (e *Engine) Gate() *Gate { return e.gate }

// State returns the current local state without touching the backend.
func (e *Engine) State() State { return e.store.Snapshot() }

// Flags reports per-operation in-flight status.
func (e *Engine) Flags() Flags {
	return Flags{
		Adding:   e.adding.Load() > 0,
		Updating: e.updating.Load() > 0,
		Removing: e.removing.Load() > 0,
		Clearing: e.clearing.Load() > 0,
	}
}

// View returns the cart state, first refreshing from the backend if
// the freshness window has lapsed. On refresh failure the last known
// state is returned along with the error.
func (e *Engine) View(ctx context.Context) (State, error) {
	err := e.refresh(ctx, false)
	return e.store.Snapshot(), err
}

// Refresh fetches the authoritative cart if the freshness window has
// lapsed. A failed fetch leaves the current state untouched.
func (e *Engine) Refresh(ctx context.Context) error {
	return e.refresh(ctx, false)
}

func (e *Engine) refresh(ctx context.Context, force bool) error {
	if !force {
		e.mu.Lock()
		fresh := !e.fetchedAt.IsZero() && time.Since(e.fetchedAt) < e.freshness
		e.mu.Unlock()
		if fresh {
			return nil
		}
	}
	sess, err := e.gate.Check()
	if err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	c, err := e.backend.GetCart(cctx, sess.User)
	if err != nil {
		return fmt.Errorf("get cart: %w", err)
	}
	e.confirm(c)
	return nil
}

// AddToCart adds quantity units of the product, merging into an
// existing line for the same product rather than duplicating it.
func (e *Engine) AddToCart(ctx context.Context, p Product, quantity int) error {
	sess, err := e.gate.Check()
	if err != nil {
		return err
	}
	if quantity < 1 {
		return fmt.Errorf("add %q: quantity %d is not positive", p.ID, quantity)
	}
	e.adding.Add(1)
	defer e.adding.Add(-1)

	e.store.Add(p, quantity)

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	c, err := e.backend.AddItem(cctx, sess.User, p.ID, quantity)
	if err != nil {
		e.invalidate(ctx)
		return fmt.Errorf("add %q: %w", p.ID, err)
	}
	e.confirm(c)
	return nil
}

// UpdateItem sets the quantity of an existing line. A quantity of zero
// or less means the line should not exist and is delegated to
// RemoveItem rather than sent as an update.
func (e *Engine) UpdateItem(ctx context.Context, itemID string, quantity int) error {
	if quantity <= 0 {
		return e.RemoveItem(ctx, itemID)
	}
	sess, err := e.gate.Check()
	if err != nil {
		return err
	}
	e.updating.Add(1)
	defer e.updating.Add(-1)

	e.store.Update(itemID, quantity)

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	c, err := e.backend.UpdateItem(cctx, sess.User, itemID, quantity)
	if err != nil {
		e.invalidate(ctx)
		return fmt.Errorf("update item %q: %w", itemID, err)
	}
	e.confirm(c)
	return nil
}

// RemoveItem drops a line from the cart. Removing an ID that is
// already absent succeeds with no observable change.
func (e *Engine) RemoveItem(ctx context.Context, itemID string) error {
	sess, err := e.gate.Check()
	if err != nil {
		return err
	}
	e.removing.Add(1)
	defer e.removing.Add(-1)

	e.store.Remove(itemID)

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	c, err := e.backend.RemoveItem(cctx, sess.User, itemID)
	if err != nil {
		e.invalidate(ctx)
		return fmt.Errorf("remove item %q: %w", itemID, err)
	}
	e.confirm(c)
	return nil
}

// Clear empties the cart. Clearing an already-empty cart succeeds with
// no observable change.
func (e *Engine) Clear(ctx context.Context) error {
	sess, err := e.gate.Check()
	if err != nil {
		return err
	}
	e.clearing.Add(1)
	defer e.clearing.Add(-1)

	e.store.Clear()

	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	if err := e.backend.Clear(cctx, sess.User); err != nil {
		e.invalidate(ctx)
		return fmt.Errorf("clear cart: %w", err)
	}
	e.confirm(Cart{})
	return nil
}

// confirm installs an authoritative cart and restarts the freshness
// window.
func (e *Engine) confirm(c Cart) {
	e.store.SetCart(c)
	e.mu.Lock()
	e.fetchedAt = time.Now()
	e.mu.Unlock()
}

// invalidate discards optimistic state after a failed write by forcing
// a reconciling fetch. If that fetch also fails the previous state
// stands; the next view will retry.
func (e *Engine) invalidate(ctx context.Context) {
	if err := e.refresh(ctx, true); err != nil {
		if e.log != nil {
			e.log.Error(ctx, "cart reconciliation failed", "error", err)
		}
		e.mu.Lock()
		e.fetchedAt = time.Time{}
		e.mu.Unlock()
	}
}
