// Package memory implements an in-memory authoritative cart store with
// per-product stock accounting.
package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"cartflow/pkg/cart"
)

// Store provides an in-memory implementation of cart.Backend, keyed by
// user. Stock limits are enforced so out-of-stock rejection is a real
// behavior, not a stub.
type Store struct {
	mu       sync.Mutex
	products map[string]cart.Product
	stock    map[string]int
	carts    map[string][]cart.LineItem
}

// New creates an empty store.
func New() *Store {
	return &Store{
		products: make(map[string]cart.Product),
		stock:    make(map[string]int),
		carts:    make(map[string][]cart.LineItem),
	}
}

// AddProduct seeds the catalog with a product and its available stock.
func (s *Store) AddProduct(p cart.Product, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	s.stock[p.ID] = stock
}

// GetCart returns the user's cart. A user with no cart gets an empty one.
func (s *Store) GetCart(ctx context.Context, userID string) (cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartLocked(userID), nil
}

// AddItem adds quantity units of a product, merging into an existing
// line for the same product.
func (s *Store) AddItem(ctx context.Context, userID, productID string, quantity int) (cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return cart.Cart{}, cart.ErrProductNotFound
	}
	items := s.carts[userID]
	for i := range items {
		if items[i].Product.ID == productID {
			if items[i].Quantity+quantity > s.stock[productID] {
				return cart.Cart{}, cart.ErrOutOfStock
			}
			items[i].Quantity += quantity
			return s.cartLocked(userID), nil
		}
	}
	if quantity > s.stock[productID] {
		return cart.Cart{}, cart.ErrOutOfStock
	}
	s.carts[userID] = append(items, cart.LineItem{
		ID:       uuid.NewString(),
		Status:   cart.StatusConfirmed,
		Product:  p,
		Quantity: quantity,
		Price:    p.Price,
	})
	return s.cartLocked(userID), nil
}

// UpdateItem sets the quantity of an existing line. A quantity below 1
// removes the line instead; the store never holds a zero-quantity line.
func (s *Store) UpdateItem(ctx context.Context, userID, itemID string, quantity int) (cart.Cart, error) {
	if quantity < 1 {
		return s.RemoveItem(ctx, userID, itemID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.carts[userID]
	for i := range items {
		if items[i].ID == itemID {
			if quantity > s.stock[items[i].Product.ID] {
				return cart.Cart{}, cart.ErrOutOfStock
			}
			items[i].Quantity = quantity
			return s.cartLocked(userID), nil
		}
	}
	return cart.Cart{}, cart.ErrItemNotFound
}

// RemoveItem drops a line; an absent ID is not an error.
func (s *Store) RemoveItem(ctx context.Context, userID, itemID string) (cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.carts[userID]
	for i := range items {
		if items[i].ID == itemID {
			s.carts[userID] = append(items[:i], items[i+1:]...)
			break
		}
	}
	return s.cartLocked(userID), nil
}

// Clear empties the user's cart; clearing an empty cart is a no-op.
func (s *Store) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}

func (s *Store) cartLocked(userID string) cart.Cart {
	items := append([]cart.LineItem(nil), s.carts[userID]...)
	total, count := cart.Totals(items)
	return cart.Cart{Items: items, TotalAmount: total, TotalItems: count}
}
