package memory

import (
	"context"
	"errors"
	"testing"

	"cartflow/pkg/cart"
)

func seeded() *Store {
	s := New()
	s.AddProduct(cart.Product{ID: "P1", Name: "Widget", Price: 100}, 5)
	s.AddProduct(cart.Product{ID: "P2", Name: "Gadget", Price: 10}, 2)
	return s
}

func TestAddItemMergesByProduct(t *testing.T) {
	ctx := context.Background()
	s := seeded()

	if _, err := s.AddItem(ctx, "alice", "P1", 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	c, err := s.AddItem(ctx, "alice", "P1", 3)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(c.Items) != 1 || c.Items[0].Quantity != 5 {
		t.Fatalf("expected one merged line with quantity 5, got %+v", c.Items)
	}
	if c.TotalAmount != 500 || c.TotalItems != 5 {
		t.Fatalf("expected (500,5), got (%v,%d)", c.TotalAmount, c.TotalItems)
	}
}

func TestAddItemStockLimit(t *testing.T) {
	ctx := context.Background()
	s := seeded()

	if _, err := s.AddItem(ctx, "alice", "P2", 3); !errors.Is(err, cart.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	if _, err := s.AddItem(ctx, "alice", "P2", 2); err != nil {
		t.Fatalf("add within stock: %v", err)
	}
	if _, err := s.AddItem(ctx, "alice", "P2", 1); !errors.Is(err, cart.ErrOutOfStock) {
		t.Fatalf("expected merge to respect stock, got %v", err)
	}
}

func TestAddItemUnknownProduct(t *testing.T) {
	ctx := context.Background()
	s := seeded()
	if _, err := s.AddItem(ctx, "alice", "nope", 1); !errors.Is(err, cart.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestUpdateItem(t *testing.T) {
	ctx := context.Background()
	s := seeded()
	c, err := s.AddItem(ctx, "alice", "P1", 2)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	id := c.Items[0].ID

	c, err = s.UpdateItem(ctx, "alice", id, 4)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if c.Items[0].Quantity != 4 {
		t.Fatalf("expected quantity 4, got %d", c.Items[0].Quantity)
	}

	if _, err := s.UpdateItem(ctx, "alice", id, 6); !errors.Is(err, cart.ErrOutOfStock) {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}
	if _, err := s.UpdateItem(ctx, "alice", "missing", 1); !errors.Is(err, cart.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}

	// Quantity below 1 removes the line rather than storing a zero.
	c, err = s.UpdateItem(ctx, "alice", id, 0)
	if err != nil {
		t.Fatalf("update to zero: %v", err)
	}
	if len(c.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", c.Items)
	}
}

func TestRemoveAndClearAreIdempotent(t *testing.T) {
	ctx := context.Background()
	s := seeded()
	c, err := s.AddItem(ctx, "alice", "P1", 1)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	id := c.Items[0].ID

	if _, err := s.RemoveItem(ctx, "alice", id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	c, err = s.RemoveItem(ctx, "alice", id)
	if err != nil {
		t.Fatalf("second remove: %v", err)
	}
	if len(c.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", c.Items)
	}

	if err := s.Clear(ctx, "alice"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := s.Clear(ctx, "alice"); err != nil {
		t.Fatalf("clear of empty cart: %v", err)
	}
}

func TestCartsAreIsolatedByUser(t *testing.T) {
	ctx := context.Background()
	s := seeded()
	if _, err := s.AddItem(ctx, "alice", "P1", 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	c, err := s.GetCart(ctx, "bob")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(c.Items) != 0 {
		t.Fatalf("bob's cart must be empty, got %+v", c.Items)
	}
}
