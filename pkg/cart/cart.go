// Package cart implements the storefront cart engine: a local cache of
// the authoritative cart that applies user mutations optimistically and
// reconciles with the remote store in the background.
package cart

import (
	"context"
	"errors"
)

// Product is a read-only snapshot of a catalog entry, captured at the
// moment the product is added to the cart. The cart never writes back
// to the catalog.
type Product struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Image string  `json:"image,omitempty"`
}

// ItemStatus tracks whether a line item has been acknowledged by the
// authoritative store.
type ItemStatus string

const (
	// StatusPending marks a line created optimistically on the client;
	// its ID is locally generated and not known to the server.
	StatusPending ItemStatus = "pending"

	// StatusConfirmed marks a line whose ID was issued by the server.
	StatusConfirmed ItemStatus = "confirmed"
)

// LineItem is one product entry in the cart. Price is the unit price
// captured at add time, not the live catalog price.
type LineItem struct {
	ID       string     `json:"id"`
	Status   ItemStatus `json:"status"`
	Product  Product    `json:"product"`
	Quantity int        `json:"quantity"`
	Price    float64    `json:"price"`
}

// Cart is the authoritative read shape returned by the remote store.
type Cart struct {
	Items       []LineItem `json:"items"`
	TotalAmount float64    `json:"totalAmount"`
	TotalItems  int        `json:"totalItems"`
}

// Backend defines the authoritative cart store. Every write returns the
// full resulting cart so the caller can replace its local state
// wholesale. RemoveItem and Clear are idempotent.
type Backend interface {
	GetCart(ctx context.Context, userID string) (Cart, error)
	AddItem(ctx context.Context, userID, productID string, quantity int) (Cart, error)
	UpdateItem(ctx context.Context, userID, itemID string, quantity int) (Cart, error)
	RemoveItem(ctx context.Context, userID, itemID string) (Cart, error)
	Clear(ctx context.Context, userID string) error
}

var (
	// ErrNotAuthorized indicates no active session.
	ErrNotAuthorized = errors.New("no active session")

	// ErrForbidden indicates the session's role may not hold a cart.
	ErrForbidden = errors.New("role may not hold a cart")

	// ErrOutOfStock indicates the requested quantity exceeds available stock.
	ErrOutOfStock = errors.New("insufficient stock")

	// ErrProductNotFound indicates an unknown product ID.
	ErrProductNotFound = errors.New("product not found")

	// ErrItemNotFound indicates the cart item does not exist server-side.
	ErrItemNotFound = errors.New("cart item not found")
)
