// Package postgres implements the authoritative cart store on
// PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"cartflow/pkg/cart"
)

// Repository persists carts in PostgreSQL. The caller must ensure the
// database has the expected tables:
//
//	CREATE TABLE IF NOT EXISTS products (
//	    id TEXT PRIMARY KEY, name TEXT NOT NULL, image TEXT NOT NULL DEFAULT '',
//	    price DOUBLE PRECISION NOT NULL, stock INT NOT NULL);
//	CREATE TABLE IF NOT EXISTS cart_items (
//	    id TEXT PRIMARY KEY, user_id TEXT NOT NULL, product_id TEXT NOT NULL REFERENCES products(id),
//	    name TEXT NOT NULL, image TEXT NOT NULL DEFAULT '', price DOUBLE PRECISION NOT NULL,
//	    quantity INT NOT NULL CHECK (quantity >= 1),
//	    added_at TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    UNIQUE (user_id, product_id));
func New(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Repository implements cart.Backend.
type Repository struct {
	db *sql.DB
}

// GetCart retrieves the user's cart in insertion order.
func (r *Repository) GetCart(ctx context.Context, userID string) (cart.Cart, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, product_id, name, image, price, quantity FROM cart_items WHERE user_id=$1 ORDER BY added_at, id", userID)
	if err != nil {
		return cart.Cart{}, err
	}
	defer rows.Close()
	var items []cart.LineItem
	for rows.Next() {
		it := cart.LineItem{Status: cart.StatusConfirmed}
		if err := rows.Scan(&it.ID, &it.Product.ID, &it.Product.Name, &it.Product.Image, &it.Price, &it.Quantity); err != nil {
			return cart.Cart{}, err
		}
		it.Product.Price = it.Price
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return cart.Cart{}, err
	}
	total, count := cart.Totals(items)
	return cart.Cart{Items: items, TotalAmount: total, TotalItems: count}, nil
}

// AddItem inserts a new line or increments the existing one for the
// same product, after checking available stock.
func (r *Repository) AddItem(ctx context.Context, userID, productID string, quantity int) (cart.Cart, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return cart.Cart{}, err
	}
	defer tx.Rollback()

	var name, image string
	var price float64
	var stock int
	err = tx.QueryRowContext(ctx,
		"SELECT name, image, price, stock FROM products WHERE id=$1", productID).
		Scan(&name, &image, &price, &stock)
	if err == sql.ErrNoRows {
		return cart.Cart{}, cart.ErrProductNotFound
	}
	if err != nil {
		return cart.Cart{}, err
	}

	var existing int
	err = tx.QueryRowContext(ctx,
		"SELECT quantity FROM cart_items WHERE user_id=$1 AND product_id=$2", userID, productID).
		Scan(&existing)
	if err != nil && err != sql.ErrNoRows {
		return cart.Cart{}, err
	}
	if existing+quantity > stock {
		return cart.Cart{}, cart.ErrOutOfStock
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO cart_items (id, user_id, product_id, name, image, price, quantity)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (user_id, product_id)
		 DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`,
		uuid.NewString(), userID, productID, name, image, price, quantity)
	if err != nil {
		return cart.Cart{}, err
	}
	if err := tx.Commit(); err != nil {
		return cart.Cart{}, err
	}
	return r.GetCart(ctx, userID)
}

// UpdateItem sets the quantity of an existing line after checking
// stock. An unknown item ID yields cart.ErrItemNotFound.
func (r *Repository) UpdateItem(ctx context.Context, userID, itemID string, quantity int) (cart.Cart, error) {
	if quantity < 1 {
		return r.RemoveItem(ctx, userID, itemID)
	}
	var stock int
	err := r.db.QueryRowContext(ctx,
		`SELECT p.stock FROM cart_items ci JOIN products p ON p.id = ci.product_id
		 WHERE ci.id=$1 AND ci.user_id=$2`, itemID, userID).Scan(&stock)
	if err == sql.ErrNoRows {
		return cart.Cart{}, cart.ErrItemNotFound
	}
	if err != nil {
		return cart.Cart{}, err
	}
	if quantity > stock {
		return cart.Cart{}, cart.ErrOutOfStock
	}
	res, err := r.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity=$3 WHERE id=$1 AND user_id=$2", itemID, userID, quantity)
	if err != nil {
		return cart.Cart{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return cart.Cart{}, cart.ErrItemNotFound
	}
	return r.GetCart(ctx, userID)
}

// RemoveItem deletes a line; an absent ID is not an error.
func (r *Repository) RemoveItem(ctx context.Context, userID, itemID string) (cart.Cart, error) {
	if _, err := r.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE id=$1 AND user_id=$2", itemID, userID); err != nil {
		return cart.Cart{}, fmt.Errorf("remove item: %w", err)
	}
	return r.GetCart(ctx, userID)
}

// Clear deletes every line for the user.
func (r *Repository) Clear(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id=$1", userID)
	return err
}
