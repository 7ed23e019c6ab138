package readmodel

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// CartExists reports whether cartID has a row in the cart table,
// serving the /{cart_id}/cartitemsfromdb endpoint's existence check
// (cart_items_from_db.rs reads the cart table before the cart_items
// projection for exactly this reason).
func CartExists(ctx context.Context, pool *pgxpool.Pool, cartID string) (bool, error) {
	var found string
	err := pool.QueryRow(ctx, `SELECT cart_id FROM cart WHERE cart_id = $1`, cartID).Scan(&found)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// PersistedItem is one row of the persisted cart_items table, returned by
// ListCartItems for the /{cart_id}/cartitemsfromdb endpoint.
type PersistedItem struct {
	ItemID      string          `json:"item_id"`
	ProductID   string          `json:"product_id"`
	Description string          `json:"description"`
	Image       string          `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Fingerprint string          `json:"fingerprint"`
}

// ListCartItems reads the persisted cart_items projection for cartID, as
// distinct from cart.ProjectCartItemsLive's direct-from-log fold.
func ListCartItems(ctx context.Context, pool *pgxpool.Pool, cartID string) ([]PersistedItem, decimal.Decimal, error) {
	rows, err := pool.Query(ctx, `
		SELECT item_id, product_id, description, image, price, fingerprint
		FROM cart_items WHERE cart_id = $1
	`, cartID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	defer rows.Close()

	var items []PersistedItem
	total := decimal.Zero
	for rows.Next() {
		var item PersistedItem
		var priceStr string
		if err := rows.Scan(&item.ItemID, &item.ProductID, &item.Description, &item.Image, &priceStr, &item.Fingerprint); err != nil {
			return nil, decimal.Zero, err
		}
		price, err := decimal.NewFromString(priceStr)
		if err != nil {
			return nil, decimal.Zero, err
		}
		item.Price = price
		items = append(items, item)
		total = total.Add(price)
	}
	if err := rows.Err(); err != nil {
		return nil, decimal.Zero, err
	}
	return items, total, nil
}

// ProductCart is one row of the carts_with_products reverse index.
type ProductCart struct {
	CartID string `json:"cart_id"`
	ItemID string `json:"item_id"`
}

// FindCartsWithProduct serves the /cartswithproducts/{product_id} endpoint.
func FindCartsWithProduct(ctx context.Context, pool *pgxpool.Pool, productID string) ([]ProductCart, error) {
	rows, err := pool.Query(ctx, `
		SELECT cart_id, item_id FROM carts_with_products WHERE product_id = $1
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ProductCart
	for rows.Next() {
		var pc ProductCart
		if err := rows.Scan(&pc.CartID, &pc.ItemID); err != nil {
			return nil, err
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

// Inventory is one row of the inventories projection.
type Inventory struct {
	ProductID string `json:"product_id"`
	Inventory int    `json:"inventory"`
}

// FindInventory serves the /inventories/{product_id} endpoint. Returns
// (zero, false, nil) when the product has never reported an inventory.
func FindInventory(ctx context.Context, pool *pgxpool.Pool, productID string) (Inventory, bool, error) {
	var inv Inventory
	inv.ProductID = productID
	err := pool.QueryRow(ctx, `
		SELECT inventory FROM inventories WHERE product_id = $1
	`, productID).Scan(&inv.Inventory)
	if err == pgx.ErrNoRows {
		return Inventory{}, false, nil
	}
	if err != nil {
		return Inventory{}, false, err
	}
	return inv, true, nil
}
