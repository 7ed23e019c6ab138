package readmodel

import (
	"context"
	"encoding/json"

	"cartflow/internal/cart"
	"cartflow/internal/projection"
	"cartflow/pkg/eventlog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewCartItemsListener builds the CartItemsProjection (spec §4.5): the
// persisted twin of cart.ProjectCartItemsLive, serving
// /{cart_id}/cartitemsfromdb. No direct Rust source shows this table's
// SQL (cart_items.rs only implements the live fold); the upsert/delete-
// with-guard idiom is grounded on the structurally identical
// inventories.rs and carts_with_products.rs projections instead.
func NewCartItemsListener(pool *pgxpool.Pool) projection.Listener {
	return projection.Listener{
		ID:    "cart_items",
		Query: eventlog.Cart(""),
		Handle: func(ctx context.Context, event eventlog.Event) error {
			switch event.Type {
			case cart.TypeCartCreated:
				var e cart.CartCreated
				if err := json.Unmarshal(event.Data, &e); err != nil {
					return nil
				}
				return insertCart(ctx, pool, e.CartID)
			case cart.TypeCartItemAdded:
				var e cart.CartItemAdded
				if err := json.Unmarshal(event.Data, &e); err != nil {
					return nil
				}
				fp := e.Fingerprint
				if fp == "" {
					fp = cart.DefaultFingerprint
				}
				return upsertCartItem(ctx, pool, e.CartID, e.ItemID, e.ProductID, e.Description, e.Image, e.Price.String(), fp, event.Position)
			case cart.TypeCartItemRemoved:
				var e cart.CartItemRemoved
				if err := json.Unmarshal(event.Data, &e); err != nil {
					return nil
				}
				return deleteCartItem(ctx, pool, e.CartID, e.ItemID, event.Position)
			case cart.TypeItemArchived:
				var e cart.ItemArchived
				if err := json.Unmarshal(event.Data, &e); err != nil {
					return nil
				}
				return deleteCartItem(ctx, pool, e.CartID, e.ItemID, event.Position)
			case cart.TypeCartCleared:
				var e cart.CartCleared
				if err := json.Unmarshal(event.Data, &e); err != nil {
					return nil
				}
				return deleteAllCartItems(ctx, pool, e.CartID, event.Position)
			default:
				return nil
			}
		},
	}
}

func insertCart(ctx context.Context, pool *pgxpool.Pool, cartID string) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO cart (cart_id) VALUES ($1)
		ON CONFLICT (cart_id) DO NOTHING
	`, cartID)
	return err
}

func upsertCartItem(ctx context.Context, pool *pgxpool.Pool, cartID, itemID, productID, description, image, price, fingerprint string, lastEventID int64) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO cart_items (cart_id, item_id, product_id, description, image, price, fingerprint, last_event_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (cart_id, item_id) DO UPDATE SET
			product_id = $3,
			description = $4,
			image = $5,
			price = $6,
			fingerprint = $7,
			last_event_id = $8
		WHERE cart_items.last_event_id < $8
	`, cartID, itemID, productID, description, image, price, fingerprint, lastEventID)
	return err
}

func deleteCartItem(ctx context.Context, pool *pgxpool.Pool, cartID, itemID string, lastEventID int64) error {
	_, err := pool.Exec(ctx, `
		DELETE FROM cart_items WHERE cart_id = $1 AND item_id = $2 AND last_event_id < $3
	`, cartID, itemID, lastEventID)
	return err
}

func deleteAllCartItems(ctx context.Context, pool *pgxpool.Pool, cartID string, lastEventID int64) error {
	_, err := pool.Exec(ctx, `
		DELETE FROM cart_items WHERE cart_id = $1 AND last_event_id < $2
	`, cartID, lastEventID)
	return err
}
