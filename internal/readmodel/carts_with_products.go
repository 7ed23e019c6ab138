package readmodel

import (
	"context"
	"encoding/json"
	"strconv"

	"cartflow/internal/cart"
	"cartflow/internal/decision"
	"cartflow/internal/projection"
	"cartflow/pkg/eventlog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// NewCartsWithProductsListener builds the CartsWithProductsProjection
// (spec §4.5): a reverse index of (cart, item, product), kept in sync
// with every cart mutation plus a fire-and-forget archival bridge on
// PriceChanged. Grounded on
// original_source/src/domain/cart/carts_with_products.rs.
func NewCartsWithProductsListener(pool *pgxpool.Pool, executor *decision.Executor, log *logrus.Entry) projection.Listener {
	log = log.WithField("listener", "carts_with_products")
	cartQuery := eventlog.Cart("")
	query := eventlog.Query{Items: append(append([]eventlog.QueryItem{}, cartQuery.Items...), eventlog.Pricing("").Items...)}

	return projection.Listener{
		ID:    "carts_with_products",
		Query: query,
		Handle: func(ctx context.Context, event eventlog.Event) error {
			switch event.Type {
			case cart.TypeCartCreated:
				return nil
			case cart.TypeCartItemAdded:
				var e cart.CartItemAdded
				if err := json.Unmarshal(event.Data, &e); err != nil {
					return nil
				}
				return save(ctx, pool, e.CartID, e.ItemID, e.ProductID, event.Position)
			case cart.TypeCartItemRemoved:
				var e cart.CartItemRemoved
				if err := json.Unmarshal(event.Data, &e); err != nil {
					return nil
				}
				return deleteByItemID(ctx, pool, e.CartID, e.ItemID, event.Position)
			case cart.TypeItemArchived:
				var e cart.ItemArchived
				if err := json.Unmarshal(event.Data, &e); err != nil {
					return nil
				}
				return deleteByItemID(ctx, pool, e.CartID, e.ItemID, event.Position)
			case cart.TypeCartCleared:
				var e cart.CartCleared
				if err := json.Unmarshal(event.Data, &e); err != nil {
					return nil
				}
				return deleteByCartID(ctx, pool, e.CartID, event.Position)
			case cart.TypeCartSubmitted:
				var e cart.CartSubmitted
				if err := json.Unmarshal(event.Data, &e); err != nil {
					return nil
				}
				return deleteByCartID(ctx, pool, e.CartID, event.Position)
			case cart.TypePriceChanged:
				var e cart.PriceChanged
				if err := json.Unmarshal(event.Data, &e); err != nil {
					return nil
				}
				archiveProductProcessor(ctx, pool, executor, e.ProductID, event.Position, log)
				return nil
			default:
				return nil
			}
		},
	}
}

func save(ctx context.Context, pool *pgxpool.Pool, cartID, itemID, productID string, lastEventID int64) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO carts_with_products (cart_id, item_id, product_id, last_event_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, item_id, product_id) DO UPDATE SET
			last_event_id = $4
		WHERE carts_with_products.last_event_id < $4
	`, cartID, itemID, productID, lastEventID)
	return err
}

func deleteByCartID(ctx context.Context, pool *pgxpool.Pool, cartID string, lastEventID int64) error {
	_, err := pool.Exec(ctx, `
		DELETE FROM carts_with_products WHERE cart_id = $1 AND last_event_id < $2
	`, cartID, lastEventID)
	return err
}

func deleteByItemID(ctx context.Context, pool *pgxpool.Pool, cartID, itemID string, lastEventID int64) error {
	_, err := pool.Exec(ctx, `
		DELETE FROM carts_with_products WHERE cart_id = $1 AND item_id = $2 AND last_event_id < $3
	`, cartID, itemID, lastEventID)
	return err
}

// archiveProductProcessor fires one ArchiveItemDecision per (cart, item)
// pair holding productID, logging per-item errors and a batch summary.
// It never returns an error to the projection runtime: archival is
// opportunistic and a missed item is corrected the next time the
// product's price changes, per SPEC_FULL.md §12.
func archiveProductProcessor(ctx context.Context, pool *pgxpool.Pool, executor *decision.Executor, productID string, triggeringEventID int64, log *logrus.Entry) {
	rows, err := pool.Query(ctx, `
		SELECT cart_id, item_id FROM carts_with_products WHERE product_id = $1
	`, productID)
	if err != nil {
		log.WithError(err).WithField("product_id", productID).Error("archiveProductProcessor: failed to look up carts for product")
		return
	}
	defer rows.Close()

	type pair struct{ cartID, itemID string }
	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.cartID, &p.itemID); err != nil {
			continue
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		log.WithError(err).WithField("product_id", productID).Error("archiveProductProcessor: row iteration failed")
		return
	}

	errorCount := 0
	for _, p := range pairs {
		cmd := cart.ArchiveItemCommand{
			CartID:              p.cartID,
			ItemID:              p.itemID,
			PriceChangedEventID: strconv.FormatInt(triggeringEventID, 10),
		}
		if _, err := executor.Make(ctx, cart.ArchiveItemDecision{Cmd: cmd}); err != nil {
			log.WithError(err).WithField("cart_id", p.cartID).WithField("item_id", p.itemID).
				Error("archiveProductProcessor: ArchiveItemCommand failed")
			errorCount++
		}
	}
	if errorCount > 0 {
		log.WithField("product_id", productID).WithField("error_count", errorCount).
			Error("archiveProductProcessor: errors archiving product")
	}
}
