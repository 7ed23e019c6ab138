// Package readmodel implements the four concrete C5 projections (spec
// §4.5): cart-items, carts-with-products, inventories, and the
// cart-submitted-to-queue bridge. Each is a projection.Listener whose
// Handle is idempotent under replay: the read-model tables via a
// last_event_id guard, the bridge via the queue's (task_type,
// triggering_event) uniqueness.
package readmodel

import (
	"context"
	"encoding/json"

	"cartflow/internal/cart"
	"cartflow/internal/projection"
	"cartflow/pkg/eventlog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewInventoriesListener builds the InventoriesProjection (spec §4.5):
// upsert on InventoryChanged with a replay guard. Grounded on
// original_source/src/domain/cart/inventories.rs's
// InventoriesReadModelProjection.
func NewInventoriesListener(pool *pgxpool.Pool) projection.Listener {
	return projection.Listener{
		ID:    "inventories",
		Query: eventlog.Inventory(""),
		Handle: func(ctx context.Context, event eventlog.Event) error {
			var e cart.InventoryChanged
			if err := json.Unmarshal(event.Data, &e); err != nil {
				return nil // malformed event payload cannot be fixed by retrying
			}
			_, err := pool.Exec(ctx, `
				INSERT INTO inventories (product_id, inventory, last_event_id)
				VALUES ($1, $2, $3)
				ON CONFLICT (product_id) DO UPDATE SET
					inventory = $2,
					last_event_id = $3
				WHERE inventories.last_event_id < $3
			`, e.ProductID, e.Inventory, event.Position)
			return err
		},
	}
}
