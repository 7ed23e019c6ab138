package cart

import (
	"context"
	"encoding/json"

	"cartflow/pkg/eventlog"

	"github.com/shopspring/decimal"
)

// LiveItem is one row of the live (non-persisted) cart-items view.
type LiveItem struct {
	ItemID      string
	ProductID   string
	Description string
	Image       string
	Price       decimal.Decimal
	Fingerprint string
}

// ProjectCartItemsLive folds the Cart stream for one cart directly from
// the log, without consulting the persisted cart_items projection
// (SPEC_FULL.md §12, serving the /{cart_id}/cartitems endpoint as distinct
// from /{cart_id}/cartitemsfromdb). Grounded on
// original_source/src/domain/cart/cart_items.rs's `cart_items_read_model`
// live fold.
func ProjectCartItemsLive(ctx context.Context, store eventlog.EventStore, cartID string) (items_ []LiveItem, total_ decimal.Decimal, exists bool, err error) {
	result, err := store.Read(ctx, eventlog.Cart(cartID), nil)
	if err != nil {
		return nil, decimal.Zero, false, err
	}
	if len(result.Events) == 0 {
		return nil, decimal.Zero, false, nil
	}

	items := map[string]LiveItem{}
	var order []string
	for _, event := range result.Events {
		switch event.Type {
		case TypeCartItemAdded:
			var e CartItemAdded
			if err := json.Unmarshal(event.Data, &e); err != nil {
				continue
			}
			if _, exists := items[e.ItemID]; !exists {
				order = append(order, e.ItemID)
			}
			fp := e.Fingerprint
			if fp == "" {
				fp = DefaultFingerprint
			}
			items[e.ItemID] = LiveItem{
				ItemID:      e.ItemID,
				ProductID:   e.ProductID,
				Description: e.Description,
				Image:       e.Image,
				Price:       e.Price,
				Fingerprint: fp,
			}
		case TypeCartItemRemoved:
			var e CartItemRemoved
			if err := json.Unmarshal(event.Data, &e); err == nil {
				delete(items, e.ItemID)
			}
		case TypeItemArchived:
			var e ItemArchived
			if err := json.Unmarshal(event.Data, &e); err == nil {
				delete(items, e.ItemID)
			}
		case TypeCartCleared:
			items = map[string]LiveItem{}
			order = nil
		}
	}

	out := make([]LiveItem, 0, len(items))
	total := decimal.Zero
	for _, id := range order {
		if item, ok := items[id]; ok {
			out = append(out, item)
			total = total.Add(item.Price)
		}
	}
	return out, total, true, nil
}
