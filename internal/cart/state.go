package cart

import (
	"encoding/json"
	"sort"

	"cartflow/pkg/eventlog"

	"github.com/shopspring/decimal"
)

// itemRecord is what a decision needs to remember about one line item:
// enough to reconstruct SubmitCart's ordered product list without a
// second read of current pricing (price is locked at add-time, per
// original_source/src/domain/cart/submit_cart.rs).
type itemRecord struct {
	ProductID string
	Price     decimal.Decimal
}

// State is the fold state shared by every cart command's state_query
// (spec §4.3.1's per-command field tables are all projections of this
// one fold; ChangePrice/ChangeInventory never read it).
type State struct {
	CartID    string
	Exists    bool
	Submitted bool
	Items     map[string]itemRecord // item_id -> (product_id, price)
}

// NewState returns the zero fold state for cartID.
func NewState(cartID string) State {
	return State{CartID: cartID, Items: map[string]itemRecord{}}
}

// ItemCount is the number of items currently in the cart (spec's
// item_count fold field); saturating subtraction is never needed because
// Removed/Archived are only ever emitted for items known to exist.
func (s State) ItemCount() int { return len(s.Items) }

// Mutate applies one persisted event to the fold state. Unrecognized
// event types are ignored: the Cart stream by construction only ever
// carries the six kinds handled here.
func (s State) Mutate(event eventlog.Event) State {
	switch event.Type {
	case TypeCartCreated:
		s.Exists = true
	case TypeCartItemAdded:
		var e CartItemAdded
		if err := json.Unmarshal(event.Data, &e); err == nil {
			s.Items[e.ItemID] = itemRecord{ProductID: e.ProductID, Price: e.Price}
		}
	case TypeCartItemRemoved:
		var e CartItemRemoved
		if err := json.Unmarshal(event.Data, &e); err == nil {
			delete(s.Items, e.ItemID)
		}
	case TypeItemArchived:
		var e ItemArchived
		if err := json.Unmarshal(event.Data, &e); err == nil {
			delete(s.Items, e.ItemID)
		}
	case TypeCartCleared:
		s.Items = map[string]itemRecord{}
	case TypeCartSubmitted:
		s.Submitted = true
	}
	return s
}

// orderedProducts returns the cart's line items as a deterministic,
// item-id-sorted list of {product_id, price}, consumed by SubmitCart.
func (s State) orderedProducts() []OrderedProduct {
	ids := make([]string, 0, len(s.Items))
	for id := range s.Items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]OrderedProduct, len(ids))
	for i, id := range ids {
		rec := s.Items[id]
		out[i] = OrderedProduct{ProductID: rec.ProductID, Price: rec.Price}
	}
	return out
}

// HasItem reports whether itemID is currently present in the cart.
func (s State) HasItem(itemID string) bool {
	_, ok := s.Items[itemID]
	return ok
}
