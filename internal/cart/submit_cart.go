package cart

import "github.com/shopspring/decimal"

// SubmitCartCommand closes out a cart, locking in its items' prices.
type SubmitCartCommand struct {
	CartID string
}

// Process implements spec §4.3.1's SubmitCart decision, transcribed from
// original_source/src/domain/cart/submit_cart.rs's `process`.
func (cmd SubmitCartCommand) Process(state State) ([]domainEvent, error) {
	if !state.Exists {
		return nil, ErrCartDoesNotExist
	}
	if state.ItemCount() == 0 {
		return nil, ErrCannotSubmitEmptyCart
	}
	if state.Submitted {
		return nil, ErrCannotSubmitCartTwice
	}

	products := state.orderedProducts()
	total := decimal.Zero
	for _, p := range products {
		total = total.Add(p.Price)
	}

	return []domainEvent{CartSubmitted{
		CartID:         cmd.CartID,
		OrderedProduct: products,
		TotalPrice:     total,
	}}, nil
}
