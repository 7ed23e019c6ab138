package cart

import "github.com/shopspring/decimal"

// MaxItemsPerCart is the cart capacity invariant (spec §3, §8).
const MaxItemsPerCart = 3

// AddItemCommand adds one line item to a cart, creating the cart lazily
// on its first item.
type AddItemCommand struct {
	CartID      string
	ItemID      string
	ProductID   string
	Description string
	Image       string
	Price       decimal.Decimal
	Fingerprint string
}

// Process implements spec §4.3.1's AddItem decision, transcribed from
// original_source/src/domain/cart/add_item.rs's `process`.
func (cmd AddItemCommand) Process(state State) ([]domainEvent, error) {
	if state.Submitted {
		return nil, ErrCartCannotBeAltered
	}
	if state.ItemCount() >= MaxItemsPerCart {
		return nil, ErrCannotAddItemCartFull
	}

	var events []domainEvent
	if !state.Exists {
		events = append(events, CartCreated{CartID: cmd.CartID})
	}
	events = append(events, CartItemAdded{
		CartID:      cmd.CartID,
		ItemID:      cmd.ItemID,
		ProductID:   cmd.ProductID,
		Description: cmd.Description,
		Image:       cmd.Image,
		Price:       cmd.Price,
		Fingerprint: cmd.Fingerprint,
	})
	return events, nil
}
