package cart

import "github.com/shopspring/decimal"

// ChangePriceCommand is stateless: it always emits PriceChanged regardless
// of any prior state, per spec §4.3.1.
type ChangePriceCommand struct {
	ProductID string
	OldPrice  decimal.Decimal
	NewPrice  decimal.Decimal
}

// Process implements spec §4.3.1's ChangePrice decision. Grounded on
// original_source/src/domain/cart/change_price.rs's `process`, which has
// no preconditions at all.
func (cmd ChangePriceCommand) Process(State) ([]domainEvent, error) {
	return []domainEvent{PriceChanged{
		ProductID: cmd.ProductID,
		OldPrice:  cmd.OldPrice,
		NewPrice:  cmd.NewPrice,
	}}, nil
}
