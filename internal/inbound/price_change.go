package inbound

import (
	"context"

	"cartflow/internal/cart"
	"cartflow/internal/decision"

	"github.com/shopspring/decimal"
)

// priceChangeMessage is the external payload on the price-changes topic
// (spec §6's inbound broker topics table).
type priceChangeMessage struct {
	ProductUUID string          `json:"product_uuid"`
	OldPrice    decimal.Decimal `json:"old_price"`
	NewPrice    decimal.Decimal `json:"new_price"`
}

// NewPriceChangeHandler builds the price-changes topic handler (spec
// §4.7's PriceChangeTranslator): translate to ChangePriceCommand and run
// it through the decision engine.
func NewPriceChangeHandler(executor *decision.Executor) Handler {
	return Handler{
		Topic: "price-changes",
		Group: "cart",
		Unmarshal: func(payload []byte) (any, error) {
			return decodeJSON[priceChangeMessage](payload)
		},
		Handle: func(ctx context.Context, _ int64, message any) error {
			msg := message.(priceChangeMessage)
			productID, err := cart.ParseID(msg.ProductUUID)
			if err != nil {
				return err
			}
			cmd := cart.ChangePriceCommand{
				ProductID: productID.String(),
				OldPrice:  msg.OldPrice,
				NewPrice:  msg.NewPrice,
			}
			_, err = executor.Make(ctx, cart.ChangePriceDecision{Cmd: cmd})
			return err
		},
	}
}
