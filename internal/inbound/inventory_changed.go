package inbound

import (
	"context"

	"cartflow/internal/cart"
	"cartflow/internal/decision"
)

// inventoryChangedMessage is the external payload on the inventories
// topic (spec §6's inbound broker topics table).
type inventoryChangedMessage struct {
	ProductUUID string `json:"product_uuid"`
	Inventory   int    `json:"inventory"`
}

// NewInventoryChangedHandler builds the inventories topic handler (spec
// §4.7's InventoryChangedTranslator): translate to ChangeInventoryCommand
// and run it through the decision engine.
func NewInventoryChangedHandler(executor *decision.Executor) Handler {
	return Handler{
		Topic: "inventories",
		Group: "cart",
		Unmarshal: func(payload []byte) (any, error) {
			return decodeJSON[inventoryChangedMessage](payload)
		},
		Handle: func(ctx context.Context, _ int64, message any) error {
			msg := message.(inventoryChangedMessage)
			productID, err := cart.ParseID(msg.ProductUUID)
			if err != nil {
				return err
			}
			cmd := cart.ChangeInventoryCommand{
				ProductID: productID.String(),
				Inventory: msg.Inventory,
			}
			_, err = executor.Make(ctx, cart.ChangeInventoryDecision{Cmd: cmd})
			return err
		},
	}
}
