package cart

// ChangeInventoryCommand is stateless: it always emits InventoryChanged,
// per spec §4.3.1.
type ChangeInventoryCommand struct {
	ProductID string
	Inventory int
}

// Process implements spec §4.3.1's ChangeInventory decision. Grounded on
// original_source/src/domain/cart/change_inventory.rs's `process`.
func (cmd ChangeInventoryCommand) Process(State) ([]domainEvent, error) {
	return []domainEvent{InventoryChanged{
		ProductID: cmd.ProductID,
		Inventory: cmd.Inventory,
	}}, nil
}
