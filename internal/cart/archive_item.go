package cart

// ArchiveItemCommand removes one line item in response to a price change
// on its product. Unlike RemoveItem, a missing cart or item is not an
// error: archival must be safe to retry (SPEC_FULL.md §12's fire-and-forget
// bridge from CartsWithProductsProjection depends on this).
type ArchiveItemCommand struct {
	CartID              string
	ItemID              string
	PriceChangedEventID string
}

// Process implements spec §4.3.1's ArchiveItem decision, transcribed from
// original_source/src/domain/cart/archive_item.rs's `process`.
func (cmd ArchiveItemCommand) Process(state State) ([]domainEvent, error) {
	if state.Submitted {
		return nil, ErrCartCannotBeAltered
	}
	if !state.Exists || !state.HasItem(cmd.ItemID) {
		return nil, nil // idempotent no-op: already archived/removed, or cart gone
	}
	return []domainEvent{ItemArchived{
		CartID:              cmd.CartID,
		ItemID:              cmd.ItemID,
		PriceChangedEventID: cmd.PriceChangedEventID,
	}}, nil
}
