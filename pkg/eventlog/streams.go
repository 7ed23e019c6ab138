package eventlog

// Named stream predicates (spec §3). A stream is just a Query; these
// constructors give the cart-domain event kinds their canonical grouping
// so the rest of the codebase never repeats the event-kind lists.
var (
	cartEventTypes = []string{
		"CartCreated", "CartItemAdded", "CartItemRemoved",
		"CartCleared", "ItemArchived", "CartSubmitted",
	}
)

// Cart returns the stream of all events affecting cart state, optionally
// scoped to a single cart id.
func Cart(cartID string) Query {
	if cartID == "" {
		return NewQueryFromItems(NewQueryItem(cartEventTypes, nil))
	}
	return NewQueryFromItems(NewQueryItem(cartEventTypes, []Tag{NewTag("cart_id", cartID)}))
}

// Pricing returns the stream of PriceChanged events, optionally scoped to
// a single product id.
func Pricing(productID string) Query {
	tags := []Tag(nil)
	if productID != "" {
		tags = []Tag{NewTag("product_id", productID)}
	}
	return NewQuery(tags, "PriceChanged")
}

// Inventory returns the stream of InventoryChanged events, optionally
// scoped to a single product id.
func Inventory(productID string) Query {
	tags := []Tag(nil)
	if productID != "" {
		tags = []Tag{NewTag("product_id", productID)}
	}
	return NewQuery(tags, "InventoryChanged")
}

// Submitted returns the stream of CartSubmitted events, optionally scoped
// to a single cart id.
func Submitted(cartID string) Query {
	tags := []Tag(nil)
	if cartID != "" {
		tags = []Tag{NewTag("cart_id", cartID)}
	}
	return NewQuery(tags, "CartSubmitted")
}

// Published returns the stream of CartPublished/CartPublicationFailed
// events, optionally scoped to a single cart id.
func Published(cartID string) Query {
	tags := []Tag(nil)
	if cartID != "" {
		tags = []Tag{NewTag("cart_id", cartID)}
	}
	return NewQuery(tags, "CartPublished", "CartPublicationFailed")
}

// All matches every event.
func All() Query {
	return NewQueryAll()
}
