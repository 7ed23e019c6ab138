package cart

import (
	"cartflow/pkg/eventlog"

	"github.com/shopspring/decimal"
)

// Event kind tags (spec §3).
const (
	TypeCartCreated           = "CartCreated"
	TypeCartItemAdded         = "CartItemAdded"
	TypeCartItemRemoved       = "CartItemRemoved"
	TypeCartCleared           = "CartCleared"
	TypeItemArchived          = "ItemArchived"
	TypeCartSubmitted         = "CartSubmitted"
	TypeCartPublished         = "CartPublished"
	TypeCartPublicationFailed = "CartPublicationFailed"
	TypePriceChanged          = "PriceChanged"
	TypeInventoryChanged      = "InventoryChanged"
)

// DefaultFingerprint is used when a stored CartItemAdded event predates
// fingerprint tracking (serde-default equivalent, SPEC_FULL.md §12).
const DefaultFingerprint = "default-fingerprint"

// OrderedProduct is one line of a submitted cart (spec §3's payload for
// CartSubmitted).
type OrderedProduct struct {
	ProductID string `json:"product_id"`
	Price     decimal.Decimal `json:"price"`
}

type CartCreated struct {
	CartID string `json:"cart_id"`
}

func (e CartCreated) toInput() eventlog.InputEvent {
	return eventlog.InputEvent{
		Type: TypeCartCreated,
		Tags: []eventlog.Tag{eventlog.NewTag("cart_id", e.CartID)},
		Data: eventlog.ToJSON(e),
	}
}

type CartItemAdded struct {
	CartID      string `json:"cart_id"`
	ItemID      string `json:"item_id"`
	ProductID   string `json:"product_id"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Price       decimal.Decimal `json:"price"`
	Fingerprint string `json:"fingerprint"`
}

func (e CartItemAdded) toInput() eventlog.InputEvent {
	return eventlog.InputEvent{
		Type: TypeCartItemAdded,
		Tags: []eventlog.Tag{
			eventlog.NewTag("cart_id", e.CartID),
			eventlog.NewTag("item_id", e.ItemID),
			eventlog.NewTag("product_id", e.ProductID),
		},
		Data: eventlog.ToJSON(e),
	}
}

type CartItemRemoved struct {
	CartID string `json:"cart_id"`
	ItemID string `json:"item_id"`
}

func (e CartItemRemoved) toInput() eventlog.InputEvent {
	return eventlog.InputEvent{
		Type: TypeCartItemRemoved,
		Tags: []eventlog.Tag{
			eventlog.NewTag("cart_id", e.CartID),
			eventlog.NewTag("item_id", e.ItemID),
		},
		Data: eventlog.ToJSON(e),
	}
}

type CartCleared struct {
	CartID string `json:"cart_id"`
}

func (e CartCleared) toInput() eventlog.InputEvent {
	return eventlog.InputEvent{
		Type: TypeCartCleared,
		Tags: []eventlog.Tag{eventlog.NewTag("cart_id", e.CartID)},
		Data: eventlog.ToJSON(e),
	}
}

type ItemArchived struct {
	CartID              string `json:"cart_id"`
	ItemID              string `json:"item_id"`
	PriceChangedEventID string `json:"price_changed_event_id"`
}

func (e ItemArchived) toInput() eventlog.InputEvent {
	return eventlog.InputEvent{
		Type: TypeItemArchived,
		Tags: []eventlog.Tag{
			eventlog.NewTag("cart_id", e.CartID),
			eventlog.NewTag("item_id", e.ItemID),
		},
		Data: eventlog.ToJSON(e),
	}
}

type CartSubmitted struct {
	CartID         string           `json:"cart_id"`
	OrderedProduct []OrderedProduct `json:"ordered_product"`
	TotalPrice     decimal.Decimal  `json:"total_price"`
}

func (e CartSubmitted) toInput() eventlog.InputEvent {
	return eventlog.InputEvent{
		Type: TypeCartSubmitted,
		Tags: []eventlog.Tag{eventlog.NewTag("cart_id", e.CartID)},
		Data: eventlog.ToJSON(e),
	}
}

type CartPublished struct {
	CartID string `json:"cart_id"`
}

func (e CartPublished) toInput() eventlog.InputEvent {
	return eventlog.InputEvent{
		Type: TypeCartPublished,
		Tags: []eventlog.Tag{eventlog.NewTag("cart_id", e.CartID)},
		Data: eventlog.ToJSON(e),
	}
}

// ToInputEvent exposes toInput to callers outside this package (the
// outbound publisher, which appends this event transactionally
// alongside a Kafka send).
func (e CartPublished) ToInputEvent() eventlog.InputEvent { return e.toInput() }

type CartPublicationFailed struct {
	CartID string `json:"cart_id"`
}

func (e CartPublicationFailed) toInput() eventlog.InputEvent {
	return eventlog.InputEvent{
		Type: TypeCartPublicationFailed,
		Tags: []eventlog.Tag{eventlog.NewTag("cart_id", e.CartID)},
		Data: eventlog.ToJSON(e),
	}
}

// ToInputEvent exposes toInput to callers outside this package (the
// queue worker, which appends this event when a PublishCart task's
// retries are exhausted).
func (e CartPublicationFailed) ToInputEvent() eventlog.InputEvent { return e.toInput() }

type PriceChanged struct {
	ProductID string `json:"product_id"`
	OldPrice  decimal.Decimal `json:"old_price"`
	NewPrice  decimal.Decimal `json:"new_price"`
}

func (e PriceChanged) toInput() eventlog.InputEvent {
	return eventlog.InputEvent{
		Type: TypePriceChanged,
		Tags: []eventlog.Tag{eventlog.NewTag("product_id", e.ProductID)},
		Data: eventlog.ToJSON(e),
	}
}

type InventoryChanged struct {
	ProductID string `json:"product_id"`
	Inventory int    `json:"inventory"`
}

func (e InventoryChanged) toInput() eventlog.InputEvent {
	return eventlog.InputEvent{
		Type: TypeInventoryChanged,
		Tags: []eventlog.Tag{eventlog.NewTag("product_id", e.ProductID)},
		Data: eventlog.ToJSON(e),
	}
}

// domainEvent is satisfied by every event kind above; decisions return a
// slice of these, which the decision engine converts to eventlog.InputEvent.
type domainEvent interface {
	toInput() eventlog.InputEvent
}

// ToInputEvents converts a slice of domain events into log-ready events,
// preserving order (spec §4.3: "ordering of events within a single append
// is the caller-supplied order").
func ToInputEvents(events []domainEvent) []eventlog.InputEvent {
	out := make([]eventlog.InputEvent, len(events))
	for i, e := range events {
		out[i] = e.toInput()
	}
	return out
}
