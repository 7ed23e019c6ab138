package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddItem_CartCreatedIfNotExists(t *testing.T) {
	cmd := AddItemCommand{
		CartID:    "cart-1",
		ItemID:    "item-1",
		ProductID: "product-1",
		Price:     decimal.NewFromInt(10),
	}

	events, err := cmd.Process(NewState(cmd.CartID))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, CartCreated{CartID: "cart-1"}, events[0])
	assert.Equal(t, CartItemAdded{
		CartID:    "cart-1",
		ItemID:    "item-1",
		ProductID: "product-1",
		Price:     decimal.NewFromInt(10),
	}, events[1])
}

func TestAddItem_NoCartCreatedEventIfCartExists(t *testing.T) {
	state := NewState("cart-1")
	state.Exists = true

	cmd := AddItemCommand{CartID: "cart-1", ItemID: "item-2", ProductID: "product-2", Price: decimal.NewFromInt(5)}
	events, err := cmd.Process(state)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, TypeCartItemAdded, eventType(events[0]))
}

func TestAddItem_RejectedWhenCartFull(t *testing.T) {
	state := NewState("cart-1")
	state.Exists = true
	state.Items = map[string]itemRecord{
		"i1": {ProductID: "p1"}, "i2": {ProductID: "p2"}, "i3": {ProductID: "p3"},
	}

	cmd := AddItemCommand{CartID: "cart-1", ItemID: "i4", ProductID: "p4"}
	events, err := cmd.Process(state)
	assert.Nil(t, events)
	assert.ErrorIs(t, err, ErrCannotAddItemCartFull)
}

func TestAddItem_RejectedAfterSubmission(t *testing.T) {
	state := NewState("cart-1")
	state.Exists = true
	state.Submitted = true

	cmd := AddItemCommand{CartID: "cart-1", ItemID: "i1", ProductID: "p1"}
	_, err := cmd.Process(state)
	assert.ErrorIs(t, err, ErrCartCannotBeAltered)
}

func eventType(e domainEvent) string {
	return e.toInput().Type
}
