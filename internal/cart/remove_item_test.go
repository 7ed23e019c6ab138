package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveItem_Succeeds(t *testing.T) {
	state := NewState("cart-1")
	state.Exists = true
	state.Items = map[string]itemRecord{"i1": {ProductID: "p1"}}

	events, err := RemoveItemCommand{CartID: "cart-1", ItemID: "i1"}.Process(state)
	require.NoError(t, err)
	assert.Equal(t, []domainEvent{CartItemRemoved{CartID: "cart-1", ItemID: "i1"}}, events)
}

func TestRemoveItem_CartDoesNotExist(t *testing.T) {
	_, err := RemoveItemCommand{CartID: "cart-1", ItemID: "i1"}.Process(NewState("cart-1"))
	assert.ErrorIs(t, err, ErrCartDoesNotExist)
}

func TestRemoveItem_SubmittedCart(t *testing.T) {
	state := NewState("cart-1")
	state.Exists = true
	state.Submitted = true

	_, err := RemoveItemCommand{CartID: "cart-1", ItemID: "i1"}.Process(state)
	assert.ErrorIs(t, err, ErrCartCannotBeAltered)
}

func TestRemoveItem_ItemNotInCart(t *testing.T) {
	state := NewState("cart-1")
	state.Exists = true

	_, err := RemoveItemCommand{CartID: "cart-1", ItemID: "missing"}.Process(state)
	assert.ErrorIs(t, err, ErrCannotRemoveItem)
}
