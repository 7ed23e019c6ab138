package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClearCart_Succeeds(t *testing.T) {
	state := NewState("cart-1")
	state.Exists = true
	state.Items = map[string]itemRecord{"i1": {ProductID: "p1"}}

	events, err := ClearCartCommand{CartID: "cart-1"}.Process(state)
	require.NoError(t, err)
	assert.Equal(t, []domainEvent{CartCleared{CartID: "cart-1"}}, events)
}

func TestClearCart_CartDoesNotExist(t *testing.T) {
	_, err := ClearCartCommand{CartID: "cart-1"}.Process(NewState("cart-1"))
	assert.ErrorIs(t, err, ErrCartDoesNotExist)
}

// Check order differs from RemoveItem's: submitted is checked before
// exists, transcribed from clear_cart.rs's `process`.
func TestClearCart_SubmittedCheckedBeforeExists(t *testing.T) {
	state := NewState("cart-1")
	state.Submitted = true

	_, err := ClearCartCommand{CartID: "cart-1"}.Process(state)
	assert.ErrorIs(t, err, ErrCartCannotBeAltered)
}
