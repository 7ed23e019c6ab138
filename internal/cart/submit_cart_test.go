package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitCart_Succeeds(t *testing.T) {
	state := NewState("cart-1")
	state.Exists = true
	state.Items = map[string]itemRecord{
		"i1": {ProductID: "p1", Price: decimal.NewFromInt(10)},
	}

	events, err := SubmitCartCommand{CartID: "cart-1"}.Process(state)
	require.NoError(t, err)
	require.Len(t, events, 1)
	submitted := events[0].(CartSubmitted)
	assert.Equal(t, "cart-1", submitted.CartID)
	assert.True(t, decimal.NewFromInt(10).Equal(submitted.TotalPrice))
	require.Len(t, submitted.OrderedProduct, 1)
	assert.Equal(t, "p1", submitted.OrderedProduct[0].ProductID)
}

func TestSubmitCart_CartDoesNotExist(t *testing.T) {
	_, err := SubmitCartCommand{CartID: "cart-1"}.Process(NewState("cart-1"))
	assert.ErrorIs(t, err, ErrCartDoesNotExist)
}

func TestSubmitCart_EmptyCart(t *testing.T) {
	state := NewState("cart-1")
	state.Exists = true

	_, err := SubmitCartCommand{CartID: "cart-1"}.Process(state)
	assert.ErrorIs(t, err, ErrCannotSubmitEmptyCart)
}

func TestSubmitCart_RejectsDoubleSubmit(t *testing.T) {
	state := NewState("cart-1")
	state.Exists = true
	state.Submitted = true
	state.Items = map[string]itemRecord{"i1": {ProductID: "p1", Price: decimal.NewFromInt(1)}}

	_, err := SubmitCartCommand{CartID: "cart-1"}.Process(state)
	assert.ErrorIs(t, err, ErrCannotSubmitCartTwice)
}
