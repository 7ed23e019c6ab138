package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveItem_EmitsWhenPresent(t *testing.T) {
	state := NewState("cart-1")
	state.Exists = true
	state.Items = map[string]itemRecord{"i1": {ProductID: "p1"}}

	events, err := ArchiveItemCommand{CartID: "cart-1", ItemID: "i1", PriceChangedEventID: "42"}.Process(state)
	require.NoError(t, err)
	assert.Equal(t, []domainEvent{ItemArchived{CartID: "cart-1", ItemID: "i1", PriceChangedEventID: "42"}}, events)
}

func TestArchiveItem_NoOpWhenAlreadyGone(t *testing.T) {
	state := NewState("cart-1")
	state.Exists = true

	events, err := ArchiveItemCommand{CartID: "cart-1", ItemID: "missing"}.Process(state)
	assert.NoError(t, err)
	assert.Nil(t, events)
}

func TestArchiveItem_RejectedAfterSubmission(t *testing.T) {
	state := NewState("cart-1")
	state.Exists = true
	state.Submitted = true

	_, err := ArchiveItemCommand{CartID: "cart-1", ItemID: "i1"}.Process(state)
	assert.ErrorIs(t, err, ErrCartCannotBeAltered)
}
