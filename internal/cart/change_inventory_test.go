package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeInventory_AlwaysEmitsInventoryChanged(t *testing.T) {
	cmd := ChangeInventoryCommand{ProductID: "product-1", Inventory: 42}

	events, err := cmd.Process(NewState(""))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, InventoryChanged{ProductID: "product-1", Inventory: 42}, events[0])
}
