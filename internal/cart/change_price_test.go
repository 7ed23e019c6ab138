package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangePrice_AlwaysEmitsPriceChanged(t *testing.T) {
	cmd := ChangePriceCommand{
		ProductID: "product-1",
		OldPrice:  decimal.NewFromInt(10),
		NewPrice:  decimal.NewFromInt(12),
	}

	// Neither an empty nor a populated fold state affects the outcome:
	// ChangePrice has no preconditions.
	for _, state := range []State{NewState(""), {Exists: true, Submitted: true}} {
		events, err := cmd.Process(state)
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, PriceChanged{
			ProductID: "product-1",
			OldPrice:  decimal.NewFromInt(10),
			NewPrice:  decimal.NewFromInt(12),
		}, events[0])
	}
}
