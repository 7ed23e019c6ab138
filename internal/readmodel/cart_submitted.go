package readmodel

import (
	"context"
	"encoding/json"
	"time"

	"cartflow/internal/cart"
	"cartflow/internal/projection"
	"cartflow/internal/queue"
	"cartflow/pkg/eventlog"
)

// NewCartSubmittedListener builds the CartSubmittedListener (spec §4.5):
// on CartSubmitted, enqueue a PublishCart task carrying the submitted
// event id as its triggering event and a one-hour timeout. Grounded on
// original_source/src/domain/cart/publish_cart.rs's
// CartSubmittedEventHandler.
func NewCartSubmittedListener(q *queue.Queue) projection.Listener {
	return projection.Listener{
		ID:    "cart_submitted",
		Query: eventlog.Submitted(""),
		Handle: func(ctx context.Context, event eventlog.Event) error {
			var e cart.CartSubmitted
			if err := json.Unmarshal(event.Data, &e); err != nil {
				return nil
			}

			args := queue.TaskArgs{
				Trigger: queue.TriggerFromEvent(event.Position),
				Limit:   queue.Limit{Kind: queue.LimitTimeoutAfter, Timeout: time.Hour},
				DomainArgs: queue.DomainArgs{
					Kind: queue.KindPublishCart,
					PublishCart: &queue.PublishCartArgs{
						TriggeringEventID: event.Position,
						CartID:            e.CartID,
						OrderedProduct:    e.OrderedProduct,
						TotalPrice:        e.TotalPrice.String(),
					},
				},
			}
			return q.Push(ctx, args)
		},
	}
}
