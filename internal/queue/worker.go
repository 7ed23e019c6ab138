package queue

import (
	"context"
	"errors"
	"time"

	"cartflow/internal/cart"
	"cartflow/pkg/eventlog"

	"github.com/sirupsen/logrus"
)

// Publisher is the subset of outbound.Publisher the worker needs,
// narrowed here so this package doesn't import internal/outbound.
type Publisher interface {
	PublishWithEvents(ctx context.Context, store eventlog.EventStore, topic string, message any, successEvent eventlog.InputEvent) error
}

// externalPublishCart mirrors the published-carts payload shape (spec
// §6), grounded on publish_cart.rs's ExternalPublishCart.
type externalPublishCart struct {
	CartID         string        `json:"cart_id"`
	OrderedProduct []orderedLine `json:"ordered_product"`
	TotalPrice     string        `json:"total_price"`
}

type orderedLine struct {
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
}

// Worker pulls tasks and executes them, grounded on
// original_source/src/subsystems/work_queue/tasks.rs's handle_task
// dispatcher and the calling loop implied by the Rust AppState wiring.
type Worker struct {
	queue     *Queue
	store     eventlog.EventStore
	publisher Publisher
	log       *logrus.Entry
}

// NewWorker returns a Worker.
func NewWorker(queue *Queue, store eventlog.EventStore, publisher Publisher, log *logrus.Entry) *Worker {
	return &Worker{queue: queue, store: store, publisher: publisher, log: log}
}

// Run pulls up to 10 tasks at a time, executing each, until ctx is
// cancelled. An idle pull (nothing due) sleeps 125ms before trying
// again, keeping the loop from hammering the database.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		tasks, err := w.queue.Pull(ctx, 10)
		if err != nil {
			w.log.WithError(err).Warn("queue: pull failed")
			time.Sleep(125 * time.Millisecond)
			continue
		}
		if len(tasks) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(125 * time.Millisecond):
			}
			continue
		}
		for _, task := range tasks {
			w.execute(ctx, task)
		}
	}
}

// execute runs one task's domain args and reconciles the queue row:
// delete on success, record a failed attempt otherwise, appending the
// task's failure event to C1 if this was its last attempt.
func (w *Worker) execute(ctx context.Context, task Task) {
	err := w.handle(ctx, task.DomainArgs)
	if err == nil {
		if err := w.queue.DeleteTask(ctx, task.TaskID); err != nil {
			w.log.WithError(err).WithField("task_id", task.TaskID).Warn("queue: failed to delete completed task")
		}
		return
	}

	w.log.WithError(err).WithField("task_id", task.TaskID).WithField("task_type", task.DomainArgs.Kind).
		Warn("queue: task failed")

	permanent, failErr := w.queue.FailTask(ctx, task.TaskID)
	if failErr != nil {
		w.log.WithError(failErr).WithField("task_id", task.TaskID).Error("queue: failed to record task failure")
		return
	}
	if !permanent {
		return
	}

	if failureEvent := task.DomainArgs.FailureEvent(); failureEvent != nil {
		if _, err := w.store.AppendWithoutValidation(ctx, []eventlog.InputEvent{*failureEvent}); err != nil {
			w.log.WithError(err).WithField("task_id", task.TaskID).Error("queue: failed to append permanent-failure event")
		}
	}
	if err := w.queue.DeleteTask(ctx, task.TaskID); err != nil {
		w.log.WithError(err).WithField("task_id", task.TaskID).Warn("queue: failed to delete exhausted task")
	}
}

// handle dispatches one task's domain args (tasks.rs's handle_task).
func (w *Worker) handle(ctx context.Context, args DomainArgs) error {
	switch args.Kind {
	case KindPublishCart:
		return w.publishCart(ctx, args.PublishCart)
	case KindTestingSuccess:
		return nil
	case KindTestingFailure:
		return errors.New("queue: failed as expected")
	default:
		return nil
	}
}

// publishCart is the PublishCart processor (spec §4.8's composition with
// C6): publish on published-carts, appending CartPublished transactionally
// via the outbound publisher. Grounded on publish_cart.rs's
// publish_cart_processor.
func (w *Worker) publishCart(ctx context.Context, args *PublishCartArgs) error {
	lines := make([]orderedLine, len(args.OrderedProduct))
	for i, op := range args.OrderedProduct {
		lines[i] = orderedLine{ProductID: op.ProductID, Price: op.Price.String()}
	}
	message := externalPublishCart{
		CartID:         args.CartID,
		OrderedProduct: lines,
		TotalPrice:     args.TotalPrice,
	}

	successEvent := cart.CartPublished{CartID: args.CartID}.ToInputEvent()
	return w.publisher.PublishWithEvents(ctx, w.store, "published-carts", message, successEvent)
}
