// Package eventlog implements the append-only event log (C1) and its
// in-process projection helpers: tag-indexed events, composable stream
// queries, and optimistic-concurrency append conditions.
package eventlog

import "context"

type (
	// Tag is a key-value pair indexing an event for retrieval (cart_id,
	// item_id, product_id, ...).
	Tag struct {
		Key   string
		Value string
	}

	// QueryItem is a single AND-of-conditions predicate: event type
	// membership plus required tags. QueryItems within a Query are
	// combined with OR.
	QueryItem struct {
		EventTypes []string
		Tags       []Tag
	}

	// Query is a stream predicate: a disjunction of QueryItems.
	Query struct {
		Items []QueryItem
	}

	// AppendCondition enforces optimistic concurrency: the append fails
	// if any event matching FailIfEventsMatch has been persisted since
	// the caller last observed the log at position After.
	AppendCondition struct {
		FailIfEventsMatch Query
		After             *int64
	}

	// StateProjector folds events matching Query into a state value,
	// starting from InitialState.
	StateProjector struct {
		ID           string
		Query        Query
		InitialState any
		TransitionFn func(any, Event) any
	}

	// BatchProjector names a StateProjector participating in a combined,
	// single-pass projection (EventStore.ProjectBatchUpTo, which folds
	// several state queries in one read).
	BatchProjector struct {
		ID             string
		StateProjector StateProjector
	}

	// BatchProjectionResult is the outcome of folding a set of
	// BatchProjectors up to a shared log position.
	BatchProjectionResult struct {
		Position int64
		States   map[string]any
	}

	// InputEvent is an event awaiting assignment of an id and position.
	InputEvent struct {
		Type string
		Tags []Tag
		Data []byte
	}

	// Event is a persisted, immutable log entry.
	Event struct {
		ID            string
		Type          string
		Tags          []Tag
		Data          []byte
		Position      int64
		CausationID   string
		CorrelationID string
	}

	// ReadOptions configures a Read call.
	ReadOptions struct {
		FromPosition int64
		Limit        int
		OrderBy      string // "asc" (default) or "desc"
	}

	// SequencedEvents is a finite slice of events plus the position of
	// the last one, returned by Read.
	SequencedEvents struct {
		Events   []Event
		Position int64
	}

	// EventStore is the C1 contract: append-only, totally ordered,
	// tag-indexed event storage with optimistic-concurrency append.
	EventStore interface {
		// Read returns events matching query, ordered by position.
		Read(ctx context.Context, query Query, options *ReadOptions) (SequencedEvents, error)

		// Append persists events unconditionally, assigning them
		// contiguous positions, returned in the same order as events.
		// Used for success/failure events and translator-issued commands
		// that carry no conflict query.
		AppendWithoutValidation(ctx context.Context, events []InputEvent) ([]int64, error)

		// AppendIf persists events only if condition.FailIfEventsMatch
		// matches nothing after condition.After; otherwise returns a
		// *ConcurrencyError. Returns the assigned positions on success.
		AppendIf(ctx context.Context, events []InputEvent, condition AppendCondition) ([]int64, error)

		// CurrentPosition returns the highest assigned position, or 0
		// if the log is empty.
		CurrentPosition(ctx context.Context) (int64, error)

		// ProjectBatchUpTo folds every projector's query in a single
		// query, up to maxPosition (or to the log head if maxPosition
		// < 0).
		ProjectBatchUpTo(ctx context.Context, projectors []BatchProjector, maxPosition int64) (BatchProjectionResult, error)
	}
)
