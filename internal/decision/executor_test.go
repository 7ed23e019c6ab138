package decision

import (
	"context"
	"testing"

	"cartflow/internal/cart"
	"cartflow/pkg/eventlog"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStore is a minimal in-memory eventlog.EventStore, enough to drive
// Executor.Make without a database — Read/AppendIf/AppendWithoutValidation
// are the only methods the engine calls on the decision path.
type fakeStore struct {
	events []eventlog.Event

	// failNextAppend, if > 0, makes the next AppendIf call return a
	// ConcurrencyError instead of succeeding, then decrements.
	failNextAppend int
}

func (f *fakeStore) Read(_ context.Context, query eventlog.Query, _ *eventlog.ReadOptions) (eventlog.SequencedEvents, error) {
	var matched []eventlog.Event
	for _, e := range f.events {
		if matches(query, e) {
			matched = append(matched, e)
		}
	}
	var pos int64
	if len(f.events) > 0 {
		pos = f.events[len(f.events)-1].Position
	}
	return eventlog.SequencedEvents{Events: matched, Position: pos}, nil
}

func matches(query eventlog.Query, e eventlog.Event) bool {
	if len(query.Items) == 0 {
		return true
	}
	for _, item := range query.Items {
		if tagsMatch(item.Tags, e.Tags) {
			return true
		}
	}
	return false
}

func tagsMatch(want, got []eventlog.Tag) bool {
	for _, w := range want {
		found := false
		for _, g := range got {
			if g.Key == w.Key && g.Value == w.Value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (f *fakeStore) AppendWithoutValidation(_ context.Context, events []eventlog.InputEvent) ([]int64, error) {
	return f.append(events), nil
}

// AppendIf mirrors postgres.Store's real conflict semantics (scoped to
// events persisted after condition.After, spec §4.1's "(V, now]" range) so
// that a test driving a second command against an already-populated cart
// exercises the same check the production store performs, rather than a
// stub that ignores condition entirely.
func (f *fakeStore) AppendIf(_ context.Context, events []eventlog.InputEvent, condition eventlog.AppendCondition) ([]int64, error) {
	if f.failNextAppend > 0 {
		f.failNextAppend--
		return nil, &eventlog.ConcurrencyError{
			EventStoreError:  eventlog.EventStoreError{Op: "append"},
			ExpectedPosition: 0,
			ActualPosition:   1,
		}
	}
	if len(condition.FailIfEventsMatch.Items) > 0 {
		var after int64
		if condition.After != nil {
			after = *condition.After
		}
		for _, e := range f.events {
			if e.Position > after && matches(condition.FailIfEventsMatch, e) {
				return nil, &eventlog.ConcurrencyError{
					EventStoreError:  eventlog.EventStoreError{Op: "append"},
					ExpectedPosition: after,
					ActualPosition:   e.Position,
				}
			}
		}
	}
	return f.append(events), nil
}

func (f *fakeStore) append(events []eventlog.InputEvent) []int64 {
	positions := make([]int64, len(events))
	for i, ie := range events {
		pos := int64(len(f.events) + 1)
		f.events = append(f.events, eventlog.Event{Type: ie.Type, Tags: ie.Tags, Data: ie.Data, Position: pos})
		positions[i] = pos
	}
	return positions
}

func (f *fakeStore) CurrentPosition(_ context.Context) (int64, error) {
	if len(f.events) == 0 {
		return 0, nil
	}
	return f.events[len(f.events)-1].Position, nil
}

func (f *fakeStore) ProjectBatchUpTo(_ context.Context, _ []eventlog.BatchProjector, _ int64) (eventlog.BatchProjectionResult, error) {
	return eventlog.BatchProjectionResult{}, nil
}

func newTestExecutor(store eventlog.EventStore) *Executor {
	return NewExecutor(store, nil, 100, 3, nil)
}

func TestMake_StatefulDecisionAppendsAndReturnsPositions(t *testing.T) {
	store := &fakeStore{}
	executor := newTestExecutor(store)

	cmd := cart.AddItemCommand{CartID: "cart-1", ItemID: "item-1", ProductID: "product-1", Price: decimal.NewFromInt(10)}
	positions, err := executor.Make(context.Background(), cart.AddItemDecision{Cmd: cmd})

	require.NoError(t, err)
	require.Len(t, positions, 2) // CartCreated + CartItemAdded
	assert.Equal(t, []int64{1, 2}, positions)
}

func TestMake_DomainErrorIsNeverRetried(t *testing.T) {
	store := &fakeStore{}
	executor := newTestExecutor(store)

	// Submitting a cart that was never created is a domain error, not a
	// concurrency conflict: Make must return it immediately.
	cmd := cart.SubmitCartCommand{CartID: "cart-1"}
	_, err := executor.Make(context.Background(), cart.SubmitCartDecision{Cmd: cmd})
	assert.ErrorIs(t, err, cart.ErrCartDoesNotExist)
}

func TestMake_RetriesOnConflictThenSucceeds(t *testing.T) {
	store := &fakeStore{failNextAppend: 2}
	executor := newTestExecutor(store)

	cmd := cart.AddItemCommand{CartID: "cart-1", ItemID: "item-1", ProductID: "product-1", Price: decimal.NewFromInt(10)}
	positions, err := executor.Make(context.Background(), cart.AddItemDecision{Cmd: cmd})

	require.NoError(t, err)
	assert.Len(t, positions, 2)
}

func TestMake_ExhaustsRetriesOnPersistentConflict(t *testing.T) {
	store := &fakeStore{failNextAppend: 100}
	executor := NewExecutor(store, nil, 100, 3, nil)

	cmd := cart.AddItemCommand{CartID: "cart-1", ItemID: "item-1", ProductID: "product-1", Price: decimal.NewFromInt(10)}
	_, err := executor.Make(context.Background(), cart.AddItemDecision{Cmd: cmd})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConcurrencyRetriesExhausted)
}

// TestMake_SecondCommandOnExistingCartSucceeds exercises the real
// conflict-check path (fakeStore.AppendIf above) against a cart that
// already has prior events of its own: AddItem's CartCreated/
// CartItemAdded must not count as a conflict against the immediately
// following SubmitCart, since SubmitCart's state query observed them
// before appending (spec §4.1's "(V, now]" range, V being the position
// SubmitCart's own read folded up to). This is the scenario the
// unscoped append-condition bug broke: every command after the first on
// a cart returned ErrConcurrencyRetriesExhausted.
func TestMake_SecondCommandOnExistingCartSucceeds(t *testing.T) {
	store := &fakeStore{}
	executor := newTestExecutor(store)

	addCmd := cart.AddItemCommand{CartID: "cart-1", ItemID: "item-1", ProductID: "product-1", Price: decimal.NewFromInt(10)}
	_, err := executor.Make(context.Background(), cart.AddItemDecision{Cmd: addCmd})
	require.NoError(t, err)

	submitCmd := cart.SubmitCartCommand{CartID: "cart-1"}
	positions, err := executor.Make(context.Background(), cart.SubmitCartDecision{Cmd: submitCmd})
	require.NoError(t, err)
	require.Len(t, positions, 1) // CartSubmitted
}

func TestMake_StatelessDecisionBypassesConflictCheck(t *testing.T) {
	store := &fakeStore{}
	executor := newTestExecutor(store)

	cmd := cart.ChangePriceCommand{ProductID: "product-1", OldPrice: decimal.NewFromInt(10), NewPrice: decimal.NewFromInt(12)}
	positions, err := executor.Make(context.Background(), cart.ChangePriceDecision{Cmd: cmd})

	require.NoError(t, err)
	assert.Equal(t, []int64{1}, positions)
}
