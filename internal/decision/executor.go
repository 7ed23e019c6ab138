// Package decision implements the decision engine (C3): load a state
// query (snapshot plus tail), invoke a pure decision, append the
// resulting events with an optimistic-concurrency check. Generalizes
// go-crablet's command_executor.go, which carried out the same
// load-decide-append shape against a single store.
package decision

import (
	"context"
	"reflect"

	"cartflow/internal/snapshot"
	"cartflow/pkg/eventlog"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// StateMachine is one command's state query plus its pure decision
// (spec §4.3's "each command type declares one" state_query, and the
// `process(state) → events | error` function). Cart commands in
// internal/cart satisfy this structurally, without importing this
// package.
type StateMachine interface {
	// Identity is the snapshot cache key (spec §4.2's content-addressed
	// identity). An empty identity means the command is stateless
	// (ChangePrice/ChangeInventory) and bypasses snapshotting entirely.
	Identity() string

	// Query is the state query's stream predicate, also used verbatim as
	// the append's conflict-detection condition.
	Query() eventlog.Query

	// Zero returns the fold's initial state (a value, not a pointer).
	Zero() any

	// ZeroPtr returns a fresh pointer to the fold's state type (e.g.
	// &State{}), used only as an unmarshal target when loading a
	// snapshot. Stateless decisions (empty Identity) are never asked.
	ZeroPtr() any

	// Mutate folds one event into state.
	Mutate(state any, event eventlog.Event) any

	// Decide is the pure decision: state in, events or a domain error out.
	Decide(state any) ([]eventlog.InputEvent, error)
}

// ErrConcurrencyRetriesExhausted is returned when every retry attempt in
// Make's bounded loop hits a conflicting append (spec §4.3 step 6).
var ErrConcurrencyRetriesExhausted = errors.New("decision: concurrency retries exhausted")

// Executor implements the C3 algorithm against an eventlog.EventStore and
// a snapshot.Store.
type Executor struct {
	store      eventlog.EventStore
	snapshots  *snapshot.Store
	staleAfter int
	maxRetries int
	log        *logrus.Entry
}

// NewExecutor returns an Executor. staleAfter is the snapshot staleness
// threshold in events (spec §4.2, default 100); maxRetries bounds the
// conflict-retry loop (spec §4.3, "at least 3").
func NewExecutor(store eventlog.EventStore, snapshots *snapshot.Store, staleAfter, maxRetries int, log *logrus.Entry) *Executor {
	if maxRetries < 3 {
		maxRetries = 3
	}
	return &Executor{store: store, snapshots: snapshots, staleAfter: staleAfter, maxRetries: maxRetries, log: log}
}

// Make runs sm's decision and appends the resulting events, retrying on
// conflicting concurrent writers up to Executor's bound. Returns the log
// positions assigned to the appended events (empty if the decision
// yielded no events, per spec §4.3 step 5).
func (e *Executor) Make(ctx context.Context, sm StateMachine) ([]int64, error) {
	if sm.Identity() == "" {
		return e.makeStateless(ctx, sm)
	}

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		state, version, err := e.load(ctx, sm)
		if err != nil {
			return nil, err
		}

		events, err := sm.Decide(state)
		if err != nil {
			return nil, err // domain error: client-visible, never retried
		}
		if len(events) == 0 {
			return nil, nil
		}

		condition := eventlog.NewAppendCondition(sm.Query(), &version)
		positions, err := e.store.AppendIf(ctx, events, condition)
		if err == nil {
			newState := state
			for i, ie := range events {
				newState = sm.Mutate(newState, eventlog.Event{Type: ie.Type, Tags: ie.Tags, Data: ie.Data, Position: positions[i]})
			}
			e.saveSnapshot(ctx, sm, newState, positions[len(positions)-1])
			return positions, nil
		}
		if !eventlog.IsConcurrencyError(err) {
			return nil, err
		}
		lastErr = err
		if e.log != nil {
			e.log.WithField("identity", sm.Identity()).WithField("attempt", attempt+1).Warn("decision: conflicting append, retrying")
		}
	}
	return nil, errors.Wrap(ErrConcurrencyRetriesExhausted, lastErr.Error())
}

// makeStateless handles the degenerate state query of ChangePrice and
// ChangeInventory (spec §4.3.1): no snapshot, no conflict check, a single
// unconditional append.
func (e *Executor) makeStateless(ctx context.Context, sm StateMachine) ([]int64, error) {
	events, err := sm.Decide(sm.Zero())
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return e.store.AppendWithoutValidation(ctx, events)
}

// load reconstructs state: a fresh snapshot if present and not stale,
// otherwise the zero state, then the tail of matching events folded in.
func (e *Executor) load(ctx context.Context, sm StateMachine) (any, int64, error) {
	state := sm.Zero()
	var snapshotVersion int64
	if e.snapshots != nil {
		ptr := sm.ZeroPtr()
		version, ok, err := e.snapshots.Load(ctx, sm.Identity(), ptr)
		if err != nil {
			// StateStoreError (spec §4.3): always recoverable by full replay.
			if e.log != nil {
				e.log.WithError(err).WithField("identity", sm.Identity()).Warn("decision: snapshot load failed, replaying from scratch")
			}
			state = sm.Zero()
		} else if ok {
			current, err := e.store.CurrentPosition(ctx)
			if err == nil && !snapshot.IsStale(version, current, e.staleAfter) {
				snapshotVersion = version
				state = reflect.ValueOf(ptr).Elem().Interface()
			}
		}
	}

	result, err := e.store.Read(ctx, sm.Query(), &eventlog.ReadOptions{FromPosition: snapshotVersion + 1})
	if err != nil {
		return nil, 0, err
	}

	version := snapshotVersion
	for _, event := range result.Events {
		state = sm.Mutate(state, event)
		version = event.Position
	}
	return state, version, nil
}

// saveSnapshot opportunistically persists the post-append state (spec
// §4.3 step 7). Failures are logged and otherwise ignored: snapshots are
// advisory.
func (e *Executor) saveSnapshot(ctx context.Context, sm StateMachine, preAppendState any, newVersion int64) {
	if e.snapshots == nil {
		return
	}
	if err := e.snapshots.Save(ctx, sm.Identity(), newVersion, preAppendState); err != nil && e.log != nil {
		e.log.WithError(err).WithField("identity", sm.Identity()).Warn("decision: snapshot save failed")
	}
}
