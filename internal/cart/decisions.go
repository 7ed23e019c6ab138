package cart

import "cartflow/pkg/eventlog"

// The seven wrapper types below each pair one command with the state
// query the decision engine needs to run it: Identity/Query/Zero/Mutate
// give the engine a cache key, a conflict/tail query, and a fold;
// Decide adapts Command.Process into eventlog-ready input events. They
// satisfy internal/decision.StateMachine structurally — this package
// does not import internal/decision.

// AddItemDecision pairs AddItemCommand with its cart-scoped state query.
type AddItemDecision struct{ Cmd AddItemCommand }

func (d AddItemDecision) Identity() string          { return "cart:" + d.Cmd.CartID }
func (d AddItemDecision) Query() eventlog.Query      { return eventlog.Cart(d.Cmd.CartID) }
func (d AddItemDecision) Zero() any                  { return NewState(d.Cmd.CartID) }
func (d AddItemDecision) ZeroPtr() any                { s := NewState(d.Cmd.CartID); return &s }
func (d AddItemDecision) Mutate(s any, e eventlog.Event) any { return s.(State).Mutate(e) }
func (d AddItemDecision) Decide(s any) ([]eventlog.InputEvent, error) {
	events, err := d.Cmd.Process(s.(State))
	if err != nil {
		return nil, err
	}
	return ToInputEvents(events), nil
}

// RemoveItemDecision pairs RemoveItemCommand with its cart-scoped state query.
type RemoveItemDecision struct{ Cmd RemoveItemCommand }

func (d RemoveItemDecision) Identity() string          { return "cart:" + d.Cmd.CartID }
func (d RemoveItemDecision) Query() eventlog.Query      { return eventlog.Cart(d.Cmd.CartID) }
func (d RemoveItemDecision) Zero() any                  { return NewState(d.Cmd.CartID) }
func (d RemoveItemDecision) ZeroPtr() any                { s := NewState(d.Cmd.CartID); return &s }
func (d RemoveItemDecision) Mutate(s any, e eventlog.Event) any { return s.(State).Mutate(e) }
func (d RemoveItemDecision) Decide(s any) ([]eventlog.InputEvent, error) {
	events, err := d.Cmd.Process(s.(State))
	if err != nil {
		return nil, err
	}
	return ToInputEvents(events), nil
}

// ClearCartDecision pairs ClearCartCommand with its cart-scoped state query.
type ClearCartDecision struct{ Cmd ClearCartCommand }

func (d ClearCartDecision) Identity() string          { return "cart:" + d.Cmd.CartID }
func (d ClearCartDecision) Query() eventlog.Query      { return eventlog.Cart(d.Cmd.CartID) }
func (d ClearCartDecision) Zero() any                  { return NewState(d.Cmd.CartID) }
func (d ClearCartDecision) ZeroPtr() any                { s := NewState(d.Cmd.CartID); return &s }
func (d ClearCartDecision) Mutate(s any, e eventlog.Event) any { return s.(State).Mutate(e) }
func (d ClearCartDecision) Decide(s any) ([]eventlog.InputEvent, error) {
	events, err := d.Cmd.Process(s.(State))
	if err != nil {
		return nil, err
	}
	return ToInputEvents(events), nil
}

// SubmitCartDecision pairs SubmitCartCommand with its cart-scoped state query.
type SubmitCartDecision struct{ Cmd SubmitCartCommand }

func (d SubmitCartDecision) Identity() string          { return "cart:" + d.Cmd.CartID }
func (d SubmitCartDecision) Query() eventlog.Query      { return eventlog.Cart(d.Cmd.CartID) }
func (d SubmitCartDecision) Zero() any                  { return NewState(d.Cmd.CartID) }
func (d SubmitCartDecision) ZeroPtr() any                { s := NewState(d.Cmd.CartID); return &s }
func (d SubmitCartDecision) Mutate(s any, e eventlog.Event) any { return s.(State).Mutate(e) }
func (d SubmitCartDecision) Decide(s any) ([]eventlog.InputEvent, error) {
	events, err := d.Cmd.Process(s.(State))
	if err != nil {
		return nil, err
	}
	return ToInputEvents(events), nil
}

// ArchiveItemDecision pairs ArchiveItemCommand with its cart-scoped state
// query. It shares its identity and query with the other cart-mutating
// decisions, so a concurrent archival and a concurrent user edit
// correctly conflict-detect against each other.
type ArchiveItemDecision struct{ Cmd ArchiveItemCommand }

func (d ArchiveItemDecision) Identity() string          { return "cart:" + d.Cmd.CartID }
func (d ArchiveItemDecision) Query() eventlog.Query      { return eventlog.Cart(d.Cmd.CartID) }
func (d ArchiveItemDecision) Zero() any                  { return NewState(d.Cmd.CartID) }
func (d ArchiveItemDecision) ZeroPtr() any                { s := NewState(d.Cmd.CartID); return &s }
func (d ArchiveItemDecision) Mutate(s any, e eventlog.Event) any { return s.(State).Mutate(e) }
func (d ArchiveItemDecision) Decide(s any) ([]eventlog.InputEvent, error) {
	events, err := d.Cmd.Process(s.(State))
	if err != nil {
		return nil, err
	}
	return ToInputEvents(events), nil
}

// ChangePriceDecision and ChangeInventoryDecision are stateless (spec
// §4.3.1): Identity is empty so the executor skips snapshotting and the
// conflict check entirely, appending unconditionally.

type ChangePriceDecision struct{ Cmd ChangePriceCommand }

func (d ChangePriceDecision) Identity() string          { return "" }
func (d ChangePriceDecision) Query() eventlog.Query      { return eventlog.Query{} }
func (d ChangePriceDecision) Zero() any                  { return nil }
func (d ChangePriceDecision) ZeroPtr() any                { return nil }
func (d ChangePriceDecision) Mutate(s any, _ eventlog.Event) any { return s }
func (d ChangePriceDecision) Decide(any) ([]eventlog.InputEvent, error) {
	events, err := d.Cmd.Process(State{})
	if err != nil {
		return nil, err
	}
	return ToInputEvents(events), nil
}

type ChangeInventoryDecision struct{ Cmd ChangeInventoryCommand }

func (d ChangeInventoryDecision) Identity() string          { return "" }
func (d ChangeInventoryDecision) Query() eventlog.Query      { return eventlog.Query{} }
func (d ChangeInventoryDecision) Zero() any                  { return nil }
func (d ChangeInventoryDecision) ZeroPtr() any                { return nil }
func (d ChangeInventoryDecision) Mutate(s any, _ eventlog.Event) any { return s }
func (d ChangeInventoryDecision) Decide(any) ([]eventlog.InputEvent, error) {
	events, err := d.Cmd.Process(State{})
	if err != nil {
		return nil, err
	}
	return ToInputEvents(events), nil
}
