package eventlog

import (
	"encoding/json"
	"fmt"
)

// NewTag creates a single tag.
func NewTag(key, value string) Tag {
	return Tag{Key: key, Value: value}
}

// Tags is a map-based tag constructor for readability at call sites.
type Tags map[string]string

// ToTags converts a Tags map into a slice, in unspecified order.
func (t Tags) ToTags() []Tag {
	tags := make([]Tag, 0, len(t))
	for k, v := range t {
		tags = append(tags, NewTag(k, v))
	}
	return tags
}

// NewQueryItem builds a single AND-of-conditions predicate.
func NewQueryItem(eventTypes []string, tags []Tag) QueryItem {
	return QueryItem{EventTypes: eventTypes, Tags: tags}
}

// NewQuery builds a Query with a single QueryItem.
func NewQuery(tags []Tag, eventTypes ...string) Query {
	return Query{Items: []QueryItem{NewQueryItem(eventTypes, tags)}}
}

// NewQueryAll builds a Query matching every event.
func NewQueryAll() Query {
	return Query{Items: []QueryItem{{}}}
}

// NewQueryFromItems builds a Query as the OR of the given items.
func NewQueryFromItems(items ...QueryItem) Query {
	return Query{Items: items}
}

// Union returns the OR of the given queries' items, for composing named
// streams (e.g. Cart ∪ Pricing).
func Union(queries ...Query) Query {
	var items []QueryItem
	for _, q := range queries {
		items = append(items, q.Items...)
	}
	return Query{Items: items}
}

// QueryBuilder provides a fluent interface for building queries.
// QueryItems are combined with OR; conditions within one item are AND.
type QueryBuilder struct {
	items   []QueryItem
	current QueryItem
}

// NewQueryBuilder starts a new QueryBuilder.
func NewQueryBuilder() *QueryBuilder {
	return &QueryBuilder{}
}

// AddItem finalizes the current item (if non-empty) and starts a new one.
func (qb *QueryBuilder) AddItem() *QueryBuilder {
	if len(qb.current.EventTypes) > 0 || len(qb.current.Tags) > 0 {
		qb.items = append(qb.items, qb.current)
	}
	qb.current = QueryItem{}
	return qb
}

// WithTag adds an AND tag condition to the current item.
func (qb *QueryBuilder) WithTag(key, value string) *QueryBuilder {
	qb.current.Tags = append(qb.current.Tags, NewTag(key, value))
	return qb
}

// WithType adds an event type to the current item's allowed types.
func (qb *QueryBuilder) WithType(eventType string) *QueryBuilder {
	qb.current.EventTypes = append(qb.current.EventTypes, eventType)
	return qb
}

// WithTypes adds several event types to the current item's allowed types.
func (qb *QueryBuilder) WithTypes(eventTypes ...string) *QueryBuilder {
	qb.current.EventTypes = append(qb.current.EventTypes, eventTypes...)
	return qb
}

// Build finalizes the builder into a Query.
func (qb *QueryBuilder) Build() Query {
	qb.AddItem()
	if len(qb.items) == 0 {
		return Query{}
	}
	return Query{Items: qb.items}
}

// NewAppendCondition builds an AppendCondition that fails the append if
// failIfEventsMatch matches anything persisted after `after`.
func NewAppendCondition(failIfEventsMatch Query, after *int64) AppendCondition {
	return AppendCondition{FailIfEventsMatch: failIfEventsMatch, After: after}
}

// ToJSON marshals v, panicking on error — for building InputEvent payloads
// where a marshal failure indicates a programmer error, not a runtime one.
func ToJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("eventlog: failed to marshal event payload: %v", err))
	}
	return data
}
