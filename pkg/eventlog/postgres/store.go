// Package postgres implements cartflow/pkg/eventlog.EventStore against
// PostgreSQL, using JSONB tag containment queries and SERIALIZABLE
// transactions for optimistic-concurrency append.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cartflow/pkg/eventlog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultMaxBatchSize = 1000

// Store implements eventlog.EventStore against a pgx connection pool.
type Store struct {
	pool         *pgxpool.Pool
	maxBatchSize int
}

// New validates the connection and returns a ready Store.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, &eventlog.ValidationError{
			EventStoreError: eventlog.EventStoreError{Op: "New", Err: fmt.Errorf("pool is nil")},
			Field:           "pool",
		}
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, &eventlog.ResourceError{
			EventStoreError: eventlog.EventStoreError{Op: "New", Err: fmt.Errorf("ping: %w", err)},
			Resource:        "database",
		}
	}
	return &Store{pool: pool, maxBatchSize: defaultMaxBatchSize}, nil
}

// Read implements eventlog.EventStore.
func (s *Store) Read(ctx context.Context, query eventlog.Query, options *eventlog.ReadOptions) (eventlog.SequencedEvents, error) {
	sqlQuery, args := buildQuerySQL("id, type, tags, data, position, causation_id, correlation_id", query, -1, options)

	rows, err := s.pool.Query(ctx, sqlQuery, args...)
	if err != nil {
		return eventlog.SequencedEvents{}, &eventlog.ResourceError{
			EventStoreError: eventlog.EventStoreError{Op: "Read", Err: err},
			Resource:        "database",
		}
	}
	defer rows.Close()

	var events []eventlog.Event
	var lastPosition int64
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return eventlog.SequencedEvents{}, err
		}
		events = append(events, event)
		lastPosition = event.Position
	}
	if err := rows.Err(); err != nil {
		return eventlog.SequencedEvents{}, &eventlog.ResourceError{
			EventStoreError: eventlog.EventStoreError{Op: "Read", Err: err},
			Resource:        "database",
		}
	}
	return eventlog.SequencedEvents{Events: events, Position: lastPosition}, nil
}

// AppendWithoutValidation implements eventlog.EventStore.
func (s *Store) AppendWithoutValidation(ctx context.Context, events []eventlog.InputEvent) ([]int64, error) {
	return s.append(ctx, events, eventlog.AppendCondition{})
}

// AppendIf implements eventlog.EventStore.
func (s *Store) AppendIf(ctx context.Context, events []eventlog.InputEvent, condition eventlog.AppendCondition) ([]int64, error) {
	return s.append(ctx, events, condition)
}

func (s *Store) append(ctx context.Context, events []eventlog.InputEvent, condition eventlog.AppendCondition) ([]int64, error) {
	if len(events) == 0 {
		return nil, &eventlog.ValidationError{
			EventStoreError: eventlog.EventStoreError{Op: "append", Err: fmt.Errorf("events must not be empty")},
			Field:           "events",
		}
	}
	if len(events) > s.maxBatchSize {
		return nil, &eventlog.ValidationError{
			EventStoreError: eventlog.EventStoreError{Op: "append", Err: fmt.Errorf("batch of %d exceeds max %d", len(events), s.maxBatchSize)},
			Field:           "events",
		}
	}
	for i, e := range events {
		if e.Type == "" {
			return nil, &eventlog.ValidationError{
				EventStoreError: eventlog.EventStoreError{Op: "append", Err: fmt.Errorf("event %d has empty type", i)},
				Field:           "type",
			}
		}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, &eventlog.EventStoreError{Op: "append", Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback(ctx)

	if len(condition.FailIfEventsMatch.Items) > 0 {
		if err := checkAppendCondition(ctx, tx, condition.FailIfEventsMatch, condition.After); err != nil {
			return nil, err
		}
	}

	var currentPosition int64
	if err := tx.QueryRow(ctx, "SELECT COALESCE(MAX(position), 0) FROM events").Scan(&currentPosition); err != nil {
		return nil, &eventlog.EventStoreError{Op: "append", Err: fmt.Errorf("current position: %w", err)}
	}

	batch := &pgx.Batch{}
	now := time.Now()
	positions := make([]int64, len(events))
	for i, e := range events {
		position := currentPosition + int64(i+1)
		positions[i] = position
		tagsJSON, err := tagsToJSON(e.Tags)
		if err != nil {
			return nil, &eventlog.EventStoreError{Op: "append", Err: fmt.Errorf("marshal tags: %w", err)}
		}
		batch.Queue(
			`INSERT INTO events (type, tags, data, position, created_at) VALUES ($1, $2, $3, $4, $5)`,
			e.Type, tagsJSON, e.Data, position, now,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < len(events); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return nil, &eventlog.EventStoreError{Op: "append", Err: fmt.Errorf("insert event %d: %w", i, err)}
		}
	}
	if err := br.Close(); err != nil {
		return nil, &eventlog.EventStoreError{Op: "append", Err: fmt.Errorf("close batch: %w", err)}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, &eventlog.EventStoreError{Op: "append", Err: fmt.Errorf("commit: %w", err)}
	}
	return positions, nil
}

// checkAppendCondition fails the append if any event matching failQuery has
// been persisted since position after (spec §4.1's conflict range "(V,
// now]"). after == nil scopes nothing, matching on the whole stream — only
// correct when the caller knows no prior event can exist.
func checkAppendCondition(ctx context.Context, tx pgx.Tx, failQuery eventlog.Query, after *int64) error {
	var options *eventlog.ReadOptions
	if after != nil {
		options = &eventlog.ReadOptions{FromPosition: *after + 1}
	}
	sqlQuery, args := buildQuerySQL("1", failQuery, -1, options)
	sqlQuery += " LIMIT 1"

	var exists int
	err := tx.QueryRow(ctx, sqlQuery, args...).Scan(&exists)
	if err == nil {
		return &eventlog.ConcurrencyError{
			EventStoreError: eventlog.EventStoreError{Op: "append", Err: fmt.Errorf("append condition failed: matching events exist")},
		}
	}
	if err != pgx.ErrNoRows {
		return &eventlog.EventStoreError{Op: "append", Err: fmt.Errorf("check append condition: %w", err)}
	}
	return nil
}

// CurrentPosition implements eventlog.EventStore.
func (s *Store) CurrentPosition(ctx context.Context) (int64, error) {
	var position int64
	if err := s.pool.QueryRow(ctx, "SELECT COALESCE(MAX(position), 0) FROM events").Scan(&position); err != nil {
		return 0, &eventlog.EventStoreError{Op: "CurrentPosition", Err: err}
	}
	return position, nil
}

// ProjectBatchUpTo implements eventlog.EventStore: folds every projector's
// query in a single combined SQL query, routing each event to every
// projector whose query it matches.
func (s *Store) ProjectBatchUpTo(ctx context.Context, projectors []eventlog.BatchProjector, maxPosition int64) (eventlog.BatchProjectionResult, error) {
	if len(projectors) == 0 {
		return eventlog.BatchProjectionResult{States: map[string]any{}}, nil
	}
	for _, bp := range projectors {
		if bp.StateProjector.TransitionFn == nil {
			return eventlog.BatchProjectionResult{}, &eventlog.ValidationError{
				EventStoreError: eventlog.EventStoreError{Op: "ProjectBatchUpTo", Err: fmt.Errorf("projector %s has nil transition function", bp.ID)},
				Field:           "projector",
				Value:           bp.ID,
			}
		}
	}

	combined := combineQueries(projectors)
	sqlQuery, args := buildQuerySQL("id, type, tags, data, position, causation_id, correlation_id", combined, maxPosition, nil)

	rows, err := s.pool.Query(ctx, sqlQuery, args...)
	if err != nil {
		return eventlog.BatchProjectionResult{}, &eventlog.ResourceError{
			EventStoreError: eventlog.EventStoreError{Op: "ProjectBatchUpTo", Err: err},
			Resource:        "database",
		}
	}
	defer rows.Close()

	states := make(map[string]any, len(projectors))
	for _, bp := range projectors {
		states[bp.ID] = bp.StateProjector.InitialState
	}

	var position int64
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return eventlog.BatchProjectionResult{}, err
		}
		for _, bp := range projectors {
			if matchesQuery(event, bp.StateProjector.Query) {
				states[bp.ID] = bp.StateProjector.TransitionFn(states[bp.ID], event)
			}
		}
		position = event.Position
	}
	if err := rows.Err(); err != nil {
		return eventlog.BatchProjectionResult{}, &eventlog.ResourceError{
			EventStoreError: eventlog.EventStoreError{Op: "ProjectBatchUpTo", Err: err},
			Resource:        "database",
		}
	}

	return eventlog.BatchProjectionResult{Position: position, States: states}, nil
}

func combineQueries(projectors []eventlog.BatchProjector) eventlog.Query {
	var items []eventlog.QueryItem
	for _, bp := range projectors {
		items = append(items, bp.StateProjector.Query.Items...)
	}
	return eventlog.Query{Items: items}
}

func matchesQuery(event eventlog.Event, query eventlog.Query) bool {
	if len(query.Items) == 0 {
		return true
	}
	for _, item := range query.Items {
		if matchesQueryItem(event, item) {
			return true
		}
	}
	return false
}

func matchesQueryItem(event eventlog.Event, item eventlog.QueryItem) bool {
	if len(item.EventTypes) > 0 {
		found := false
		for _, t := range item.EventTypes {
			if event.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(item.Tags) == 0 {
		return true
	}
	eventTags := make(map[string]string, len(event.Tags))
	for _, t := range event.Tags {
		eventTags[t.Key] = t.Value
	}
	for _, want := range item.Tags {
		if eventTags[want.Key] != want.Value {
			return false
		}
	}
	return true
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (eventlog.Event, error) {
	var e eventlog.Event
	var tagsJSON []byte
	if err := row.Scan(&e.ID, &e.Type, &tagsJSON, &e.Data, &e.Position, &e.CausationID, &e.CorrelationID); err != nil {
		return eventlog.Event{}, &eventlog.ResourceError{
			EventStoreError: eventlog.EventStoreError{Op: "scanEvent", Err: err},
			Resource:        "database",
		}
	}
	tags, err := tagsFromJSON(tagsJSON)
	if err != nil {
		return eventlog.Event{}, &eventlog.EventStoreError{Op: "scanEvent", Err: fmt.Errorf("unmarshal tags at position %d: %w", e.Position, err)}
	}
	e.Tags = tags
	return e, nil
}

func tagsToJSON(tags []eventlog.Tag) ([]byte, error) {
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		m[t.Key] = t.Value
	}
	return json.Marshal(m)
}

func tagsFromJSON(data []byte) ([]eventlog.Tag, error) {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	tags := make([]eventlog.Tag, 0, len(m))
	for k, v := range m {
		tags = append(tags, eventlog.Tag{Key: k, Value: v})
	}
	return tags, nil
}

// buildQuerySQL builds `SELECT <columns> FROM events WHERE (...) [AND
// position <= $n] [AND position >= $n] ORDER BY position ASC`, combining
// each query item's tag-containment and type-membership predicate with OR.
func buildQuerySQL(columns string, query eventlog.Query, maxPosition int64, options *eventlog.ReadOptions) (string, []any) {
	var args []any

	base := fmt.Sprintf("SELECT %s FROM events", columns)

	var conditions []string
	for _, item := range query.Items {
		tagsJSON, _ := tagsToJSON(item.Tags)
		condition := fmt.Sprintf("tags @> $%d", len(args)+1)
		args = append(args, tagsJSON)
		if len(item.EventTypes) > 0 {
			condition += fmt.Sprintf(" AND type = ANY($%d)", len(args)+1)
			args = append(args, item.EventTypes)
		}
		conditions = append(conditions, condition)
	}

	var where []string
	if len(conditions) > 0 {
		where = append(where, "("+strings.Join(conditions, " OR ")+")")
	}
	if maxPosition >= 0 {
		where = append(where, fmt.Sprintf("position <= $%d", len(args)+1))
		args = append(args, maxPosition)
	}
	if options != nil && options.FromPosition > 0 {
		where = append(where, fmt.Sprintf("position >= $%d", len(args)+1))
		args = append(args, options.FromPosition)
	}

	sqlQuery := base
	if len(where) > 0 {
		sqlQuery += " WHERE " + strings.Join(where, " AND ")
	}
	order := "ASC"
	if options != nil && strings.EqualFold(options.OrderBy, "desc") {
		order = "DESC"
	}
	sqlQuery += " ORDER BY position " + order
	if options != nil && options.Limit > 0 {
		sqlQuery += fmt.Sprintf(" LIMIT %d", options.Limit)
	}
	return sqlQuery, args
}

// Pool exposes the underlying pool for subsystems (snapshot store, task
// queue, read-model projections) that share the same database.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }
