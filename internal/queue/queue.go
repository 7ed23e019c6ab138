// Package queue implements the task queue (C6): durable scheduled work
// with exponential backoff, timeout, and trigger-event idempotency.
// Grounded on original_source's subsystems/work_queue/queue.rs and
// tasks.rs, translating sqlx's compile-time-checked queries into pgx
// calls over the same SQL shapes.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"cartflow/internal/cart"
	"cartflow/pkg/eventlog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Status mirrors TaskStatus's Postgres int representation.
type Status int

const (
	StatusQueued Status = iota
	StatusRunning
	StatusFailed
)

// TaskDomainArgsKind names the closed set of task payload shapes (spec
// §4.6's TaskArgs.domain_args), persisted as the queue's task_type
// column and used to pick the JSON shape of its payload.
type TaskDomainArgsKind string

const (
	KindPublishCart    TaskDomainArgsKind = "PublishCart"
	KindTestingSuccess TaskDomainArgsKind = "TestingSuccess"
	KindTestingFailure TaskDomainArgsKind = "TestingFailure"
)

// PublishCartArgs is the payload of a PublishCart task: the submitted
// cart's outbound message, plus the CartSubmitted event id that
// triggered it. The CartPublicationFailed event appended on permanent
// failure carries only the cart id.
type PublishCartArgs struct {
	TriggeringEventID int64               `json:"triggering_event_id"`
	CartID            string              `json:"cart_id"`
	OrderedProduct    []cart.OrderedProduct `json:"ordered_product"`
	TotalPrice        string              `json:"total_price"`
}

// DomainArgs is the tagged union of task payloads (Go's structural
// equivalent of TaskDomainArgs's Rust enum): exactly one of its pointer
// fields is non-nil, selected by Kind.
type DomainArgs struct {
	Kind        TaskDomainArgsKind `json:"kind"`
	PublishCart *PublishCartArgs   `json:"publish_cart,omitempty"`
}

// FailureEvent returns the domain event the queue must append to C1 when
// a's task permanently fails, or nil if none is defined (spec §4.6's
// TaskDomainArgs::failure_event).
func (a DomainArgs) FailureEvent() *eventlog.InputEvent {
	if a.Kind == KindPublishCart && a.PublishCart != nil {
		input := cart.CartPublicationFailed{CartID: a.PublishCart.CartID}.ToInputEvent()
		return &input
	}
	return nil
}

// Trigger is the event that caused the task to be scheduled (spec
// §4.6's TaskTrigger), selected by Kind: EventID applies to TriggerEvent,
// ScheduleAt to TriggerScheduleFor, and TriggerScheduleNow uses neither.
type Trigger struct {
	Kind        TriggerKind
	EventID     int64
	ScheduleAt  time.Time
}

type TriggerKind int

const (
	TriggerEvent TriggerKind = iota
	TriggerScheduleNow
	TriggerScheduleFor
)

// TriggerFromEvent builds a Trigger from a log event id (most tasks are
// enqueued this way).
func TriggerFromEvent(eventID int64) Trigger { return Trigger{Kind: TriggerEvent, EventID: eventID} }

// Limit bounds a task's retries (spec §4.6's TaskLimit). Exactly one of
// MaxAttempts/Timeout applies, selected by Kind.
type Limit struct {
	Kind        LimitKind
	MaxAttempts int32
	Timeout     time.Duration
}

type LimitKind int

const (
	LimitMaxAttempts LimitKind = iota
	LimitTimeoutAfter
)

// TaskArgs is the argument to Push (spec §4.6).
type TaskArgs struct {
	Trigger    Trigger
	Limit      Limit
	DomainArgs DomainArgs
}

// Task is a pulled unit of work ready to execute.
type Task struct {
	TaskID     string
	DomainArgs DomainArgs
}

// Queue is the C6 durable work queue, backed by Postgres.
type Queue struct {
	pool *pgxpool.Pool
}

// New returns a Queue.
func New(pool *pgxpool.Pool) *Queue {
	return &Queue{pool: pool}
}

// taskTypeString names args for the task_type column and idempotency
// diagnostics, the Go equivalent of tasks.rs's strum Display derive.
func taskTypeString(args DomainArgs) string {
	return string(args.Kind)
}

// Push inserts a task row, computing scheduled_for/timeout_at/max_attempts
// from args (spec §4.6 push). A duplicate (task_type, triggering_event)
// pair — only possible when trigger is Event — is swallowed as a warning,
// matching queue.rs's constraint-violation handling: the caller that
// lost the race already got its task queued.
func (q *Queue) Push(ctx context.Context, args TaskArgs) error {
	taskID := cart.NewID().String()

	var triggeringEvent *int64
	if args.Trigger.Kind == TriggerEvent {
		id := args.Trigger.EventID
		triggeringEvent = &id
	}

	scheduledFor := time.Now().UTC()
	if args.Trigger.Kind == TriggerScheduleFor {
		scheduledFor = args.Trigger.ScheduleAt
	}

	var timeoutAt time.Time
	var maxAttempts int32
	switch args.Limit.Kind {
	case LimitMaxAttempts:
		timeoutAt = scheduledFor.Add(24 * time.Hour)
		maxAttempts = args.Limit.MaxAttempts
	case LimitTimeoutAfter:
		timeoutAt = scheduledFor.Add(args.Limit.Timeout)
		maxAttempts = 1_000_000
	}

	payload, err := json.Marshal(args.DomainArgs)
	if err != nil {
		return err
	}
	taskType := taskTypeString(args.DomainArgs)

	_, err = q.pool.Exec(ctx, `
		INSERT INTO queue
			(task_id, task_type, triggering_event, scheduled_for, next_attempt_at,
			 timeout_at, failed_attempts, max_attempts, status, payload)
		VALUES ($1, $2, $3, $4, $4, $5, 0, $6, $7, $8)
	`, taskID, taskType, triggeringEvent, scheduledFor, timeoutAt, maxAttempts, int(StatusQueued), payload)
	if err != nil {
		if isUniqueViolation(err) {
			// duplicate trigger: another writer already queued this task
			logrus.WithField("task_type", taskType).WithField("triggering_event", args.Trigger.EventID).
				Warn("queue: task already queued for this triggering event, ignoring duplicate")
			return nil
		}
		return err
	}
	return nil
}

// Pull claims up to n queued, due, non-exhausted tasks for execution,
// atomically flipping them to Running via SELECT ... FOR UPDATE SKIP
// LOCKED so concurrent workers never claim the same row (spec §4.6 pull).
func (q *Queue) Pull(ctx context.Context, n int) ([]Task, error) {
	now := time.Now().UTC()
	rows, err := q.pool.Query(ctx, `
		UPDATE queue
		SET status = $1
		WHERE task_id IN (
			SELECT task_id FROM queue
			WHERE status = $2
				AND scheduled_for <= $3
				AND next_attempt_at <= $3
				AND next_attempt_at <= timeout_at
				AND failed_attempts < max_attempts
			ORDER BY scheduled_for
			FOR UPDATE SKIP LOCKED
			LIMIT $4
		)
		RETURNING task_id, payload
	`, int(StatusRunning), int(StatusQueued), now, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var taskID string
		var payload []byte
		if err := rows.Scan(&taskID, &payload); err != nil {
			return nil, err
		}
		var args DomainArgs
		if err := json.Unmarshal(payload, &args); err != nil {
			return nil, err
		}
		tasks = append(tasks, Task{TaskID: taskID, DomainArgs: args})
	}
	return tasks, rows.Err()
}

// FailTask records a failed attempt and advances next_attempt_at by
// 125ms * 2^failed_attempts, evaluated against the pre-increment row
// (spec §4.6, §8's exact backoff test). Returns true if this was the
// task's last allowed attempt (either by attempt count or timeout).
func (q *Queue) FailTask(ctx context.Context, taskID string) (permanent bool, err error) {
	err = q.pool.QueryRow(ctx, `
		UPDATE queue
		SET
			status = $1,
			failed_attempts = failed_attempts + 1,
			next_attempt_at = next_attempt_at + (INTERVAL '125 milliseconds' * pow(2, failed_attempts))
		WHERE task_id = $2
		RETURNING (failed_attempts >= max_attempts OR next_attempt_at >= timeout_at)
	`, int(StatusQueued), taskID).Scan(&permanent)
	return permanent, err
}

// DeleteTask removes a completed task's row.
func (q *Queue) DeleteTask(ctx context.Context, taskID string) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM queue WHERE task_id = $1`, taskID)
	return err
}

// Clear empties the queue (used by tests).
func (q *Queue) Clear(ctx context.Context) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM queue`)
	return err
}

// isUniqueViolation reports whether err is Postgres error code 23505
// (unique_violation), raised here by queue's (task_type, triggering_event)
// constraint — the idempotency guard of spec §4.6 push.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
