// Package projection implements the projection runtime (C4): it polls the
// log, delivers matching events to named listeners in id order, and
// persists each listener's cursor so delivery resumes where it left off.
// Generalizes original_source's KafkaListener retry-loop shape from
// external-broker consumption to in-process log polling.
package projection

import (
	"context"
	"time"

	"cartflow/pkg/eventlog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

const (
	pollInterval  = 5 * time.Second
	batchSize     = 200
	cursorTableID = "event_listener"
)

// Listener is one named, durable consumer of the log (spec §4.4). Handle
// must be idempotent under replay: read-model writes guard on
// last_event_id, so redelivering an already-applied event is a no-op.
type Listener struct {
	ID     string
	Query  eventlog.Query
	Handle func(ctx context.Context, event eventlog.Event) error
}

// Runtime drives a set of Listeners against an EventStore, persisting
// cursors in Postgres.
type Runtime struct {
	store     eventlog.EventStore
	pool      *pgxpool.Pool
	listeners []Listener
	log       *logrus.Entry
}

// New returns a Runtime that will drive listeners once Run is called.
func New(store eventlog.EventStore, pool *pgxpool.Pool, log *logrus.Entry, listeners ...Listener) *Runtime {
	return &Runtime{store: store, pool: pool, listeners: listeners, log: log}
}

// Run starts one polling goroutine per listener and blocks until ctx is
// cancelled, at which point every goroutine finishes its in-flight event,
// persists its cursor, and returns (spec §4.4 shutdown).
func (r *Runtime) Run(ctx context.Context) {
	done := make(chan struct{}, len(r.listeners))
	for _, l := range r.listeners {
		go func(l Listener) {
			r.runListener(ctx, l)
			done <- struct{}{}
		}(l)
	}
	for range r.listeners {
		<-done
	}
}

func (r *Runtime) runListener(ctx context.Context, l Listener) {
	log := r.log.WithField("listener", l.ID)
	cursor, err := r.loadCursor(ctx, l.ID)
	if err != nil {
		log.WithError(err).Error("projection: failed to load cursor, starting from 0")
		cursor = 0
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		cursor = r.drain(ctx, l, cursor, log)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// drain pulls and applies events until the listener's query is exhausted
// up to the log head, advancing and persisting the cursor after each
// successful handler call. On handler error it stops (without advancing
// past the failing event) and retries on the next tick, per spec §4.4
// step 4's "indefinite retry".
func (r *Runtime) drain(ctx context.Context, l Listener, cursor int64, log *logrus.Entry) int64 {
	for {
		if ctx.Err() != nil {
			return cursor
		}
		result, err := r.store.Read(ctx, l.Query, &eventlog.ReadOptions{FromPosition: cursor + 1, Limit: batchSize})
		if err != nil {
			log.WithError(err).Warn("projection: read failed, will retry next tick")
			return cursor
		}
		if len(result.Events) == 0 {
			return cursor
		}

		for _, event := range result.Events {
			if err := l.Handle(ctx, event); err != nil {
				log.WithError(err).WithField("event_id", event.ID).WithField("position", event.Position).
					Warn("projection: handler failed, will retry from this event")
				return cursor
			}
			cursor = event.Position
			if err := r.saveCursor(ctx, l.ID, cursor); err != nil {
				log.WithError(err).Warn("projection: failed to persist cursor")
			}
		}
		if len(result.Events) < batchSize {
			return cursor
		}
	}
}

func (r *Runtime) loadCursor(ctx context.Context, listenerID string) (int64, error) {
	var cursor int64
	err := r.pool.QueryRow(ctx,
		`SELECT last_processed_event_id FROM event_listener WHERE id = $1`, listenerID,
	).Scan(&cursor)
	if err == pgx.ErrNoRows {
		return 0, nil // no row yet: start from the beginning, not an error
	}
	if err != nil {
		return 0, err
	}
	return cursor, nil
}

func (r *Runtime) saveCursor(ctx context.Context, listenerID string, cursor int64) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_listener (id, last_processed_event_id)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET last_processed_event_id = $2
	`, listenerID, cursor)
	return err
}

// ResetCursor sets listenerID's cursor back to 0, forcing a full replay of
// that listener. cmd/server's --reset-cart-items does not call it: it runs
// the same cursor reset inline, in one transaction with its table delete.
func ResetCursor(ctx context.Context, pool *pgxpool.Pool, listenerID string) error {
	_, err := pool.Exec(ctx, `
		INSERT INTO event_listener (id, last_processed_event_id)
		VALUES ($1, 0)
		ON CONFLICT (id) DO UPDATE SET last_processed_event_id = 0
	`, listenerID)
	return err
}
