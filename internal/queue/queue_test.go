package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupPostgresContainer starts a disposable Postgres and applies the
// service's schema, the testify equivalent of the teacher's
// pkg/dcb/test_helpers.go setupPostgresContainer (ginkgo/gomega traded
// for testify, per this repo's test-tooling choice).
func setupPostgresContainer(ctx context.Context, t *testing.T) *pgxpool.Pool {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:17.5-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "cartflow",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp"),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	dsn := "postgres://postgres:test@" + host + ":" + port.Port() + "/cartflow?sslmode=disable"
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile("../../docker-entrypoint-initdb.d/schema.sql")
	require.NoError(t, err)
	_, err = pool.Exec(ctx, string(schema))
	require.NoError(t, err)

	return pool
}

// TestFailTask_BackoffSequence verifies the exponential-backoff schedule
// a failing task follows: 125ms * 2^0, then 125ms * 2^1, matching spec
// §8's test — push with MaxAttempts=2, fail twice, observe the deltas and
// the permanent flag on the final failure.
func TestFailTask_BackoffSequence(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgresContainer(ctx, t)
	q := New(pool)

	err := q.Push(ctx, TaskArgs{
		Trigger:    TriggerFromEvent(1),
		Limit:      Limit{Kind: LimitMaxAttempts, MaxAttempts: 2},
		DomainArgs: DomainArgs{Kind: KindTestingFailure},
	})
	require.NoError(t, err)

	tasks, err := q.Pull(ctx, 10)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	taskID := tasks[0].TaskID

	// First failure: failed_attempts is still 0 when the delta is
	// computed, so the advance is 125ms * 2^0.
	before := readNextAttemptAt(ctx, t, pool, taskID)
	permanent, err := q.FailTask(ctx, taskID)
	require.NoError(t, err)
	require.False(t, permanent)
	after := readNextAttemptAt(ctx, t, pool, taskID)
	assert125msApart(t, before, after, 0)

	_, err = pool.Exec(ctx, `UPDATE queue SET status = $1 WHERE task_id = $2`, int(StatusQueued), taskID)
	require.NoError(t, err)

	// Second failure: failed_attempts is now 1, so the advance doubles
	// to 125ms * 2^1.
	before = after
	permanent, err = q.FailTask(ctx, taskID)
	require.NoError(t, err)
	require.True(t, permanent) // failed_attempts (2) >= max_attempts (2)
	after = readNextAttemptAt(ctx, t, pool, taskID)
	assert125msApart(t, before, after, 1)
}

func readNextAttemptAt(ctx context.Context, t *testing.T, pool *pgxpool.Pool, taskID string) time.Time {
	t.Helper()
	var at time.Time
	require.NoError(t, pool.QueryRow(ctx, `SELECT next_attempt_at FROM queue WHERE task_id = $1`, taskID).Scan(&at))
	return at
}

func assert125msApart(t *testing.T, before, after time.Time, exponent int) {
	t.Helper()
	want := 125 * time.Millisecond
	for i := 0; i < exponent; i++ {
		want *= 2
	}
	delta := after.Sub(before)
	assert := func(cond bool) {
		if !cond {
			t.Fatalf("expected next_attempt_at to advance by %s, got %s", want, delta)
		}
	}
	assert(delta >= want-5*time.Millisecond && delta <= want+50*time.Millisecond)
}

// TestPull_DoesNotReclaimRunningTask verifies that a task Pull has
// already flipped to Running is not claimed again by a second Pull.
func TestPull_DoesNotReclaimRunningTask(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgresContainer(ctx, t)
	q := New(pool)

	require.NoError(t, q.Push(ctx, TaskArgs{
		Trigger:    TriggerFromEvent(1),
		Limit:      Limit{Kind: LimitMaxAttempts, MaxAttempts: 3},
		DomainArgs: DomainArgs{Kind: KindTestingSuccess},
	}))

	first, err := q.Pull(ctx, 10)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Already Running: a second pull must not reclaim it.
	second, err := q.Pull(ctx, 10)
	require.NoError(t, err)
	assert125Empty(t, second)
}

func assert125Empty(t *testing.T, tasks []Task) {
	t.Helper()
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks pulled, got %d", len(tasks))
	}
}

// TestPush_DuplicateTriggerIsIdempotent verifies the (task_type,
// triggering_event) unique constraint makes a second Push for the same
// trigger a no-op rather than an error (spec §4.6 push).
func TestPush_DuplicateTriggerIsIdempotent(t *testing.T) {
	ctx := context.Background()
	pool := setupPostgresContainer(ctx, t)
	q := New(pool)

	args := TaskArgs{
		Trigger:    TriggerFromEvent(42),
		Limit:      Limit{Kind: LimitMaxAttempts, MaxAttempts: 3},
		DomainArgs: DomainArgs{Kind: KindTestingSuccess},
	}
	require.NoError(t, q.Push(ctx, args))
	require.NoError(t, q.Push(ctx, args))

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM queue WHERE triggering_event = 42`).Scan(&count))
	require.Equal(t, 1, count)
}
