// Package snapshot implements the advisory snapshot store (C2): persisted
// folds of a state query at a specific log position, keyed by query
// identity. Losing a snapshot is never a correctness failure — only a
// slower decision on the next command.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists (identity -> state, version) pairs in Postgres, the same
// pgxpool idiom pkg/eventlog/postgres uses for its own row scans.
type Store struct {
	pool *pgxpool.Pool
}

// New returns a Store backed by pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Load returns the persisted state for identity and the log position it
// was folded up to. ok is false if no snapshot exists; this is not an
// error — callers fall back to a full replay.
func (s *Store) Load(ctx context.Context, identity string, into any) (version int64, ok bool, err error) {
	var data []byte
	err = s.pool.QueryRow(ctx, `SELECT version, state FROM snapshots WHERE identity = $1`, identity).Scan(&version, &data)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("snapshot: load %s: %w", identity, err)
	}
	if err := json.Unmarshal(data, into); err != nil {
		return 0, false, fmt.Errorf("snapshot: unmarshal %s: %w", identity, err)
	}
	return version, true, nil
}

// Save upserts the snapshot for identity. Failures are logged by the
// caller and otherwise ignored — a failed save only costs a longer replay
// next time, per spec §4.2.
func (s *Store) Save(ctx context.Context, identity string, version int64, state any) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("snapshot: marshal %s: %w", identity, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO snapshots (identity, version, state)
		VALUES ($1, $2, $3)
		ON CONFLICT (identity) DO UPDATE SET version = $2, state = $3
		WHERE snapshots.version < $2
	`, identity, version, data)
	if err != nil {
		return fmt.Errorf("snapshot: save %s: %w", identity, err)
	}
	return nil
}

// IsStale reports whether a snapshot taken at snapshotVersion is more than
// staleAfter events behind currentVersion (spec §4.2's N ≈ 100 default).
func IsStale(snapshotVersion, currentVersion int64, staleAfter int) bool {
	return currentVersion-snapshotVersion > int64(staleAfter)
}
