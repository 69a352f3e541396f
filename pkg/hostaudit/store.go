package hostaudit

import (
	"context"
	"database/sql"
	"fmt"
)

// Store records and queries completed collectives.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already-migrated database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// RecordCompletion inserts one row per collective a worker's last-finisher
// published to the host, mirroring the information ldo_dev_complete_coll
// writes through its memory windows.
func (s *Store) RecordCompletion(ctx context.Context, runID string, workerRank int, cmdIndex uint32, cmpCount uint64, observedAtUnix int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO completions (run_id, worker_rank, cmd_index, cmp_count, observed_at) VALUES (?, ?, ?, ?, ?)`,
		runID, workerRank, cmdIndex, cmpCount, observedAtUnix,
	)
	if err != nil {
		return fmt.Errorf("hostaudit: record completion: %w", err)
	}
	return nil
}

// Completion is one recorded row.
type Completion struct {
	RunID      string
	WorkerRank int
	CmdIndex   uint32
	CmpCount   uint64
	ObservedAt int64
}

// CompletionsForRun returns every recorded completion for runID, ordered by
// observation time.
func (s *Store) CompletionsForRun(ctx context.Context, runID string) ([]Completion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, worker_rank, cmd_index, cmp_count, observed_at FROM completions WHERE run_id = ? ORDER BY observed_at`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("hostaudit: query completions: %w", err)
	}
	defer rows.Close()

	var out []Completion
	for rows.Next() {
		var c Completion
		if err := rows.Scan(&c.RunID, &c.WorkerRank, &c.CmdIndex, &c.CmpCount, &c.ObservedAt); err != nil {
			return nil, fmt.Errorf("hostaudit: scan completion row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
