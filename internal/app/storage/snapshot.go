package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/krashnark/gw2tracker/internal/app"
)

// SnapshotRecord identifies a stored snapshot without its content.
type SnapshotRecord struct {
	ID         int64
	CapturedAt time.Time
}

// CreateSnapshot stores a snapshot and returns its id.
// Capture times are unique; storing a second snapshot with the same
// capture time fails.
func (st *Storage) CreateSnapshot(ctx context.Context, snapshot *app.Snapshot) (int64, error) {
	if snapshot == nil {
		return 0, fmt.Errorf("CreateSnapshot: nil snapshot: %w", app.ErrInvalid)
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return 0, fmt.Errorf("CreateSnapshot: %w", err)
	}
	r, err := st.db.ExecContext(
		ctx,
		"INSERT INTO snapshots (captured_at, data) VALUES (?, ?)",
		snapshot.CapturedAt(), data,
	)
	if err != nil {
		return 0, fmt.Errorf("CreateSnapshot %v: %w", snapshot.CapturedAt(), err)
	}
	id, err := r.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("CreateSnapshot: %w", err)
	}
	return id, nil
}

// GetSnapshot returns a stored snapshot by id.
func (st *Storage) GetSnapshot(ctx context.Context, id int64) (*app.Snapshot, error) {
	var data []byte
	err := st.db.QueryRowContext(ctx, "SELECT data FROM snapshots WHERE id = ?", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = app.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot %d: %w", id, err)
	}
	var snapshot app.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("get snapshot %d: %w", id, err)
	}
	return &snapshot, nil
}

// ListSnapshots returns all stored snapshots, newest first.
func (st *Storage) ListSnapshots(ctx context.Context) ([]SnapshotRecord, error) {
	rows, err := st.db.QueryContext(ctx, "SELECT id, captured_at FROM snapshots ORDER BY captured_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()
	var records []SnapshotRecord
	for rows.Next() {
		var r SnapshotRecord
		if err := rows.Scan(&r.ID, &r.CapturedAt); err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		r.CapturedAt = r.CapturedAt.UTC()
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	return records, nil
}

// DeleteSnapshot removes a stored snapshot.
func (st *Storage) DeleteSnapshot(ctx context.Context, id int64) error {
	if _, err := st.db.ExecContext(ctx, "DELETE FROM snapshots WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete snapshot %d: %w", id, err)
	}
	return nil
}
