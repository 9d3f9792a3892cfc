// Package checkpoint implements the durable per-(device, algorithm)
// progress store (spec.md §4.6, C6): a SQLite-backed key-value store
// that lets a multi-hour wipe resume after an interruption instead of
// restarting from pass zero.
package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

// Checkpoint is a durable record of wipe progress, uniquely keyed by
// (DevicePath, Algorithm). Saving replaces the prior record for that key.
type Checkpoint struct {
	ID          string
	DevicePath  string
	Algorithm   string
	OperationID string
	TotalPasses int
	TotalSize   int64
	CurrentPass int
	PassOffset  int64 // bytes already written within CurrentPass, for mid-pass resume
	BytesWritten int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ErrorCount  int
	LastError   string
	State       json.RawMessage
}

// Stats summarizes the checkpoint store's contents.
type Stats struct {
	TotalRecords int
	OldestUpdate time.Time
	NewestUpdate time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	id            TEXT PRIMARY KEY,
	device_path   TEXT NOT NULL,
	algorithm     TEXT NOT NULL,
	operation_id  TEXT NOT NULL,
	total_passes  INTEGER NOT NULL,
	total_size    INTEGER NOT NULL,
	current_pass  INTEGER NOT NULL,
	pass_offset   INTEGER NOT NULL DEFAULT 0,
	bytes_written INTEGER NOT NULL,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL,
	error_count   INTEGER NOT NULL DEFAULT 0,
	last_error    TEXT,
	state         TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_checkpoints_device_algo
	ON checkpoints(device_path, algorithm);
`

// Store is a transactional checkpoint store backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a checkpoint store at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "checkpoint: open database")
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: serialize writers ourselves rather than fight SQLITE_BUSY
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "checkpoint: apply schema")
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces the checkpoint for (DevicePath, Algorithm).
// If ID is empty, a new UUID is assigned. CreatedAt is preserved across
// updates to the same key; UpdatedAt is always refreshed to now.
func (s *Store) Save(ctx context.Context, cp *Checkpoint) error {
	now := time.Now().UTC()
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		if existing, err := s.Load(ctx, cp.DevicePath, cp.Algorithm); err == nil && existing != nil {
			cp.CreatedAt = existing.CreatedAt
			cp.ID = existing.ID
		} else {
			cp.CreatedAt = now
		}
	}
	cp.UpdatedAt = now

	state := cp.State
	if state == nil {
		state = json.RawMessage("{}")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO checkpoints
			(id, device_path, algorithm, operation_id, total_passes, total_size,
			 current_pass, pass_offset, bytes_written, created_at, updated_at, error_count,
			 last_error, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_path, algorithm) DO UPDATE SET
			id = excluded.id,
			operation_id = excluded.operation_id,
			total_passes = excluded.total_passes,
			total_size = excluded.total_size,
			current_pass = excluded.current_pass,
			pass_offset = excluded.pass_offset,
			bytes_written = excluded.bytes_written,
			updated_at = excluded.updated_at,
			error_count = excluded.error_count,
			last_error = excluded.last_error,
			state = excluded.state
	`,
		cp.ID, cp.DevicePath, cp.Algorithm, cp.OperationID, cp.TotalPasses, cp.TotalSize,
		cp.CurrentPass, cp.PassOffset, cp.BytesWritten, cp.CreatedAt.Format(time.RFC3339Nano), cp.UpdatedAt.Format(time.RFC3339Nano),
		cp.ErrorCount, nullableString(cp.LastError), string(state),
	)
	if err != nil {
		return errors.Wrap(err, "checkpoint: save")
	}
	return nil
}

// Load returns the checkpoint for (devicePath, algorithm), or nil if
// none exists.
func (s *Store) Load(ctx context.Context, devicePath, algorithm string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, device_path, algorithm, operation_id, total_passes, total_size,
		       current_pass, pass_offset, bytes_written, created_at, updated_at, error_count,
		       last_error, state
		FROM checkpoints WHERE device_path = ? AND algorithm = ?
	`, devicePath, algorithm)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "checkpoint: load")
	}
	return cp, nil
}

// Delete removes the checkpoint for (devicePath, algorithm), if present.
func (s *Store) Delete(ctx context.Context, devicePath, algorithm string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE device_path = ? AND algorithm = ?`, devicePath, algorithm)
	if err != nil {
		return errors.Wrap(err, "checkpoint: delete")
	}
	return nil
}

// DeleteByDevice removes all checkpoints for devicePath across every
// algorithm.
func (s *Store) DeleteByDevice(ctx context.Context, devicePath string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE device_path = ?`, devicePath)
	if err != nil {
		return errors.Wrap(err, "checkpoint: delete by device")
	}
	return nil
}

// ListAll returns every checkpoint currently stored, ordered by
// updated_at descending.
func (s *Store) ListAll(ctx context.Context) ([]*Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, device_path, algorithm, operation_id, total_passes, total_size,
		       current_pass, pass_offset, bytes_written, created_at, updated_at, error_count,
		       last_error, state
		FROM checkpoints ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "checkpoint: list all")
	}
	defer rows.Close()

	var out []*Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, errors.Wrap(err, "checkpoint: scan row")
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// CleanupStale deletes checkpoints whose updated_at is older than age
// and returns the number of rows removed. A stale checkpoint is almost
// always the residue of a process that crashed hard enough to skip its
// own cleanup (e.g. a killed -9 wipe); age should be well beyond any
// realistic single-pass duration.
func (s *Store) CleanupStale(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-age).Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx, `DELETE FROM checkpoints WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "checkpoint: cleanup stale")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "checkpoint: rows affected")
	}
	return int(n), nil
}

// Stats reports aggregate information about the store's contents.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	var oldest, newest sql.NullString
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), MIN(updated_at), MAX(updated_at) FROM checkpoints
	`)
	if err := row.Scan(&stats.TotalRecords, &oldest, &newest); err != nil {
		return Stats{}, errors.Wrap(err, "checkpoint: stats")
	}
	if oldest.Valid {
		stats.OldestUpdate, _ = time.Parse(time.RFC3339Nano, oldest.String)
	}
	if newest.Valid {
		stats.NewestUpdate, _ = time.Parse(time.RFC3339Nano, newest.String)
	}
	return stats, nil
}

// DefaultSaveInterval is the spec's default wall-clock checkpoint
// cadence: a save is due once this much time has passed since the last
// one, independent of how many bytes were written.
const DefaultSaveInterval = 30 * time.Second

// DefaultSaveBytesThreshold is the spec's default byte cadence: a save
// is due once this many bytes have been written since the last one.
const DefaultSaveBytesThreshold = 1 << 30 // 1 GiB

// ShouldSave reports whether enough progress has accumulated since the
// last save to warrant another durable write, trading I/O overhead
// against how much work would be repeated after a crash. A save is due
// once deltaBytes reaches thresholdBytes OR sinceLastSave reaches
// timeInterval, matching the spec's "bytes since last save >=
// bytes_interval OR wall time since last save >= time_interval" cadence.
func ShouldSave(deltaBytes, thresholdBytes int64, sinceLastSave, timeInterval time.Duration) bool {
	return deltaBytes >= thresholdBytes || sinceLastSave >= timeInterval
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scanner) (*Checkpoint, error) {
	var cp Checkpoint
	var createdAt, updatedAt string
	var lastError sql.NullString
	var state string

	if err := row.Scan(
		&cp.ID, &cp.DevicePath, &cp.Algorithm, &cp.OperationID, &cp.TotalPasses, &cp.TotalSize,
		&cp.CurrentPass, &cp.PassOffset, &cp.BytesWritten, &createdAt, &updatedAt, &cp.ErrorCount,
		&lastError, &state,
	); err != nil {
		return nil, err
	}

	var err error
	if cp.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, errors.Wrap(err, "checkpoint: parse created_at")
	}
	if cp.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, errors.Wrap(err, "checkpoint: parse updated_at")
	}
	if lastError.Valid {
		cp.LastError = lastError.String
	}
	cp.State = json.RawMessage(state)
	return &cp, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
