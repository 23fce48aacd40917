// Package postgres provides a PostgreSQL recorder.Store. It uses pgx/v5
// for connection pooling, JSONB for results and one row per frame.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rhuss/streamwire/pkg/debug"
	"github.com/rhuss/streamwire/pkg/frame"
	"github.com/rhuss/streamwire/pkg/recorder"
)

// Store is a PostgreSQL-backed recorder.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ recorder.Store = (*Store)(nil)

// New creates a store with the given configuration. If MigrateOnStart is
// true, schema migrations are applied before New returns.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}
	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}
	return s, nil
}

// Save persists a recording and its frames in one transaction.
func (s *Store) Save(ctx context.Context, rec *recorder.Recording) error {
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, `
		INSERT INTO recordings (id, kind, protocol, status, incomplete, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		rec.ID, rec.Kind, rec.Protocol, rec.Status, rec.Incomplete, nullJSON(rec.Result), created,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return recorder.ErrConflict
		}
		return fmt.Errorf("inserting recording: %w", err)
	}

	rows := make([][]any, len(rec.Frames))
	for i, f := range rec.Frames {
		rows[i] = []any{rec.ID, i, f.Event, f.ID, []byte(f.Data)}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"recording_frames"},
		[]string{"recording_id", "position", "event", "frame_id", "data"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return fmt.Errorf("inserting frames: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing recording: %w", err)
	}
	debug.Log(debug.Recorder, "recording saved", "id", rec.ID, "frames", len(rec.Frames))
	return nil
}

const recordingColumns = `id, kind, protocol, status, incomplete, result, created_at`

func scanRecording(row pgx.Row) (*recorder.Recording, error) {
	var rec recorder.Recording
	var result []byte
	if err := row.Scan(&rec.ID, &rec.Kind, &rec.Protocol, &rec.Status, &rec.Incomplete, &result, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if len(result) > 0 {
		rec.Result = result
	}
	return &rec, nil
}

// Get returns a recording with its frames.
func (s *Store) Get(ctx context.Context, id string) (*recorder.Recording, error) {
	rec, err := scanRecording(s.pool.QueryRow(ctx,
		"SELECT "+recordingColumns+" FROM recordings WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, recorder.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying recording: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		"SELECT event, frame_id, data FROM recording_frames WHERE recording_id = $1 ORDER BY position", id)
	if err != nil {
		return nil, fmt.Errorf("querying frames: %w", err)
	}
	rec.Frames, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (frame.Frame, error) {
		var f frame.Frame
		var data []byte
		err := row.Scan(&f.Event, &f.ID, &data)
		f.Data = data
		return f, err
	})
	if err != nil {
		return nil, fmt.Errorf("reading frames: %w", err)
	}
	return rec, nil
}

// List returns recordings newest first without their frames.
func (s *Store) List(ctx context.Context, opts recorder.ListOptions) (*recorder.RecordingList, error) {
	var where []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Kind != "" {
		where = append(where, "kind = "+arg(opts.Kind))
	}
	if opts.After != "" {
		where = append(where, "(created_at, id) < (SELECT created_at, id FROM recordings WHERE id = "+arg(opts.After)+")")
	}

	query := "SELECT " + recordingColumns + " FROM recordings"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	limit := opts.PageLimit()
	query += " ORDER BY created_at DESC, id DESC LIMIT " + arg(limit+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing recordings: %w", err)
	}
	data, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*recorder.Recording, error) {
		return scanRecording(row)
	})
	if err != nil {
		return nil, fmt.Errorf("reading recordings: %w", err)
	}

	page := &recorder.RecordingList{Data: data, HasMore: len(data) > limit}
	if page.HasMore {
		page.Data = data[:limit]
	}
	if page.Data == nil {
		page.Data = []*recorder.Recording{}
	}
	return page, nil
}

// Delete removes a recording and its frames.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.pool.Exec(ctx, "DELETE FROM recordings WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting recording: %w", err)
	}
	if result.RowsAffected() == 0 {
		return recorder.ErrNotFound
	}
	return nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// nullJSON converts an empty result to nil for the nullable JSONB column.
func nullJSON(b []byte) *string {
	if len(b) == 0 {
		return nil
	}
	str := string(b)
	return &str
}

// isDuplicateKey reports a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
