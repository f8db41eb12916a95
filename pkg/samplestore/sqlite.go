package samplestore

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"dfchart/pkg/extrema"
	"dfchart/pkg/fault"
	"dfchart/pkg/models"

	_ "modernc.org/sqlite"
)

const (
	memoryPath       = ":memory:"
	busyTimeoutMilli = 5000
)

// Window membership: the sample began or was last renewed inside [start, stop].
const overlapClause = `((begin_stamp BETWEEN ? AND ?) OR (renew_stamp BETWEEN ? AND ?))`

const seriesQuery = `
SELECT id, name, begin_stamp, renew_stamp, fs_total, fs_avail, inode_total, inode_avail
FROM stat_vfs
WHERE name = ? AND ` + overlapClause + `
ORDER BY id`

// extremaQuery ranks per-id groups by the aggregate, keeps the first groups,
// then numbers and returns them in id order. Rows with fs_total = 0 are
// excluded so the percentage is always defined.
const extremaQuery = `
SELECT id, begin_stamp, fs_total, agg, ROW_NUMBER() OVER (ORDER BY id) AS rn
FROM (
    SELECT id, begin_stamp, fs_total, CAST(%[1]s(fs_avail) AS REAL) AS agg
    FROM stat_vfs
    WHERE name = ? AND fs_total <> 0 AND ` + overlapClause + `
    GROUP BY id
    ORDER BY agg %[2]s, id ASC
    LIMIT ?
)
ORDER BY id`

const insertQuery = `
INSERT INTO stat_vfs (name, begin_stamp, renew_stamp, fs_total, fs_avail, inode_total, inode_avail)
VALUES (?, ?, ?, ?, ?, ?, ?)`

var extremaOrdering = map[extrema.Mode]struct{ aggregate, direction string }{
	extrema.Min: {"MIN", "ASC"},
	extrema.Max: {"MAX", "DESC"},
}

// Options tune how the SQLite store is opened.
type Options struct {
	// Migrate applies the embedded schema migrations on open.
	Migrate bool
	// TraceSQL logs every statement at debug level.
	TraceSQL bool
	Logger   zerolog.Logger
}

// SQLiteStore reads samples from the stat_vfs table.
type SQLiteStore struct {
	db       *sql.DB
	logger   zerolog.Logger
	traceSQL bool
}

// Open opens the sample database at path.
func Open(path string, opts Options) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty database path", fault.ErrStore)
	}

	database, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", fault.ErrStore, err)
	}
	if path == memoryPath {
		// Every pooled connection would otherwise see its own empty database.
		database.SetMaxOpenConns(1)
	}

	if err := database.PingContext(context.Background()); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("%w: failed to open database: %w", fault.ErrStore, err)
	}

	if opts.Migrate {
		if err := migrateUp(database, opts.Logger); err != nil {
			_ = database.Close()
			return nil, err
		}
	}

	return &SQLiteStore{db: database, logger: opts.Logger, traceSQL: opts.TraceSQL}, nil
}

func dsn(path string) string {
	params := url.Values{}
	params.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMilli))
	if path != memoryPath {
		params.Add("_pragma", "journal_mode(WAL)")
	}
	return "file:" + path + "?" + params.Encode()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) trace(query string, args ...interface{}) {
	if s.traceSQL {
		s.logger.Debug().Str("sql", strings.Join(strings.Fields(query), " ")).Interface("args", args).Msg("SQL")
	}
}

// Series returns the samples for name overlapping [start, stop] in id order.
func (s *SQLiteStore) Series(ctx context.Context, name string, start, stop int64) ([]models.Sample, error) {
	args := []interface{}{name, start, stop, start, stop}
	s.trace(seriesQuery, args...)

	rows, err := s.db.QueryContext(ctx, seriesQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrStore, err)
	}
	defer func() { _ = rows.Close() }()

	var samples []models.Sample
	for rows.Next() {
		var sample models.Sample
		if err := rows.Scan(&sample.ID, &sample.Name, &sample.BeginStamp, &sample.RenewStamp,
			&sample.FsTotal, &sample.FsAvail, &sample.InodeTotal, &sample.InodeAvail); err != nil {
			return nil, fmt.Errorf("%w: %w", fault.ErrStore, err)
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrStore, err)
	}

	return samples, nil
}

// Extrema runs the grouped min/max selection described by q.
func (s *SQLiteStore) Extrema(ctx context.Context, q extrema.Query) ([]models.ExtremaRow, error) {
	ordering, ok := extremaOrdering[q.Mode]
	if !ok {
		return nil, fmt.Errorf("%w: aggregate %q is neither min nor max", fault.ErrInvalidParameter, q.Mode)
	}

	query := fmt.Sprintf(extremaQuery, ordering.aggregate, ordering.direction)
	args := []interface{}{q.Name, q.Start, q.Stop, q.Start, q.Stop, q.Limit}
	s.trace(query, args...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrStore, err)
	}
	defer func() { _ = rows.Close() }()

	var result []models.ExtremaRow
	for rows.Next() {
		var (
			id, beginStamp     int64
			fsTotal, aggregate float64
			rank               int
		)
		if err := rows.Scan(&id, &beginStamp, &fsTotal, &aggregate, &rank); err != nil {
			return nil, fmt.Errorf("%w: %w", fault.ErrStore, err)
		}
		result = append(result, models.NewExtremaRow(id, beginStamp, fsTotal, aggregate, rank))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrStore, err)
	}

	return result, nil
}

// Mounts lists the distinct mount names that have samples.
func (s *SQLiteStore) Mounts(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT name FROM stat_vfs ORDER BY name`
	s.trace(query)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrStore, err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: %w", fault.ErrStore, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", fault.ErrStore, err)
	}

	return names, nil
}

// Append inserts a sample and returns its id. The chart pipeline never
// writes; this is the collector's entry point.
func (s *SQLiteStore) Append(ctx context.Context, sample models.Sample) (int64, error) {
	if sample.RenewStamp < sample.BeginStamp {
		sample.RenewStamp = sample.BeginStamp
	}

	args := []interface{}{sample.Name, sample.BeginStamp, sample.RenewStamp,
		sample.FsTotal, sample.FsAvail, sample.InodeTotal, sample.InodeAvail}
	s.trace(insertQuery, args...)

	result, err := s.db.ExecContext(ctx, insertQuery, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", fault.ErrStore, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", fault.ErrStore, err)
	}
	return id, nil
}

// Renew extends a plateau sample to stamp.
func (s *SQLiteStore) Renew(ctx context.Context, id, stamp int64) error {
	const query = `UPDATE stat_vfs SET renew_stamp = ? WHERE id = ? AND begin_stamp <= ?`
	s.trace(query, stamp, id, stamp)

	result, err := s.db.ExecContext(ctx, query, stamp, id, stamp)
	if err != nil {
		return fmt.Errorf("%w: %w", fault.ErrStore, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %w", fault.ErrStore, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: no sample %d to renew at %d", fault.ErrStore, id, stamp)
	}
	return nil
}
