package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/JamesSample/icpw2/internal/models"
)

var (
	_ Store = (*SQLite)(nil)
	_ Tx    = (*sqliteTx)(nil)
)

const sqliteDateLayout = "2006-01-02"

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS stations (
    station_id   INTEGER PRIMARY KEY,
    station_code TEXT NOT NULL UNIQUE,
    station_name TEXT
);
CREATE TABLE IF NOT EXISTS water_samples (
    water_sample_id INTEGER PRIMARY KEY AUTOINCREMENT,
    station_id      INTEGER NOT NULL REFERENCES stations(station_id),
    sample_date     TEXT NOT NULL,
    depth1          REAL NOT NULL DEFAULT 0,
    depth2          REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_water_samples_station_date
    ON water_samples(station_id, sample_date);
CREATE TABLE IF NOT EXISTS water_chemistry_values2 (
    water_sample_id INTEGER NOT NULL REFERENCES water_samples(water_sample_id),
    method_id       INTEGER NOT NULL,
    value           REAL NOT NULL,
    flag1           TEXT
);`

// SQLite is a single-file copy of the RESA2 tables. Writes go through one
// connection; reads use a separate query-only pool so they are served from
// the last committed state while an import transaction is open.
type SQLite struct {
	db   *sql.DB
	read *sql.DB
	path string
}

// NewSQLite opens (creating if needed) the database at path and ensures the
// tables exist.
func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		path = "icpw.db"
	}
	if !strings.HasPrefix(path, "file:") && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", sqliteDSN(path, false))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps :memory: databases and transactions on the same handle.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	read := db
	if path != ":memory:" {
		read, err = sql.Open("sqlite", sqliteDSN(path, true))
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("open sqlite reader: %w", err)
		}
		read.SetMaxOpenConns(4)
	}
	return &SQLite{db: db, read: read, path: path}, nil
}

// sqliteDSN adds the connection pragmas: WAL so readers never wait on the
// writer, a busy timeout, and query_only for the read pool.
func sqliteDSN(path string, readOnly bool) string {
	if path == ":memory:" {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	dsn := path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if readOnly {
		dsn += "&_pragma=query_only(1)"
	}
	return dsn
}

func (s *SQLite) Close() {
	if s.read != s.db {
		_ = s.read.Close()
	}
	_ = s.db.Close()
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.read.PingContext(ctx)
}

// UpsertStations seeds the reference station table.
func (s *SQLite) UpsertStations(ctx context.Context, stations []models.Station) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, st := range stations {
		if _, err := tx.ExecContext(ctx, `INSERT INTO stations (station_id, station_code, station_name)
VALUES (?, ?, ?)
ON CONFLICT (station_id) DO UPDATE
SET station_code = excluded.station_code,
    station_name = excluded.station_name`, st.StationID, st.Code, st.Name); err != nil {
			return fmt.Errorf("upsert station %s: %w", st.Code, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &sqliteTx{tx: tx}, nil
}

func (s *SQLite) ListStations(ctx context.Context) ([]models.Station, error) {
	rows, err := s.read.QueryContext(ctx, `SELECT station_id, station_code, station_name FROM stations ORDER BY station_code`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	stations := make([]models.Station, 0)
	for rows.Next() {
		var st models.Station
		var name sql.NullString
		if err := rows.Scan(&st.StationID, &st.Code, &name); err != nil {
			return nil, err
		}
		if name.Valid {
			st.Name = &name.String
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

func (s *SQLite) ListSamples(ctx context.Context, q SampleQuery) ([]models.WaterSample, error) {
	query := `SELECT water_sample_id, station_id, sample_date, depth1, depth2 FROM water_samples`
	args := []any{}
	if q.StationID != nil {
		query += " WHERE station_id = ?"
		args = append(args, *q.StationID)
	}
	query += " ORDER BY sample_date DESC, water_sample_id DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	samples := make([]models.WaterSample, 0)
	for rows.Next() {
		ws, err := scanSQLiteSample(rows, true)
		if err != nil {
			return nil, err
		}
		samples = append(samples, ws)
	}
	return samples, rows.Err()
}

func (s *SQLite) ListValues(ctx context.Context, waterSampleID int64) ([]models.ChemistryValue, error) {
	rows, err := s.read.QueryContext(ctx, `SELECT water_sample_id, method_id, value, flag1
FROM water_chemistry_values2
WHERE water_sample_id = ?
ORDER BY method_id`, waterSampleID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	values := make([]models.ChemistryValue, 0)
	for rows.Next() {
		var id int64
		var value float64
		var flag sql.NullString
		var v models.ChemistryValue
		if err := rows.Scan(&id, &v.MethodID, &value, &flag); err != nil {
			return nil, err
		}
		v.WaterSampleID = &id
		v.Value = &value
		if flag.Valid {
			v.Flag = models.FlagFromMarker(flag.String)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func (s *SQLite) Stats(ctx context.Context) (models.Stats, error) {
	var st models.Stats
	err := s.read.QueryRowContext(ctx, `SELECT
    (SELECT COUNT(*) FROM stations),
    (SELECT COUNT(*) FROM water_samples),
    (SELECT COUNT(*) FROM water_chemistry_values2)`).
		Scan(&st.Stations, &st.WaterSamples, &st.ChemistryValues)
	return st, err
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) StationIDs(ctx context.Context) (map[string]int64, error) {
	rows, err := t.tx.QueryContext(ctx, `SELECT station_code, station_id FROM stations`)
	if err != nil {
		return nil, fmt.Errorf("fetch stations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	lookup := make(map[string]int64)
	for rows.Next() {
		var code string
		var id int64
		if err := rows.Scan(&code, &id); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		lookup[code] = id
	}
	return lookup, rows.Err()
}

func (t *sqliteTx) InsertWaterSamples(ctx context.Context, samples []models.WaterSample) (int64, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	stmt, err := t.tx.PrepareContext(ctx, `INSERT INTO water_samples (station_id, sample_date, depth1, depth2)
SELECT ?1, ?2, ?3, ?4
WHERE NOT EXISTS (
    SELECT 1 FROM water_samples
    WHERE station_id = ?1 AND sample_date = ?2 AND depth1 = ?3 AND depth2 = ?4)`)
	if err != nil {
		return 0, fmt.Errorf("prepare water samples: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	var inserted int64
	for _, s := range samples {
		res, err := stmt.ExecContext(ctx, s.StationID, s.Date.Format(sqliteDateLayout), s.Depth1, s.Depth2)
		if err != nil {
			return inserted, fmt.Errorf("insert water samples: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, err
		}
		inserted += n
	}
	return inserted, nil
}

func (t *sqliteTx) WaterSamples(ctx context.Context, stationIDs []int64) ([]models.WaterSample, error) {
	samples := make([]models.WaterSample, 0)
	if len(stationIDs) == 0 {
		return samples, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(stationIDs)), ",")
	args := make([]any, len(stationIDs))
	for i, id := range stationIDs {
		args[i] = id
	}
	rows, err := t.tx.QueryContext(ctx, `SELECT water_sample_id, station_id, sample_date
FROM water_samples
WHERE station_id IN (`+placeholders+`) AND depth1 = 0 AND depth2 = 0`, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch water samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		ws, err := scanSQLiteSample(rows, false)
		if err != nil {
			return nil, fmt.Errorf("scan water sample: %w", err)
		}
		samples = append(samples, ws)
	}
	return samples, rows.Err()
}

func (t *sqliteTx) InsertChemistryValues(ctx context.Context, values []models.ChemistryValue) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	stmt, err := t.tx.PrepareContext(ctx, `INSERT INTO water_chemistry_values2 (water_sample_id, method_id, value, flag1) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare chemistry values: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	var inserted int64
	for _, v := range values {
		if _, err := stmt.ExecContext(ctx, v.WaterSampleID, v.MethodID, v.Value, v.Flag.MarkerPtr()); err != nil {
			return inserted, fmt.Errorf("insert chemistry values: %w", err)
		}
		inserted++
	}
	return inserted, nil
}

func (t *sqliteTx) Commit(context.Context) error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback(context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteSample(row rowScanner, withDepth bool) (models.WaterSample, error) {
	var id int64
	var date string
	var ws models.WaterSample
	dest := []any{&id, &ws.StationID, &date}
	if withDepth {
		dest = append(dest, &ws.Depth1, &ws.Depth2)
	}
	if err := row.Scan(dest...); err != nil {
		return models.WaterSample{}, err
	}
	d, err := time.Parse(sqliteDateLayout, date)
	if err != nil {
		return models.WaterSample{}, fmt.Errorf("sample %d date %q: %w", id, date, err)
	}
	ws.WaterSampleID = &id
	ws.Date = d
	return ws, nil
}
