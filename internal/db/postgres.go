package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JamesSample/icpw2/internal/models"
)

var (
	_ Store = (*Postgres)(nil)
	_ Tx    = (*pgTx)(nil)
)

// Postgres wraps a pgx pool on the RESA2 database.
type Postgres struct {
	pool   *pgxpool.Pool
	schema string
}

// NewPostgres creates a Store backed by a pgx pool.
func NewPostgres(ctx context.Context, databaseURL, schema string) (*Postgres, error) {
	if schema == "" {
		schema = DefaultSchema
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &Postgres{pool: pool, schema: schema}, nil
}

func (p *Postgres) table(name string) string {
	return pgx.Identifier{p.schema, name}.Sanitize()
}

// Close releases the pool resources.
func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Begin(ctx context.Context) (Tx, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &pgTx{tx: tx, p: p}, nil
}

// ListStations returns the reference stations ordered by code.
func (p *Postgres) ListStations(ctx context.Context) ([]models.Station, error) {
	rows, err := p.pool.Query(ctx, `
SELECT station_id, station_code, station_name
FROM `+p.table(stationsTable)+`
WHERE station_code IS NOT NULL
ORDER BY station_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stations := make([]models.Station, 0)
	for rows.Next() {
		var st models.Station
		if err := rows.Scan(&st.StationID, &st.Code, &st.Name); err != nil {
			return nil, err
		}
		stations = append(stations, st)
	}
	return stations, rows.Err()
}

// ListSamples returns stored samples, newest first.
func (p *Postgres) ListSamples(ctx context.Context, q SampleQuery) ([]models.WaterSample, error) {
	query := `SELECT water_sample_id, station_id, sample_date, depth1, depth2 FROM ` + p.table(samplesTable)
	args := []any{}
	if q.StationID != nil {
		args = append(args, *q.StationID)
		query += " WHERE station_id = $" + strconv.Itoa(len(args))
	}
	query += " ORDER BY sample_date DESC, water_sample_id DESC"
	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples := make([]models.WaterSample, 0)
	for rows.Next() {
		var id int64
		var ws models.WaterSample
		if err := rows.Scan(&id, &ws.StationID, &ws.Date, &ws.Depth1, &ws.Depth2); err != nil {
			return nil, err
		}
		ws.WaterSampleID = &id
		samples = append(samples, ws)
	}
	return normalizeSamples(samples), rows.Err()
}

// ListValues returns the chemistry values of one sample ordered by method.
func (p *Postgres) ListValues(ctx context.Context, waterSampleID int64) ([]models.ChemistryValue, error) {
	rows, err := p.pool.Query(ctx, `
SELECT water_sample_id, method_id, value, flag1
FROM `+p.table(chemistryTable)+`
WHERE water_sample_id = $1
ORDER BY method_id`, waterSampleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanValues(rows)
}

// Stats counts the rows of the three tables.
func (p *Postgres) Stats(ctx context.Context) (models.Stats, error) {
	var st models.Stats
	err := p.pool.QueryRow(ctx, `SELECT
    (SELECT COUNT(*) FROM `+p.table(stationsTable)+`),
    (SELECT COUNT(*) FROM `+p.table(samplesTable)+`),
    (SELECT COUNT(*) FROM `+p.table(chemistryTable)+`)`).
		Scan(&st.Stations, &st.WaterSamples, &st.ChemistryValues)
	return st, err
}

type pgTx struct {
	tx pgx.Tx
	p  *Postgres
}

func (t *pgTx) StationIDs(ctx context.Context) (map[string]int64, error) {
	rows, err := t.tx.Query(ctx, `SELECT station_code, station_id FROM `+t.p.table(stationsTable))
	if err != nil {
		return nil, fmt.Errorf("fetch stations: %w", err)
	}
	defer rows.Close()

	lookup := make(map[string]int64)
	for rows.Next() {
		var code *string
		var id int64
		if err := rows.Scan(&code, &id); err != nil {
			return nil, fmt.Errorf("scan station: %w", err)
		}
		if code != nil {
			lookup[*code] = id
		}
	}
	return lookup, rows.Err()
}

func (t *pgTx) InsertWaterSamples(ctx context.Context, samples []models.WaterSample) (int64, error) {
	if len(samples) == 0 {
		return 0, nil
	}

	table := t.p.table(samplesTable)
	query := `INSERT INTO ` + table + ` (station_id, sample_date, depth1, depth2)
SELECT $1::bigint, $2::date, $3::double precision, $4::double precision
WHERE NOT EXISTS (
    SELECT 1 FROM ` + table + `
    WHERE station_id = $1 AND sample_date = $2 AND depth1 = $3 AND depth2 = $4)`

	batch := &pgx.Batch{}
	for _, s := range samples {
		batch.Queue(query, s.StationID, s.Date, s.Depth1, s.Depth2)
	}

	res := t.tx.SendBatch(ctx, batch)
	defer res.Close()

	var inserted int64
	for range samples {
		tag, err := res.Exec()
		if err != nil {
			return inserted, fmt.Errorf("insert water samples: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

func (t *pgTx) WaterSamples(ctx context.Context, stationIDs []int64) ([]models.WaterSample, error) {
	samples := make([]models.WaterSample, 0)
	if len(stationIDs) == 0 {
		return samples, nil
	}

	rows, err := t.tx.Query(ctx, `
SELECT water_sample_id, station_id, sample_date
FROM `+t.p.table(samplesTable)+`
WHERE station_id = ANY($1) AND depth1 = 0 AND depth2 = 0`, stationIDs)
	if err != nil {
		return nil, fmt.Errorf("fetch water samples: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var ws models.WaterSample
		if err := rows.Scan(&id, &ws.StationID, &ws.Date); err != nil {
			return nil, fmt.Errorf("scan water sample: %w", err)
		}
		ws.WaterSampleID = &id
		samples = append(samples, ws)
	}
	return normalizeSamples(samples), rows.Err()
}

func (t *pgTx) InsertChemistryValues(ctx context.Context, values []models.ChemistryValue) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	n, err := t.tx.CopyFrom(
		ctx,
		pgx.Identifier{t.p.schema, chemistryTable},
		[]string{"water_sample_id", "method_id", "value", "flag1"},
		pgx.CopyFromSlice(len(values), func(i int) ([]any, error) {
			v := values[i]
			return []any{v.WaterSampleID, v.MethodID, v.Value, v.Flag.MarkerPtr()}, nil
		}),
	)
	if err != nil {
		return n, fmt.Errorf("copy chemistry values: %w", err)
	}
	return n, nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

func scanValues(rows pgx.Rows) ([]models.ChemistryValue, error) {
	values := make([]models.ChemistryValue, 0)
	for rows.Next() {
		var id int64
		var v models.ChemistryValue
		var flag *string
		if err := rows.Scan(&id, &v.MethodID, &v.Value, &flag); err != nil {
			return nil, err
		}
		v.WaterSampleID = &id
		if flag != nil {
			v.Flag = models.FlagFromMarker(*flag)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
