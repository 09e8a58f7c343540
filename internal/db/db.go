// Package db stores water samples and chemistry values in the RESA2
// reference database. Postgres is the production backend; SQLite serves local
// staging databases and tests.
package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/JamesSample/icpw2/internal/models"
)

const (
	stationsTable  = "stations"
	samplesTable   = "water_samples"
	chemistryTable = "water_chemistry_values2"

	// DefaultSchema is the Postgres schema holding the RESA2 tables.
	DefaultSchema = "resa2"
)

// Tx is one import's unit of work. Nothing written through it is visible to
// others until Commit; Rollback after Commit is a no-op.
type Tx interface {
	// StationIDs returns the reference lookup station_code -> station_id.
	StationIDs(ctx context.Context) (map[string]int64, error)
	// InsertWaterSamples stores samples that do not exist yet for the same
	// station, date and depths, returning how many rows were added.
	InsertWaterSamples(ctx context.Context, samples []models.WaterSample) (int64, error)
	// WaterSamples returns the stored surface samples of the given stations.
	WaterSamples(ctx context.Context, stationIDs []int64) ([]models.WaterSample, error)
	// InsertChemistryValues bulk inserts values and returns the row count.
	InsertChemistryValues(ctx context.Context, values []models.ChemistryValue) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Beginner starts import transactions.
type Beginner interface {
	Begin(ctx context.Context) (Tx, error)
}

// SampleQuery filters ListSamples.
type SampleQuery struct {
	StationID *int64
	Limit     int
}

// Store is a database holding the RESA2 station, sample and chemistry tables.
type Store interface {
	Beginner
	ListStations(ctx context.Context) ([]models.Station, error)
	ListSamples(ctx context.Context, q SampleQuery) ([]models.WaterSample, error)
	ListValues(ctx context.Context, waterSampleID int64) ([]models.ChemistryValue, error)
	Stats(ctx context.Context) (models.Stats, error)
	Ping(ctx context.Context) error
	Close()
}

// Open connects to the database named by url. "sqlite://<path>" and
// "file:<path>" open a SQLite database; anything else is handed to pgx.
func Open(ctx context.Context, url, schema string) (Store, error) {
	switch {
	case strings.HasPrefix(url, "sqlite://"):
		return NewSQLite(ctx, strings.TrimPrefix(url, "sqlite://"))
	case strings.HasPrefix(url, "file:"):
		return NewSQLite(ctx, url)
	case url == "":
		return nil, fmt.Errorf("database url is empty")
	default:
		return NewPostgres(ctx, url, schema)
	}
}

func normalizeSamples(samples []models.WaterSample) []models.WaterSample {
	for i := range samples {
		samples[i].Date = models.DateOnly(samples[i].Date)
	}
	return samples
}
