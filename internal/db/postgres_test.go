package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JamesSample/icpw2/internal/models"
)

// TestPostgresRollback runs against a scratch RESA2 copy named by
// ICPW_TEST_DATABASE_URL and never commits.
func TestPostgresRollback(t *testing.T) {
	url := os.Getenv("ICPW_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("ICPW_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := NewPostgres(ctx, url, os.Getenv("ICPW_TEST_DATABASE_SCHEMA"))
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Ping(ctx))

	before, err := store.Stats(ctx)
	require.NoError(t, err)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = tx.Rollback(ctx) }()

	lookup, err := tx.StationIDs(ctx)
	require.NoError(t, err)
	if len(lookup) == 0 {
		t.Skip("reference database has no stations")
	}
	var stationID int64
	for _, id := range lookup {
		stationID = id
		break
	}

	date := time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
	n, err := tx.InsertWaterSamples(ctx, []models.WaterSample{{StationID: stationID, Date: date}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	samples, err := tx.WaterSamples(ctx, []int64{stationID})
	require.NoError(t, err)
	var found *int64
	for _, s := range samples {
		if s.Date.Equal(date) {
			found = s.WaterSampleID
		}
	}
	require.NotNil(t, found)

	v := 1.5
	copied, err := tx.InsertChemistryValues(ctx, []models.ChemistryValue{{WaterSampleID: found, MethodID: 10268, Value: &v}})
	require.NoError(t, err)
	assert.Equal(t, int64(1), copied)

	require.NoError(t, tx.Rollback(ctx))
	after, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
