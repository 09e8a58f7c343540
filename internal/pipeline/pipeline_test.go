package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JamesSample/icpw2/internal/db"
	"github.com/JamesSample/icpw2/internal/errs"
	"github.com/JamesSample/icpw2/internal/metrics"
	"github.com/JamesSample/icpw2/internal/models"
	"github.com/JamesSample/icpw2/internal/template/templatetest"
	"github.com/JamesSample/icpw2/internal/transform"
)

var jan1 = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func newStore(t *testing.T) *db.SQLite {
	t.Helper()
	ctx := context.Background()
	store, err := db.NewSQLite(ctx, filepath.Join(t.TempDir(), "resa2.db"))
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.UpsertStations(ctx, []models.Station{
		{StationID: 101, Code: "NO01"},
		{StationID: 102, Code: "SE07"},
	}))
	return store
}

func sampleTemplate() *templatetest.Builder {
	return templatetest.New(
		[2]string{"pH", "-"},
		[2]string{"Ca", "mg/L"},
		[2]string{"TOTP", "µgP/L"},
	).
		Row("NO01", "Birkenes", "2020.01.01", 7.1, 1.2, "<2").
		Row("NO01", "Birkenes", "2020.01.01", 7.3, nil, "3").
		Row("SE07", "Gårdsjön", "2020.01.01", 5.1, 0.8, ">50").
		Row("SE07", "Gårdsjön", "2020.03.05", 5.3, nil, nil)
}

func opts(t *testing.T, policy transform.Policy, dryRun bool) Options {
	return Options{Policy: policy, DryRun: dryRun, Logger: zaptest.NewLogger(t)}
}

func stats(t *testing.T, store db.Store) models.Stats {
	t.Helper()
	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	return st
}

func findValue(t *testing.T, res Result, station int64, date time.Time, method int) models.ChemistryValue {
	t.Helper()
	var id *int64
	for _, s := range res.WaterSamples {
		if s.StationID == station && s.Date.Equal(date) {
			id = s.WaterSampleID
		}
	}
	require.NotNil(t, id, "no sample for station %d", station)
	for _, v := range res.Values {
		if v.WaterSampleID != nil && *v.WaterSampleID == *id && v.MethodID == method {
			return v
		}
	}
	t.Fatalf("no value for station %d method %d", station, method)
	return models.ChemistryValue{}
}

func TestDryRunLeavesTablesUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	before := stats(t, store)

	res, err := Run(ctx, store, sampleTemplate().Save(t), opts(t, transform.PolicyMean, true))
	require.NoError(t, err)

	assert.Equal(t, before, stats(t, store))
	assert.True(t, res.DryRun)
	assert.Equal(t, 4, res.TemplateRows)
	assert.Equal(t, 9, res.Observations)
	assert.Equal(t, 2, res.DuplicatesCollapsed)
	assert.Zero(t, res.SamplesInserted)
	assert.Zero(t, res.ValuesInserted)
	require.Len(t, res.WaterSamples, 3)
	for _, s := range res.WaterSamples {
		assert.Nil(t, s.WaterSampleID)
	}
	assert.Len(t, res.Values, 7)
}

func TestRunCommitsSamplesAndValues(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	before := stats(t, store)

	res, err := Run(ctx, store, sampleTemplate().Save(t), opts(t, transform.PolicyMean, false))
	require.NoError(t, err)

	after := stats(t, store)
	assert.Equal(t, before.WaterSamples+3, after.WaterSamples)
	assert.Equal(t, before.ChemistryValues+7, after.ChemistryValues)
	assert.Equal(t, int64(3), res.SamplesInserted)
	assert.Equal(t, int64(7), res.ValuesInserted)

	ph := findValue(t, res, 101, jan1, 10268)
	assert.InDelta(t, 7.2, *ph.Value, 1e-9)

	totp := findValue(t, res, 101, jan1, 10275)
	assert.InDelta(t, 2.5, *totp.Value, 1e-9)
	assert.Equal(t, models.FlagBelowLOD, totp.Flag)

	above := findValue(t, res, 102, jan1, 10275)
	assert.Equal(t, models.FlagAboveLOD, above.Flag)

	stored, err := store.ListValues(ctx, *ph.WaterSampleID)
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}

func TestRunReusesExistingSamples(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	data := sampleTemplate().Bytes(t)

	first, err := RunReader(ctx, store, bytes.NewReader(data), opts(t, transform.PolicyDrop, false))
	require.NoError(t, err)
	second, err := RunReader(ctx, store, bytes.NewReader(data), opts(t, transform.PolicyDrop, false))
	require.NoError(t, err)

	assert.Equal(t, int64(3), first.SamplesInserted)
	assert.Zero(t, second.SamplesInserted)
	assert.Equal(t, first.WaterSamples, second.WaterSamples)
	assert.Equal(t, int64(3), stats(t, store).WaterSamples)

	ph := findValue(t, first, 101, jan1, 10268)
	assert.InDelta(t, 7.1, *ph.Value, 1e-12)
}

func TestDryRunAfterImportReportsStoredIDs(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	path := sampleTemplate().Save(t)

	_, err := Run(ctx, store, path, opts(t, transform.PolicyMean, false))
	require.NoError(t, err)
	res, err := Run(ctx, store, path, opts(t, transform.PolicyMean, true))
	require.NoError(t, err)
	for _, s := range res.WaterSamples {
		assert.NotNil(t, s.WaterSampleID)
	}
}

func TestUnmatchedStationFailsAndWritesNothing(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	before := stats(t, store)
	path := sampleTemplate().Row("FI03", "Hietajärvi", "2020.01.01", 6.1, nil, nil).Save(t)

	_, err := Run(ctx, store, path, opts(t, transform.PolicyMean, false))
	var unmatched *errs.UnmatchedStationError
	require.True(t, errors.As(err, &unmatched), "got %v", err)
	assert.Equal(t, []string{"FI03"}, unmatched.Codes)
	assert.Equal(t, before, stats(t, store))
}

func TestMalformedValueRollsBackSamples(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	before := stats(t, store)
	path := sampleTemplate().Row("SE07", "Gårdsjön", "2020.04.01", "n.d.", nil, nil).Save(t)

	res, err := Run(ctx, store, path, opts(t, transform.PolicyMean, true))
	require.NoError(t, err)
	assert.Equal(t, 1, res.MalformedValues)

	_, err = Run(ctx, store, path, opts(t, transform.PolicyMean, false))
	var malformed *errs.MalformedValueError
	require.True(t, errors.As(err, &malformed), "got %v", err)
	require.Len(t, malformed.Cells, 1)
	assert.Equal(t, "n.d.", malformed.Cells[0].Raw)
	assert.Equal(t, 8, malformed.Cells[0].Line)
	assert.Equal(t, before, stats(t, store))
}

func TestUnmappedParameterFails(t *testing.T) {
	path := templatetest.New([2]string{"pH", "-"}, [2]string{"Chl-a", "µg/L"}).
		Row("NO01", "Birkenes", "2020.01.01", 7.1, 3).
		Save(t)
	_, err := Run(context.Background(), newStore(t), path, opts(t, transform.PolicyMean, true))
	assert.ErrorIs(t, err, errs.ErrUnmappedParameter)
}

func TestInvalidPolicyFails(t *testing.T) {
	_, err := process(context.Background(), newStore(t), models.WideTable{}, opts(t, transform.Policy("first"), true))
	assert.ErrorIs(t, err, errs.ErrDuplicatePolicy)
}

func TestParseErrorFails(t *testing.T) {
	path := templatetest.New([2]string{"pH", "-"}).Row("NO01", "Birkenes", "01/01/2020", 7.1).Save(t)
	_, err := Run(context.Background(), newStore(t), path, opts(t, transform.PolicyMean, true))
	assert.ErrorIs(t, err, errs.ErrParse)
}

// failingStore wraps a store so that the chemistry insert fails after the
// samples were written inside the same transaction.
type failingStore struct {
	db.Store
}

func (f failingStore) Begin(ctx context.Context) (db.Tx, error) {
	tx, err := f.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return failingTx{Tx: tx}, nil
}

type failingTx struct {
	db.Tx
}

func (failingTx) InsertChemistryValues(context.Context, []models.ChemistryValue) (int64, error) {
	return 0, errors.New("disk full")
}

func TestChemistryFailureRollsBackSamples(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	before := stats(t, store)

	_, err := Run(ctx, failingStore{Store: store}, sampleTemplate().Save(t), opts(t, transform.PolicyMean, false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, before, stats(t, store))
}

func TestRunRecordsMetrics(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	reg := prometheus.NewRegistry()
	o := opts(t, transform.PolicyMean, false)
	o.Metrics = metrics.New(reg)

	_, err := Run(ctx, store, sampleTemplate().Save(t), o)
	require.NoError(t, err)

	expected := `
# HELP icpw_chemistry_values_inserted_total Chemistry values written by committed imports.
# TYPE icpw_chemistry_values_inserted_total counter
icpw_chemistry_values_inserted_total 7
# HELP icpw_water_samples_inserted_total Water samples written by committed imports.
# TYPE icpw_water_samples_inserted_total counter
icpw_water_samples_inserted_total 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, bytes.NewBufferString(expected),
		"icpw_chemistry_values_inserted_total", "icpw_water_samples_inserted_total"))
}
