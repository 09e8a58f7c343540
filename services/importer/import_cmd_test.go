package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/JamesSample/icpw2/internal/db"
	"github.com/JamesSample/icpw2/internal/errs"
	"github.com/JamesSample/icpw2/internal/models"
	"github.com/JamesSample/icpw2/internal/pipeline"
	"github.com/JamesSample/icpw2/internal/template/templatetest"
	"github.com/JamesSample/icpw2/internal/transform"
	"github.com/JamesSample/icpw2/services/importer/internal/config"
)

func setup(t *testing.T, dryRun bool) (string, string) {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "resa2.db")
	store, err := db.NewSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.UpsertStations(ctx, []models.Station{{StationID: 101, Code: "NO01"}}))
	store.Close()

	logger = zaptest.NewLogger(t)
	cfg = config.Config{
		DatabaseURL: "sqlite://" + path,
		Duplicates:  transform.PolicyMean,
		DryRun:      dryRun,
		Timeout:     time.Minute,
		HTTPTimeout: time.Second,
	}

	tmpl := templatetest.New([2]string{"pH", "-"}, [2]string{"Ca", "mg/L"}).
		Row("NO01", "Birkenes", "2020.01.01", 7.1, 1.2).
		Row("NO01", "Birkenes", "2020.01.01", 7.3, 1.4).
		Save(t)
	return path, tmpl
}

func countSamples(t *testing.T, path string) int64 {
	t.Helper()
	store, err := db.NewSQLite(context.Background(), path)
	require.NoError(t, err)
	defer store.Close()
	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	return st.WaterSamples
}

func TestRunImportDryRunByDefault(t *testing.T) {
	dbPath, tmpl := setup(t, true)

	var out bytes.Buffer
	require.NoError(t, runImport(context.Background(), &out, importOptions{source: tmpl}))
	assert.Contains(t, out.String(), "dry-run")
	assert.Contains(t, out.String(), "duplicates collapsed: 2 (mean)")
	assert.Zero(t, countSamples(t, dbPath))
}

func TestRunImportApplyJSON(t *testing.T) {
	dbPath, tmpl := setup(t, false)

	var out bytes.Buffer
	require.NoError(t, runImport(context.Background(), &out, importOptions{source: tmpl, asJSON: true}))

	var res pipeline.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	assert.False(t, res.DryRun)
	assert.Equal(t, int64(1), res.SamplesInserted)
	assert.Equal(t, int64(2), res.ValuesInserted)
	assert.Equal(t, int64(1), countSamples(t, dbPath))
}

func TestRunImportMissingSource(t *testing.T) {
	setup(t, true)
	err := runImport(context.Background(), &bytes.Buffer{}, importOptions{source: filepath.Join(t.TempDir(), "nope.xlsx")})
	assert.Error(t, err)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, exitUsage, exitCode(withCode(exitUsage, errors.New("bad flag"))))
	assert.Equal(t, exitData, exitCode(fmt.Errorf("map stations: %w", &errs.UnmatchedStationError{Codes: []string{"X"}})))
	assert.Equal(t, exitError, exitCode(errors.New("connection refused")))
	assert.Nil(t, withCode(exitUsage, nil))
}

func TestMethodsCommandListsTable(t *testing.T) {
	cmd := newMethodsCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "TOTP_µgP/L")
	assert.Contains(t, out.String(), "10268")
}
