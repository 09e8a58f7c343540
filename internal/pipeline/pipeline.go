// Package pipeline runs a template import end to end: read the Data sheet,
// map methods and stations, reshape to long form, split LOD flags, collapse
// duplicates and write samples and values in a single transaction.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JamesSample/icpw2/internal/db"
	"github.com/JamesSample/icpw2/internal/errs"
	"github.com/JamesSample/icpw2/internal/metrics"
	"github.com/JamesSample/icpw2/internal/models"
	"github.com/JamesSample/icpw2/internal/template"
	"github.com/JamesSample/icpw2/internal/transform"
)

// Options control a single import.
type Options struct {
	Policy transform.Policy
	// DryRun performs every step but rolls the transaction back, so nothing
	// is written.
	DryRun  bool
	Logger  *zap.Logger
	Metrics *metrics.Recorder
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Result is what an import produced, whether or not it was committed. In a
// dry run, samples not yet in the database have a nil WaterSampleID.
type Result struct {
	RunID               uuid.UUID               `json:"run_id"`
	DryRun              bool                    `json:"dry_run"`
	Policy              transform.Policy        `json:"duplicates"`
	TemplateRows        int                     `json:"template_rows"`
	Observations        int                     `json:"observations"`
	DuplicatesCollapsed int                     `json:"duplicates_collapsed"`
	MalformedValues     int                     `json:"malformed_values"`
	SamplesInserted     int64                   `json:"samples_inserted"`
	ValuesInserted      int64                   `json:"values_inserted"`
	WaterSamples        []models.WaterSample    `json:"water_samples"`
	Values              []models.ChemistryValue `json:"values"`
}

// Run imports the template at path.
func Run(ctx context.Context, store db.Beginner, path string, opts Options) (Result, error) {
	return execute(ctx, store, func() (models.WideTable, error) {
		return template.ReadFile(path)
	}, opts)
}

// RunReader imports a template read from r.
func RunReader(ctx context.Context, store db.Beginner, r io.Reader, opts Options) (Result, error) {
	return execute(ctx, store, func() (models.WideTable, error) {
		return template.Read(r)
	}, opts)
}

// process imports an already parsed template.
func process(ctx context.Context, store db.Beginner, table models.WideTable, opts Options) (Result, error) {
	return execute(ctx, store, func() (models.WideTable, error) {
		return table, nil
	}, opts)
}

func execute(ctx context.Context, store db.Beginner, read func() (models.WideTable, error), opts Options) (res Result, err error) {
	res = Result{RunID: uuid.New(), DryRun: opts.DryRun, Policy: opts.Policy}
	log := opts.logger().With(zap.String("run_id", res.RunID.String()), zap.Bool("dry_run", opts.DryRun))

	started := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = errs.Kind(err)
			if outcome == "" {
				outcome = "error"
			}
			log.Error("import failed", zap.String("kind", outcome), zap.Error(err))
		}
		opts.Metrics.ObserveRun(outcome, opts.DryRun, time.Since(started))
	}()

	if err := opts.Policy.Validate(); err != nil {
		return res, err
	}

	table, err := read()
	if err != nil {
		return res, err
	}
	res.TemplateRows = len(table.Rows)
	log.Info("read template", zap.Int("rows", len(table.Rows)), zap.Int("parameters", len(table.Parameters)))

	mapped, err := transform.MapMethodIDs(table)
	if err != nil {
		return res, fmt.Errorf("map methods: %w", err)
	}

	tx, err := store.Begin(ctx)
	if err != nil {
		return res, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lookup, err := tx.StationIDs(ctx)
	if err != nil {
		return res, err
	}
	mapped, err = transform.MapStationIDs(mapped, lookup)
	if err != nil {
		return res, fmt.Errorf("map stations: %w", err)
	}

	obs := transform.ExtractLODFlags(transform.WideToLong(mapped))
	res.Observations = len(obs)

	deduped, err := transform.RemoveDuplicates(obs, opts.Policy)
	if err != nil {
		return res, err
	}
	res.DuplicatesCollapsed = len(obs) - len(deduped)
	if res.DuplicatesCollapsed > 0 {
		log.Warn("collapsed duplicate observations",
			zap.Int("duplicates", res.DuplicatesCollapsed),
			zap.String("policy", string(opts.Policy)))
	}
	for _, o := range deduped {
		if o.Value == nil {
			res.MalformedValues++
		}
	}

	samples, joined, inserted, err := uploadSamples(ctx, tx, deduped, opts.DryRun, log)
	if err != nil {
		return res, err
	}
	res.WaterSamples = samples
	res.SamplesInserted = inserted

	values, copied, err := uploadChemistry(ctx, tx, joined, opts.DryRun, log)
	if err != nil {
		return res, err
	}
	res.Values = values
	res.ValuesInserted = copied

	if opts.DryRun {
		if res.MalformedValues > 0 {
			log.Warn("dry-run: values without a number would block the import", zap.Int("count", res.MalformedValues))
		}
		log.Info("dry-run: rolled back",
			zap.Int("water_samples", len(samples)),
			zap.Int("values", len(values)))
		return res, nil
	}

	if err := tx.Commit(ctx); err != nil {
		return res, fmt.Errorf("commit import: %w", err)
	}
	opts.Metrics.AddInserted(inserted, copied)
	log.Info("import committed",
		zap.Int64("samples_inserted", inserted),
		zap.Int64("values_inserted", copied))
	return res, nil
}
