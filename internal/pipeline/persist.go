package pipeline

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JamesSample/icpw2/internal/db"
	"github.com/JamesSample/icpw2/internal/errs"
	"github.com/JamesSample/icpw2/internal/models"
	"github.com/JamesSample/icpw2/internal/transform"
)

// uploadSamples stores one surface sample per (station, date) and joins the
// database ids back onto the observations. All samples are assumed to be
// taken at the surface (depth1 = depth2 = 0).
func uploadSamples(ctx context.Context, tx db.Tx, obs []models.Observation, dryRun bool, log *zap.Logger) ([]models.WaterSample, []models.Observation, int64, error) {
	candidates := transform.BuildWaterSamples(obs)

	var inserted int64
	if dryRun {
		log.Info("dry-run: skipping water sample insert", zap.Int("candidates", len(candidates)))
	} else {
		n, err := tx.InsertWaterSamples(ctx, candidates)
		if err != nil {
			return nil, nil, 0, err
		}
		inserted = n
		log.Info("inserted water samples", zap.Int64("inserted", n), zap.Int("candidates", len(candidates)))
	}

	stored, err := tx.WaterSamples(ctx, transform.StationIDs(candidates))
	if err != nil {
		return nil, nil, 0, err
	}
	joined, err := transform.AttachSampleIDs(obs, stored)
	if err != nil {
		return nil, nil, 0, err
	}

	if !dryRun {
		missing := 0
		for _, o := range joined {
			if o.WaterSampleID == nil {
				missing++
			}
		}
		if missing > 0 {
			return nil, nil, 0, &errs.PersistenceInvariantError{
				Field:  "water_sample_id",
				Count:  missing,
				Detail: "observations not matched to a stored sample after insert",
			}
		}
	}

	return transform.BuildWaterSamples(joined), joined, inserted, nil
}

// uploadChemistry writes the values keyed by water sample id.
func uploadChemistry(ctx context.Context, tx db.Tx, obs []models.Observation, dryRun bool, log *zap.Logger) ([]models.ChemistryValue, int64, error) {
	values := transform.BuildChemistryValues(obs)

	if dryRun {
		log.Info("dry-run: skipping chemistry value insert", zap.Int("values", len(values)))
		for _, v := range values {
			if v.WaterSampleID == nil {
				continue
			}
			log.Debug("dry-run: would insert",
				zap.Int64("water_sample_id", *v.WaterSampleID),
				zap.Int("method_id", v.MethodID),
				zap.String("value", transform.FormatValue(v.Value)),
				zap.String("flag", v.Flag.Marker()))
		}
		return values, 0, nil
	}

	if err := checkValues(obs); err != nil {
		return nil, 0, err
	}
	n, err := tx.InsertChemistryValues(ctx, values)
	if err != nil {
		return nil, 0, err
	}
	if n != int64(len(values)) {
		return nil, 0, fmt.Errorf("inserted %d of %d chemistry values", n, len(values))
	}
	log.Info("inserted chemistry values", zap.Int64("inserted", n))
	return values, n, nil
}

// checkValues rejects rows that would be written with a null method id,
// sample id or value.
func checkValues(obs []models.Observation) error {
	var noMethod, noSample int
	var malformed []errs.MalformedCell
	for _, o := range obs {
		if o.MethodID == 0 {
			noMethod++
		}
		if o.WaterSampleID == nil {
			noSample++
		}
		if o.Value == nil {
			malformed = append(malformed, errs.MalformedCell{
				Line:      o.Line,
				StationID: o.StationID,
				Date:      o.Date,
				MethodID:  o.MethodID,
				Raw:       o.Raw,
			})
		}
	}
	switch {
	case noMethod > 0:
		return &errs.PersistenceInvariantError{Field: "method_id", Count: noMethod}
	case noSample > 0:
		return &errs.PersistenceInvariantError{Field: "water_sample_id", Count: noSample}
	case len(malformed) > 0:
		return &errs.MalformedValueError{Cells: malformed}
	}
	return nil
}
