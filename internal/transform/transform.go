package transform

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/JamesSample/icpw2/internal/errs"
	"github.com/JamesSample/icpw2/internal/methods"
	"github.com/JamesSample/icpw2/internal/models"
)

// MapMethodIDs replaces the template's parameter headers with method ids and
// drops the Name column.
func MapMethodIDs(table models.WideTable) (models.MappedTable, error) {
	ids, err := methods.MapColumns(table.Parameters)
	if err != nil {
		return models.MappedTable{}, err
	}
	rows := make([]models.MappedRow, 0, len(table.Rows))
	for _, r := range table.Rows {
		rows = append(rows, models.MappedRow{
			Line:  r.Line,
			Code:  r.Code,
			Date:  r.Date,
			Cells: r.Cells,
		})
	}
	return models.MappedTable{MethodIDs: ids, Rows: rows}, nil
}

// MapStationIDs resolves station codes through the reference lookup
// (station_code -> station_id). Every code must resolve.
func MapStationIDs(table models.MappedTable, lookup map[string]int64) (models.MappedTable, error) {
	rows := make([]models.MappedRow, len(table.Rows))
	unmatched := map[string]struct{}{}
	for i, r := range table.Rows {
		id, ok := lookup[r.Code]
		if !ok {
			unmatched[r.Code] = struct{}{}
		}
		r.StationID = id
		rows[i] = r
	}
	if len(unmatched) > 0 {
		codes := make([]string, 0, len(unmatched))
		for code := range unmatched {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		return models.MappedTable{}, &errs.UnmatchedStationError{Codes: codes}
	}
	return models.MappedTable{MethodIDs: table.MethodIDs, Rows: rows}, nil
}

// WideToLong emits one observation per non-empty cell, by row then column.
func WideToLong(table models.MappedTable) []models.RawObservation {
	out := make([]models.RawObservation, 0, len(table.Rows)*len(table.MethodIDs))
	for _, r := range table.Rows {
		for i, methodID := range table.MethodIDs {
			if i >= len(r.Cells) {
				break
			}
			raw := strings.TrimSpace(r.Cells[i])
			if raw == "" {
				continue
			}
			out = append(out, models.RawObservation{
				Line:      r.Line,
				StationID: r.StationID,
				Date:      r.Date,
				MethodID:  methodID,
				Raw:       raw,
			})
		}
	}
	return out
}

var numberPattern = regexp.MustCompile(`[-+]?(?:\d*\.\d+|\d+)`)

// ParseValue splits a template cell into its LOD flag and numeric part.
// Value is nil when the cell has no number in it.
func ParseValue(raw string) (*float64, models.Flag) {
	flag := models.FlagNone
	switch {
	case strings.Contains(raw, "<"):
		flag = models.FlagBelowLOD
	case strings.Contains(raw, ">"):
		flag = models.FlagAboveLOD
	}
	match := numberPattern.FindString(raw)
	if match == "" {
		return nil, flag
	}
	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil, flag
	}
	return &v, flag
}

// ExtractLODFlags converts raw cells into observations with a separate flag.
func ExtractLODFlags(raw []models.RawObservation) []models.Observation {
	out := make([]models.Observation, 0, len(raw))
	for _, r := range raw {
		value, flag := ParseValue(r.Raw)
		out = append(out, models.Observation{
			StationID: r.StationID,
			Date:      r.Date,
			MethodID:  r.MethodID,
			Value:     value,
			Flag:      flag,
			Raw:       r.Raw,
			Line:      r.Line,
		})
	}
	return out
}

// Policy selects how repeated (station, date, method) observations collapse.
type Policy string

const (
	PolicyMean Policy = "mean"
	PolicyDrop Policy = "drop"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(s)))
	if err := p.Validate(); err != nil {
		return "", &errs.DuplicatePolicyError{Policy: s}
	}
	return p, nil
}

// Validate reports whether p is a known policy.
func (p Policy) Validate() error {
	switch p {
	case PolicyMean, PolicyDrop:
		return nil
	default:
		return &errs.DuplicatePolicyError{Policy: string(p)}
	}
}

// RemoveDuplicates returns one observation per (station, date, method), in
// order of first appearance.
//
// With PolicyMean the value is the mean of the group's numeric values and
// the flag is the first member's flag, unqualified included: 7.1 followed by
// <0.5 averages to an unflagged 3.8. The first qualifier is not searched
// for. With PolicyDrop the first member is kept as is.
func RemoveDuplicates(obs []models.Observation, policy Policy) ([]models.Observation, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}

	index := make(map[models.ObservationKey]int, len(obs))
	out := make([]models.Observation, 0, len(obs))
	sums := make([]float64, 0, len(obs))
	counts := make([]int, 0, len(obs))
	for _, o := range obs {
		key := o.Key()
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, o)
			sums = append(sums, 0)
			counts = append(counts, 0)
			i = len(out) - 1
		}
		if policy == PolicyMean && o.Value != nil {
			sums[i] += *o.Value
			counts[i]++
		}
	}

	if policy == PolicyMean {
		for i := range out {
			if counts[i] == 0 {
				out[i].Value = nil
				continue
			}
			mean := sums[i] / float64(counts[i])
			out[i].Value = &mean
		}
	}
	return out, nil
}

// StationIDs extracts the distinct station ids of the samples.
func StationIDs(samples []models.WaterSample) []int64 {
	seen := make(map[int64]struct{}, len(samples))
	ids := make([]int64, 0)
	for _, s := range samples {
		if _, ok := seen[s.StationID]; ok {
			continue
		}
		seen[s.StationID] = struct{}{}
		ids = append(ids, s.StationID)
	}
	return ids
}

// AttachSampleIDs joins stored sample ids onto the observations by
// (station, date). Observations without a stored sample keep a nil id.
// Stored samples sharing a key make the join ambiguous and fail.
func AttachSampleIDs(obs []models.Observation, stored []models.WaterSample) ([]models.Observation, error) {
	ids := make(map[models.SampleKey]int64, len(stored))
	var ambiguous []string
	for _, s := range stored {
		if s.WaterSampleID == nil {
			continue
		}
		key := s.Key()
		if prev, ok := ids[key]; ok && prev != *s.WaterSampleID {
			ambiguous = append(ambiguous, fmt.Sprintf("station %d on %s (ids %d, %d)",
				s.StationID, s.Date.Format("2006-01-02"), prev, *s.WaterSampleID))
			continue
		}
		ids[key] = *s.WaterSampleID
	}
	if len(ambiguous) > 0 {
		return nil, &errs.PersistenceInvariantError{
			Field:  "water_sample_id",
			Count:  len(ambiguous),
			Detail: "several stored samples match " + strings.Join(ambiguous, "; "),
		}
	}

	out := make([]models.Observation, len(obs))
	for i, o := range obs {
		if id, ok := ids[o.SampleKey()]; ok {
			o.WaterSampleID = &id
		} else {
			o.WaterSampleID = nil
		}
		out[i] = o
	}
	return out, nil
}

// BuildWaterSamples derives one surface sample (depth 0/0) per distinct
// (station, date), carrying any sample id already joined onto the
// observations.
func BuildWaterSamples(obs []models.Observation) []models.WaterSample {
	seen := make(map[models.SampleKey]struct{}, len(obs))
	samples := make([]models.WaterSample, 0)
	for _, o := range obs {
		key := o.SampleKey()
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		samples = append(samples, models.WaterSample{
			WaterSampleID: o.WaterSampleID,
			StationID:     o.StationID,
			Date:          o.Date,
		})
	}
	return samples
}

// BuildChemistryValues drops station and date, keeping the sample id.
func BuildChemistryValues(obs []models.Observation) []models.ChemistryValue {
	values := make([]models.ChemistryValue, 0, len(obs))
	for _, o := range obs {
		values = append(values, models.ChemistryValue{
			WaterSampleID: o.WaterSampleID,
			MethodID:      o.MethodID,
			Value:         o.Value,
			Flag:          o.Flag,
		})
	}
	return values
}

// FormatValue prints optional values for logging.
func FormatValue(v *float64) string {
	if v == nil {
		return "null"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
