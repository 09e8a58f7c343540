package models

import (
	"encoding/json"
	"time"
)

// WideTable is the template's Data sheet after header merging. Parameters are
// the flattened headers of every column after Code, Name and Date.
type WideTable struct {
	Parameters []string
	Rows       []WideRow
}

// WideRow is one (station code, date) line of the template.
type WideRow struct {
	Line  int
	Code  string
	Name  string
	Date  time.Time
	Cells []string
}

// MappedTable is a WideTable whose parameter columns carry method ids.
type MappedTable struct {
	MethodIDs []int
	Rows      []MappedRow
}

// MappedRow is a template row with its station resolved.
type MappedRow struct {
	Line      int
	Code      string
	StationID int64
	Date      time.Time
	Cells     []string
}

// RawObservation is a single non-empty template cell in long form.
type RawObservation struct {
	Line      int
	StationID int64
	Date      time.Time
	MethodID  int
	Raw       string
}

// Observation is one measured value keyed by station, date and method.
type Observation struct {
	StationID     int64
	Date          time.Time
	MethodID      int
	Value         *float64
	Flag          Flag
	Raw           string
	Line          int
	WaterSampleID *int64
}

// Key returns the deduplication key of the observation.
func (o Observation) Key() ObservationKey {
	return ObservationKey{StationID: o.StationID, Date: o.Date, MethodID: o.MethodID}
}

// SampleKey returns the water sample the observation belongs to.
func (o Observation) SampleKey() SampleKey {
	return SampleKey{StationID: o.StationID, Date: o.Date}
}

// ObservationKey identifies an observation after deduplication.
type ObservationKey struct {
	StationID int64
	Date      time.Time
	MethodID  int
}

// SampleKey identifies a surface water sample.
type SampleKey struct {
	StationID int64
	Date      time.Time
}

// WaterSample is a row of the water sample table. WaterSampleID is nil until
// the database has assigned one.
type WaterSample struct {
	WaterSampleID *int64    `json:"water_sample_id"`
	StationID     int64     `json:"station_id"`
	Date          time.Time `json:"date"`
	Depth1        float64   `json:"depth1"`
	Depth2        float64   `json:"depth2"`
}

// Key returns the (station, date) pair of the sample.
func (w WaterSample) Key() SampleKey {
	return SampleKey{StationID: w.StationID, Date: w.Date}
}

// ChemistryValue is a row of the chemistry value table.
type ChemistryValue struct {
	WaterSampleID *int64   `json:"water_sample_id"`
	MethodID      int      `json:"method_id"`
	Value         *float64 `json:"value"`
	Flag          Flag     `json:"flag1"`
}

// Station is a row of the reference station table.
type Station struct {
	StationID int64   `json:"station_id"`
	Code      string  `json:"station_code"`
	Name      *string `json:"station_name,omitempty"`
}

// Stats summarizes the size of the target tables.
type Stats struct {
	Stations        int64 `json:"stations"`
	WaterSamples    int64 `json:"water_samples"`
	ChemistryValues int64 `json:"chemistry_values"`
}

// Flag qualifies a value relative to the limit of detection.
type Flag int

const (
	FlagNone Flag = iota
	FlagBelowLOD
	FlagAboveLOD
)

// Marker returns the qualifier as written in the template and stored in flag1.
func (f Flag) Marker() string {
	switch f {
	case FlagBelowLOD:
		return "<"
	case FlagAboveLOD:
		return ">"
	default:
		return ""
	}
}

// MarkerPtr returns the marker, or nil for unqualified values.
func (f Flag) MarkerPtr() *string {
	if f == FlagNone {
		return nil
	}
	m := f.Marker()
	return &m
}

func (f Flag) String() string {
	switch f {
	case FlagBelowLOD:
		return "below_lod"
	case FlagAboveLOD:
		return "above_lod"
	default:
		return "none"
	}
}

// MarshalJSON encodes the flag as its stored marker, null when unqualified.
func (f Flag) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.MarkerPtr())
}

func (f *Flag) UnmarshalJSON(b []byte) error {
	var marker *string
	if err := json.Unmarshal(b, &marker); err != nil {
		return err
	}
	*f = FlagNone
	if marker != nil {
		*f = FlagFromMarker(*marker)
	}
	return nil
}

// FlagFromMarker is the inverse of Marker. Unknown markers map to FlagNone.
func FlagFromMarker(marker string) Flag {
	switch marker {
	case "<":
		return FlagBelowLOD
	case ">":
		return FlagAboveLOD
	default:
		return FlagNone
	}
}

// DateOnly truncates t to its calendar date at UTC midnight.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
