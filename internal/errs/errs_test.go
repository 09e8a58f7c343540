package errs

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindMatchesWrappedErrors(t *testing.T) {
	cases := []struct {
		err  error
		kind string
	}{
		{&ParseError{Line: 4, Column: "C", Msg: "bad date"}, "parse_error"},
		{&UnmatchedStationError{Codes: []string{"X1"}}, "unmatched_station"},
		{&UnmappedParameterError{Columns: []string{"Foo_mg/L"}}, "unmapped_parameter"},
		{&MalformedValueError{Cells: []MalformedCell{{Raw: "n/a"}}}, "malformed_value"},
		{&PersistenceInvariantError{Field: "water_sample_id", Count: 2}, "persistence_invariant"},
		{&DuplicatePolicyError{Policy: "max"}, "duplicate_policy"},
		{errors.New("boom"), ""},
		{nil, ""},
	}
	for _, tc := range cases {
		wrapped := tc.err
		if wrapped != nil {
			wrapped = fmt.Errorf("import: %w", tc.err)
		}
		assert.Equal(t, tc.kind, Kind(wrapped), "%v", tc.err)
	}
}

func TestUnmatchedStationErrorListsCodes(t *testing.T) {
	err := fmt.Errorf("map stations: %w", &UnmatchedStationError{Codes: []string{"NO01", "SE07"}})

	var target *UnmatchedStationError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, []string{"NO01", "SE07"}, target.Codes)
	assert.Contains(t, err.Error(), "NO01, SE07")
	assert.ErrorIs(t, err, ErrUnmatchedStation)
}

func TestParseErrorMessage(t *testing.T) {
	cause := errors.New(`parsing time "2020/01/01"`)
	err := &ParseError{Line: 5, Column: "C", Msg: "invalid date", Err: cause}

	assert.Equal(t, `parse template row 5 column C: invalid date: parsing time "2020/01/01"`, err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrParse)
}

func TestMalformedValueErrorDescribesCells(t *testing.T) {
	err := &MalformedValueError{Cells: []MalformedCell{{
		Line:      7,
		StationID: 101,
		Date:      time.Date(2021, 6, 3, 0, 0, 0, 0, time.UTC),
		MethodID:  10268,
		Raw:       "n.d.",
	}}}
	assert.Contains(t, err.Error(), `row 7 station 101 2021-06-03 method 10268 "n.d."`)
}
