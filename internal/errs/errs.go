// Package errs defines the error kinds an import can fail with. Each kind is a
// struct for errors.As and also matches a sentinel with errors.Is.
package errs

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrParse                = errors.New("template parse error")
	ErrUnmatchedStation     = errors.New("unmatched station code")
	ErrUnmappedParameter    = errors.New("unmapped parameter column")
	ErrMalformedValue       = errors.New("malformed value")
	ErrPersistenceInvariant = errors.New("persistence invariant violated")
	ErrDuplicatePolicy      = errors.New("invalid duplicate policy")
)

// ParseError reports a template that does not have the expected shape.
// Line is the 1-based sheet row, zero when the problem is not row specific.
type ParseError struct {
	Line   int
	Column string
	Msg    string
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse template")
	if e.Line > 0 {
		fmt.Fprintf(&b, " row %d", e.Line)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " column %s", e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }
func (e *ParseError) Unwrap() error        { return e.Err }

// UnmatchedStationError lists station codes absent from the reference table.
type UnmatchedStationError struct {
	Codes []string
}

func (e *UnmatchedStationError) Error() string {
	return fmt.Sprintf("%d station code(s) cannot be matched to ids: %s", len(e.Codes), strings.Join(e.Codes, ", "))
}

func (e *UnmatchedStationError) Is(target error) bool { return target == ErrUnmatchedStation }

// UnmappedParameterError lists template columns with no method id.
type UnmappedParameterError struct {
	Columns []string
}

func (e *UnmappedParameterError) Error() string {
	return fmt.Sprintf("%d parameter column(s) have no method id: %s", len(e.Columns), strings.Join(e.Columns, ", "))
}

func (e *UnmappedParameterError) Is(target error) bool { return target == ErrUnmappedParameter }

// MalformedCell locates a value cell with no extractable number.
type MalformedCell struct {
	Line      int
	StationID int64
	Date      time.Time
	MethodID  int
	Raw       string
}

// MalformedValueError lists value cells that could not be read as numbers.
type MalformedValueError struct {
	Cells []MalformedCell
}

func (e *MalformedValueError) Error() string {
	parts := make([]string, 0, len(e.Cells))
	for _, c := range e.Cells {
		parts = append(parts, fmt.Sprintf("row %d station %d %s method %d %q",
			c.Line, c.StationID, c.Date.Format("2006-01-02"), c.MethodID, c.Raw))
	}
	return fmt.Sprintf("%d value(s) have no numeric part: %s", len(e.Cells), strings.Join(parts, "; "))
}

func (e *MalformedValueError) Is(target error) bool { return target == ErrMalformedValue }

// PersistenceInvariantError reports rows that would be written with a null
// identifier or otherwise cannot be stored consistently.
type PersistenceInvariantError struct {
	Field  string
	Count  int
	Detail string
}

func (e *PersistenceInvariantError) Error() string {
	msg := fmt.Sprintf("%d row(s) with invalid %s", e.Count, e.Field)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *PersistenceInvariantError) Is(target error) bool { return target == ErrPersistenceInvariant }

// DuplicatePolicyError reports an unknown duplicate handling policy.
type DuplicatePolicyError struct {
	Policy string
}

func (e *DuplicatePolicyError) Error() string {
	return fmt.Sprintf("duplicate policy must be either 'mean' or 'drop', got %q", e.Policy)
}

func (e *DuplicatePolicyError) Is(target error) bool { return target == ErrDuplicatePolicy }

// Kind returns a short machine name for the import error kind wrapped in err,
// or "" if err is not one of them.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrParse):
		return "parse_error"
	case errors.Is(err, ErrUnmatchedStation):
		return "unmatched_station"
	case errors.Is(err, ErrUnmappedParameter):
		return "unmapped_parameter"
	case errors.Is(err, ErrMalformedValue):
		return "malformed_value"
	case errors.Is(err, ErrPersistenceInvariant):
		return "persistence_invariant"
	case errors.Is(err, ErrDuplicatePolicy):
		return "duplicate_policy"
	default:
		return ""
	}
}
