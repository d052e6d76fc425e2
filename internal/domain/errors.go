package domain

import (
	"fmt"
	"time"
)

// MissingInputError reports a required input file that does not exist. It is
// fatal for the issue date that needed it.
type MissingInputError struct {
	Path  string
	Issue time.Time
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("missing input for issue %s: %s", e.Issue.Format(IssueLayout), e.Path)
}

// InsufficientCalibrationDataError reports a coefficient cell that cannot be
// fitted. Fitting fails rather than producing unfit coefficients.
type InsufficientCalibrationDataError struct {
	Bin      int
	Member   int
	Variable Variable
	Have     int
	Need     int
	Reason   string
}

func (e *InsufficientCalibrationDataError) Error() string {
	msg := fmt.Sprintf("insufficient calibration data for bin %d member %d %s: have %d paired days, need %d",
		e.Bin, e.Member, e.Variable, e.Have, e.Need)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// IncompleteDayError reports a day whose sub-daily coverage was short. The
// day's aggregate is null.
type IncompleteDayError struct {
	Member   int // 0 for observations
	Day      time.Time
	Variable Variable
	Have     int
	Want     int
}

func (e *IncompleteDayError) Error() string {
	return fmt.Sprintf("incomplete day %s member %d %s: %d of %d readings",
		e.Day.Format(IssueLayout), e.Member, e.Variable, e.Have, e.Want)
}

// ZeroMeanError guards redistribution against dividing by a zero daily mean.
type ZeroMeanError struct {
	Key      SeriesKey
	Day      time.Time
	Variable Variable
}

func (e *ZeroMeanError) Error() string {
	return fmt.Sprintf("zero daily mean for %s %s on %s", e.Key, e.Variable, e.Day.Format(IssueLayout))
}

// InterpolationRangeError reports a series with too few points to fit.
type InterpolationRangeError struct {
	Key      SeriesKey
	Variable Variable
	Points   int
}

func (e *InterpolationRangeError) Error() string {
	return fmt.Sprintf("cannot interpolate %s %s: %d valid points, need 2", e.Key, e.Variable, e.Points)
}

// GridError reports forecast rows that cannot be placed on a regular grid.
type GridError struct {
	Member int
	Time   time.Time
	Reason string
}

func (e *GridError) Error() string {
	if e.Time.IsZero() {
		return fmt.Sprintf("forecast grid member %d: %s", e.Member, e.Reason)
	}
	return fmt.Sprintf("forecast grid member %d at %s: %s", e.Member, e.Time.Format(time.RFC3339), e.Reason)
}

// JoinError reports a stage boundary join that would drop, duplicate or mix
// rows.
type JoinError struct {
	Key       SeriesKey
	Component string
	Reason    string
}

func (e *JoinError) Error() string {
	return fmt.Sprintf("join %s into %s: %s", e.Component, e.Key, e.Reason)
}

// AnchorMissingError reports an offset group with no overlapping observation.
type AnchorMissingError struct {
	Key      SeriesKey
	Variable Variable
}

func (e *AnchorMissingError) Error() string {
	return fmt.Sprintf("no observation anchor for %s %s", e.Key, e.Variable)
}

// Report collects non-fatal conditions found while processing one issue date.
// Every entry names a cell left null; none of them stop the run.
type Report struct {
	IncompleteDays []*IncompleteDayError
	ZeroMeans      []*ZeroMeanError
	Interpolation  []*InterpolationRangeError
	Anchors        []*AnchorMissingError
	MemberFailures []MemberFailure
}

// MemberFailure records a forecast member dropped from the run.
type MemberFailure struct {
	Member int
	Err    error
}

// Merge appends other into r.
func (r *Report) Merge(other Report) {
	r.IncompleteDays = append(r.IncompleteDays, other.IncompleteDays...)
	r.ZeroMeans = append(r.ZeroMeans, other.ZeroMeans...)
	r.Interpolation = append(r.Interpolation, other.Interpolation...)
	r.Anchors = append(r.Anchors, other.Anchors...)
	r.MemberFailures = append(r.MemberFailures, other.MemberFailures...)
}

// Empty reports whether nothing was recorded.
func (r Report) Empty() bool {
	return len(r.IncompleteDays) == 0 && len(r.ZeroMeans) == 0 && len(r.Interpolation) == 0 &&
		len(r.Anchors) == 0 && len(r.MemberFailures) == 0
}

// Gaps counts report entries by kind, for metrics.
func (r Report) Gaps() map[string]int {
	return map[string]int{
		"incomplete_day": len(r.IncompleteDays),
		"zero_mean":      len(r.ZeroMeans),
		"interpolation":  len(r.Interpolation),
		"anchor_missing": len(r.Anchors),
	}
}
