// Package dates computes the query window for a sync run and handles
// conversion between 7shifts API time representations.
//
// All window math is done on calendar dates in a single location first and
// converted to instants last, so that ranges crossing DST boundaries keep
// their intended local-day bounds.
package dates

import (
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// APITimeLayout is the canonical text form for datetimes exchanged with the
// 7shifts API and stored in the sink.
const APITimeLayout = "2006-01-02 15:04:05"

// QueryTimeLayout is the ISO-8601 UTC form used in query parameters.
const QueryTimeLayout = "2006-01-02T15:04:05Z"

// Window is the time filter for one sync run. Exactly one of the two
// implementations is produced per run by Resolve.
type Window interface {
	window()
}

// RangeWindow filters records falling between Start and End, inclusive.
// Start is the first local day's midnight and End the last second of the
// final local day; both retain their location so date-only endpoints can
// render local calendar dates, and render as UTC in query parameters.
type RangeWindow struct {
	Start time.Time
	End   time.Time
}

func (RangeWindow) window() {}

// CursorWindow filters records modified at or after ModifiedSince (UTC).
// AsOf is the run's reference date, used for bookkeeping and for endpoints
// that only accept date ranges; it does not narrow the modified filter.
type CursorWindow struct {
	ModifiedSince time.Time
	AsOf          time.Time
}

func (CursorWindow) window() {}

// Options are the date-related inputs to a sync run, normally sourced from
// CLI flags. String fields accept YYYY-MM-DD, the API datetime form,
// RFC 3339, or casual English ("yesterday", "3 days ago").
type Options struct {
	StartDate     string
	EndDate       string
	ModifiedSince string
	LastNDays     int

	// Location for local-midnight math. Nil means the host's local zone.
	Location *time.Location

	// Now overrides the clock. Zero means time.Now().
	Now time.Time
}

func (o Options) location() *time.Location {
	if o.Location != nil {
		return o.Location
	}
	return time.Local
}

func (o Options) now() time.Time {
	if !o.Now.IsZero() {
		return o.Now.In(o.location())
	}
	return time.Now().In(o.location())
}

// Resolve computes the sync window from the supplied options.
//
// If ModifiedSince is set it wins over any range options and a CursorWindow
// is returned. Otherwise a RangeWindow is built: the end date defaults to
// yesterday, the start date defaults to LastNDays-1 days before the end
// (LastNDays defaults to 1, a single day), and an explicit StartDate
// overrides LastNDays. The range runs from the start date's local midnight
// to 23:59:59 of the end date, both in the configured zone.
func Resolve(opts Options) (Window, error) {
	loc := opts.location()
	now := opts.now()

	if opts.ModifiedSince != "" {
		since, err := ParseTimestamp(opts.ModifiedSince, loc, now)
		if err != nil {
			return nil, fmt.Errorf("invalid modified-since %q: %w", opts.ModifiedSince, err)
		}
		yesterday := midnight(now.AddDate(0, 0, -1), loc)
		return CursorWindow{ModifiedSince: since, AsOf: yesterday}, nil
	}

	end := midnight(now.AddDate(0, 0, -1), loc)
	if opts.EndDate != "" {
		d, err := ParseDate(opts.EndDate, loc, now)
		if err != nil {
			return nil, fmt.Errorf("invalid end-date %q: %w", opts.EndDate, err)
		}
		end = d
	}

	start := end
	if opts.LastNDays > 1 {
		start = end.AddDate(0, 0, -(opts.LastNDays - 1))
	}
	if opts.StartDate != "" {
		d, err := ParseDate(opts.StartDate, loc, now)
		if err != nil {
			return nil, fmt.Errorf("invalid start-date %q: %w", opts.StartDate, err)
		}
		start = d
	}

	if start.After(end) {
		return nil, fmt.Errorf("start date %s is after end date %s",
			start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	return RangeWindow{
		Start: start,
		End:   endOfDay(end, loc),
	}, nil
}

// dateLayouts are tried in order before falling back to casual parsing.
var dateLayouts = []string{
	time.DateOnly,
	APITimeLayout,
	time.RFC3339,
	QueryTimeLayout,
}

// ParseDate parses s as a calendar date and returns its midnight in loc.
// now anchors relative expressions such as "yesterday".
func ParseDate(s string, loc *time.Location, now time.Time) (time.Time, error) {
	t, err := ParseTimestamp(s, loc, now)
	if err != nil {
		return time.Time{}, err
	}
	return midnight(t.In(loc), loc), nil
}

// ParseTimestamp parses s as an instant in loc. Fixed layouts are tried
// first; anything else goes through the casual English parser.
func ParseTimestamp(s string, loc *time.Location, now time.Time) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	res, err := w.Parse(s, now)
	if err != nil {
		return time.Time{}, err
	}
	if res == nil {
		return time.Time{}, fmt.Errorf("unrecognized date %q", s)
	}
	return res.Time, nil
}

// FormatAPITime renders t in the canonical API datetime form, in UTC.
func FormatAPITime(t time.Time) string {
	return t.UTC().Format(APITimeLayout)
}

// FormatQueryTime renders t as ISO-8601 UTC with a trailing Z, the form
// expected by datetime query parameters.
func FormatQueryTime(t time.Time) string {
	return t.UTC().Format(QueryTimeLayout)
}

// FormatYMD renders just the date portion of t.
func FormatYMD(t time.Time) string {
	return t.Format(time.DateOnly)
}

func midnight(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// endOfDay builds 23:59:59 of t's calendar day as a wall-clock instant,
// so days shortened or lengthened by DST transitions keep their local bound.
func endOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 23, 59, 59, 0, loc)
}
