package sync

import (
	"fmt"
	"net/url"

	"github.com/sevensync/sevensync/internal/dates"
)

// Window filtering is entity-specific: directory-style entities only
// understand a modification cursor, while event-style entities filter on
// their own date-range fields. Each translation below mirrors one API
// endpoint's query contract.

// cursorParams translates a window for entities that only support
// modified_since (locations, departments, roles, users). A range window is
// ignored: these endpoints have no date-range filter.
func cursorParams(w dates.Window) url.Values {
	params := url.Values{}
	if cw, ok := w.(dates.CursorWindow); ok {
		params.Set("modified_since", dates.FormatQueryTime(cw.ModifiedSince))
	}
	return params
}

// rangeParams translates a window for entities that filter on an
// entity-specific datetime field (shift start, punch clocked_in, receipt
// receipt_date) when a range is active, or modified_since otherwise.
func rangeParams(w dates.Window, field string) url.Values {
	params := url.Values{}
	switch v := w.(type) {
	case dates.CursorWindow:
		params.Set("modified_since", dates.FormatQueryTime(v.ModifiedSince))
	case dates.RangeWindow:
		params.Set(field+"[gte]", dates.FormatQueryTime(v.Start))
		params.Set(field+"[lte]", dates.FormatQueryTime(v.End))
	}
	return params
}

// punchParams builds the time-punch filter. With a cursor window the API
// additionally needs localize_search_time so the comparison happens in the
// location's zone. approved nil means both approved and unapproved punches.
func punchParams(w dates.Window, approved *bool) url.Values {
	params := rangeParams(w, "clocked_in")
	if _, ok := w.(dates.CursorWindow); ok {
		params.Set("localize_search_time", "true")
	}
	if approved != nil {
		if *approved {
			params.Set("approved", "1")
		} else {
			params.Set("approved", "0")
		}
	}
	return params
}

// userParams builds the user filter for one status pass.
func userParams(w dates.Window, status string) url.Values {
	params := cursorParams(w)
	params.Set("status", status)
	return params
}

// receiptParams builds the receipt filter for one location.
func receiptParams(w dates.Window, locationID int64) url.Values {
	params := rangeParams(w, "receipt_date")
	params.Set("location_id", fmt.Sprint(locationID))
	return params
}

// dailySalesParams builds the daily sales/labor report filter. The report
// endpoint only speaks whole dates: a range window maps directly, and a
// cursor window degrades to "from the cursor's date through the as-of
// date".
func dailySalesParams(w dates.Window, locationID int64) url.Values {
	params := url.Values{}
	switch v := w.(type) {
	case dates.RangeWindow:
		params.Set("start_date", dates.FormatYMD(v.Start))
		params.Set("end_date", dates.FormatYMD(v.End))
	case dates.CursorWindow:
		params.Set("start_date", dates.FormatYMD(v.ModifiedSince))
		params.Set("end_date", dates.FormatYMD(v.AsOf))
	}
	params.Set("location_id", fmt.Sprint(locationID))
	return params
}
