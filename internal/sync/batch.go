// Package sync is the incremental synchronization engine: it computes query
// parameters from the run's window, pulls records from the remote source,
// flattens them into table rows, and upserts them into the sink.
//
// One run is single-threaded and sequential by design: entities sync one at
// a time, each in its own sink transaction, so a failure aborts the run but
// never rolls back entities that already committed.
package sync

import (
	"sort"

	"github.com/sevensync/sevensync/internal/sink"
)

// Entity is one category of synchronized data.
type Entity string

const (
	EntityCompanies          Entity = "companies"
	EntityLocations          Entity = "locations"
	EntityDepartments        Entity = "departments"
	EntityRoles              Entity = "roles"
	EntityStations           Entity = "stations"
	EntityUsers              Entity = "users"
	EntityWages              Entity = "wages"
	EntityAssignments        Entity = "assignments"
	EntityReceipts           Entity = "receipts"
	EntityShifts             Entity = "shifts"
	EntityPunches            Entity = "punches"
	EntityDailySalesAndLabor Entity = "daily_sales_and_labor"
)

// SyncOrder is the fixed order entities sync in. Stations are not listed:
// they are derived from roles, never fetched on their own.
var SyncOrder = []Entity{
	EntityCompanies,
	EntityLocations,
	EntityDepartments,
	EntityRoles,
	EntityUsers,
	EntityWages,
	EntityAssignments,
	EntityReceipts,
	EntityShifts,
	EntityPunches,
	EntityDailySalesAndLabor,
}

// Selectable reports whether name is an entity that can be requested on the
// command line.
func Selectable(name string) bool {
	for _, e := range SyncOrder {
		if Entity(name) == e {
			return true
		}
	}
	return false
}

// Row is one normalized table row.
type Row = sink.Row

// Batch is an ordered set of rows sharing one destination table and one key
// shape. Keys is the ordered list of key column names; the first key column
// drives the upsert delete step.
type Batch struct {
	Table string
	Keys  []string
	Rows  []Row
}

// Columns returns the batch's column set in a deterministic order: key
// columns first (declared order), then the remaining columns of the first
// row, sorted. All rows in a batch share one column set, so the first row
// is authoritative.
func (b *Batch) Columns() []string {
	if len(b.Rows) == 0 {
		return nil
	}

	isKey := make(map[string]bool, len(b.Keys))
	cols := make([]string, 0, len(b.Rows[0]))
	cols = append(cols, b.Keys...)
	for _, k := range b.Keys {
		isKey[k] = true
	}

	rest := make([]string, 0, len(b.Rows[0]))
	for c := range b.Rows[0] {
		if !isKey[c] {
			rest = append(rest, c)
		}
	}
	sort.Strings(rest)
	return append(cols, rest...)
}
