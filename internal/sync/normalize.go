package sync

import (
	"fmt"
	"time"

	"github.com/sevensync/sevensync/internal/dates"
	"github.com/sevensync/sevensync/internal/sevenshifts"
)

// Record is a raw entity as delivered by the remote source.
type Record = sevenshifts.Record

// Derived is a row extracted from another entity's record during
// normalization, tagged with the stream it belongs to.
type Derived struct {
	Entity Entity
	Table  string
	Row    Row
}

// tableFor maps an entity to its destination table.
func tableFor(entity Entity) string {
	switch entity {
	case EntityPunches:
		return "time_punches"
	default:
		return string(entity)
	}
}

// keysFor returns the key column(s) for an entity's destination table.
// Nearly everything keys on id; daily sales/labor uses a synthesized
// composite key whose first column is unique by construction.
func keysFor(entity Entity) []string {
	switch entity {
	case EntityDailySalesAndLabor:
		return []string{"index_col", "location_id", "date"}
	default:
		return []string{"id"}
	}
}

// nestedFields lists the sub-collections stripped from each entity's
// primary row before it can land in a flat table.
var nestedFields = map[Entity][]string{
	EntityCompanies: {"meta"},
	EntityRoles:     {"stations"},
	EntityShifts:    {"breaks"},
	EntityPunches:   {"breaks"},
	EntityReceipts:  {"receipt_lines", "tip_details"},
}

// Normalize flattens one raw record into its primary row plus any derived
// rows. Nested sub-collections are removed; for roles reporting a nonzero
// station count, the stripped stations re-emerge as rows in the stations
// stream. All datetime-valued fields leave in canonical text form.
func Normalize(entity Entity, rec Record) (Row, []Derived) {
	row := make(Row, len(rec))
	for k, v := range rec {
		row[k] = canonicalValue(v)
	}

	var derived []Derived
	if entity == EntityRoles && numField(rec, "num_stations") > 0 {
		if stations, ok := rec["stations"].([]any); ok {
			for _, s := range stations {
				station, ok := s.(map[string]any)
				if !ok {
					continue
				}
				stationRow, _ := Normalize(EntityStations, Record(station))
				derived = append(derived, Derived{
					Entity: EntityStations,
					Table:  tableFor(EntityStations),
					Row:    stationRow,
				})
			}
		}
	}

	for _, field := range nestedFields[entity] {
		delete(row, field)
	}
	return row, derived
}

// NormalizeDailySalesAndLabor flattens one report record for a location.
// The report has no natural id, so the row gets a location_id column and a
// synthesized "{location_id}-{date}" string key unique across locations.
func NormalizeDailySalesAndLabor(rec Record, locationID int64) Row {
	row, _ := Normalize(EntityDailySalesAndLabor, rec)
	row["location_id"] = locationID
	row["index_col"] = fmt.Sprintf("%d-%v", locationID, rec["date"])
	return row
}

// NormalizeAssignment flattens one of a user's assignment records. The
// nested record's own id is renamed to "<kind singular>_id" and the row is
// keyed by the owning user instead.
func NormalizeAssignment(kind string, userID int64, rec Record) Row {
	row, _ := Normalize(EntityAssignments, rec)
	singular := kind
	if len(singular) > 1 && singular[len(singular)-1] == 's' {
		singular = singular[:len(singular)-1]
	}
	if id, ok := row["id"]; ok {
		delete(row, "id")
		row[singular+"_id"] = id
	}
	row["user_id"] = userID
	return row
}

// assignmentTable names the destination table for one assignment kind.
func assignmentTable(kind string) string {
	return "assignment_" + kind
}

// canonicalValue renders datetime-shaped strings in the canonical API text
// form (UTC) and leaves everything else untouched. Composite values pass
// through; the sink stores them as JSON text.
func canonicalValue(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	// Only ISO-8601 datetimes with a zone need rewriting; bare dates and
	// already-canonical timestamps stay as-is.
	if len(s) < 20 || s[10] != 'T' {
		return v
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return v
	}
	return dates.FormatAPITime(t)
}

// numField reads a numeric field from a raw record, tolerating the JSON
// decoder's float64 and absent fields alike.
func numField(rec Record, field string) float64 {
	switch v := rec[field].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// idField reads an entity id from a raw record as an int64.
func idField(rec Record, field string) int64 {
	return int64(numField(rec, field))
}
