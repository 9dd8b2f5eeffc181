package sync

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/sevensync/sevensync/internal/dates"
	"github.com/sevensync/sevensync/internal/sink"
)

// sliceIter serves a fixed record slice as an Iter.
type sliceIter struct {
	recs []Record
	i    int
	err  error
}

func (s *sliceIter) Next() bool {
	if s.err != nil || s.i >= len(s.recs) {
		return false
	}
	s.i++
	return true
}

func (s *sliceIter) Record() Record { return s.recs[s.i-1] }
func (s *sliceIter) Err() error     { return s.err }

// fakeSource is an in-memory Source. Entity data is keyed by company id;
// receipts and daily reports additionally by location id.
type fakeSource struct {
	companies   []Record
	locations   map[int64][]Record
	departments map[int64][]Record
	roles       map[int64][]Record
	users       map[int64][]Record
	shifts      map[int64][]Record
	punches     map[int64][]Record
	receipts    map[int64]map[int64][]Record
	wages       map[int64][]Record            // per user id
	assignments map[int64]map[string][]Record // per user id
	dailySales  map[int64][]Record            // per location id

	locationCalls int
	punchParams   []url.Values
	fetchErr      error // returned by ListShifts when set
}

func (f *fakeSource) iter(recs []Record) Iter { return &sliceIter{recs: recs} }

func (f *fakeSource) ListCompanies(ctx context.Context) Iter { return f.iter(f.companies) }

func (f *fakeSource) GetCompany(ctx context.Context, id int64) (Record, error) {
	for _, c := range f.companies {
		if idField(c, "id") == id {
			return c, nil
		}
	}
	return nil, fmt.Errorf("company %d not found", id)
}

func (f *fakeSource) ListLocations(ctx context.Context, c int64, _ url.Values) Iter {
	f.locationCalls++
	return f.iter(f.locations[c])
}

func (f *fakeSource) ListDepartments(ctx context.Context, c int64, _ url.Values) Iter {
	return f.iter(f.departments[c])
}

func (f *fakeSource) ListRoles(ctx context.Context, c int64, _ url.Values) Iter {
	return f.iter(f.roles[c])
}

func (f *fakeSource) ListUsers(ctx context.Context, c int64, params url.Values) Iter {
	if params.Get("status") == "inactive" {
		return f.iter(nil)
	}
	return f.iter(f.users[c])
}

func (f *fakeSource) ListShifts(ctx context.Context, c int64, _ url.Values) Iter {
	if f.fetchErr != nil {
		return &sliceIter{err: f.fetchErr}
	}
	return f.iter(f.shifts[c])
}

func (f *fakeSource) ListPunches(ctx context.Context, c int64, params url.Values) Iter {
	f.punchParams = append(f.punchParams, params)
	return f.iter(f.punches[c])
}

func (f *fakeSource) ListReceipts(ctx context.Context, c int64, params url.Values) Iter {
	var locationID int64
	fmt.Sscanf(params.Get("location_id"), "%d", &locationID)
	return f.iter(f.receipts[c][locationID])
}

func (f *fakeSource) ListUserWages(ctx context.Context, c, userID int64) ([]Record, []Record, error) {
	return f.wages[userID], nil, nil
}

func (f *fakeSource) ListUserAssignments(ctx context.Context, c, userID int64) (map[string][]Record, error) {
	return f.assignments[userID], nil
}

func (f *fakeSource) DailySalesAndLabor(ctx context.Context, params url.Values) ([]Record, error) {
	var locationID int64
	fmt.Sscanf(params.Get("location_id"), "%d", &locationID)
	return f.dailySales[locationID], nil
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		companies: []Record{{"id": float64(1), "name": "Acme Hospitality"}},
		locations: map[int64][]Record{1: {
			{"id": float64(10), "name": "Downtown"},
			{"id": float64(11), "name": "Airport"},
		}},
		departments: map[int64][]Record{1: {{"id": float64(20), "name": "FOH"}}},
		roles: map[int64][]Record{1: {{
			"id": float64(30), "name": "Server", "num_stations": float64(0), "stations": []any{},
		}}},
		users: map[int64][]Record{1: {{
			"id": float64(40), "first_name": "Sam", "last_name": "Lee",
		}}},
		shifts:  map[int64][]Record{1: {{"id": float64(50), "breaks": []any{}}}},
		punches: map[int64][]Record{1: {{"id": float64(60), "breaks": []any{}}}},
		receipts: map[int64]map[int64][]Record{1: {
			10: {
				{"id": "r-1", "receipt_lines": []any{}, "tip_details": []any{}},
				{"id": "r-2", "receipt_lines": []any{}, "tip_details": []any{}},
				{"id": "r-3", "receipt_lines": []any{}, "tip_details": []any{}},
			},
			11: nil,
		}},
		wages: map[int64][]Record{40: {{"id": float64(70), "wage_type": "hourly"}}},
		assignments: map[int64]map[string][]Record{40: {
			"departments": {{"id": float64(20)}},
		}},
		dailySales: map[int64][]Record{
			10: {{"date": "2023-06-13", "actual_sales": float64(1000)}},
			11: {{"date": "2023-06-13", "actual_sales": float64(500)}},
		},
	}
}

func testWindow(t *testing.T) dates.Window {
	t.Helper()
	w, err := dates.Resolve(dates.Options{
		StartDate: "2023-06-13",
		EndDate:   "2023-06-13",
	})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}
	return w
}

func testOrchestrator(t *testing.T, src Source) (*Orchestrator, *sink.DB) {
	t.Helper()
	db, err := sink.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("sink.Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(src, NewUpserter(db, nil), nil), db
}

func TestRun_AllEntities(t *testing.T) {
	src := newFakeSource()
	o, db := testOrchestrator(t, src)

	result, err := o.Run(context.Background(), Options{
		Entities: []string{"all"},
		Window:   testWindow(t),
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if result.Companies != 1 {
		t.Errorf("Companies = %d, want 1", result.Companies)
	}

	want := map[Entity]int{
		EntityCompanies:          1,
		EntityLocations:          2,
		EntityDepartments:        1,
		EntityRoles:              1,
		EntityUsers:              1,
		EntityWages:              1,
		EntityAssignments:        1,
		EntityReceipts:           3,
		EntityShifts:             1,
		EntityPunches:            1,
		EntityDailySalesAndLabor: 2,
	}
	for entity, n := range want {
		if result.Counts[entity] != n {
			t.Errorf("Counts[%s] = %d, want %d", entity, result.Counts[entity], n)
		}
	}

	for _, table := range []string{
		"companies", "locations", "departments", "roles", "users",
		"wages", "assignment_departments", "receipts", "shifts",
		"time_punches", "daily_sales_and_labor",
	} {
		exists, err := db.TableExists(context.Background(), table)
		if err != nil {
			t.Fatalf("TableExists(%s) failed: %v", table, err)
		}
		if !exists {
			t.Errorf("table %s missing after full run", table)
		}
	}
}

func TestRun_ReceiptsAcrossLocations(t *testing.T) {
	// Location 10 has 3 receipts in the window, location 11 has none. All
	// 3 land; the empty location is a no-op, not a failure.
	src := newFakeSource()
	o, db := testOrchestrator(t, src)

	result, err := o.Run(context.Background(), Options{
		Entities:  []string{"receipts"},
		Window:    testWindow(t),
		ChunkSize: 1000,
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if result.Counts[EntityReceipts] != 3 {
		t.Errorf("Counts[receipts] = %d, want 3", result.Counts[EntityReceipts])
	}
	if got := countRows(t, db, "receipts"); got != 3 {
		t.Errorf("receipts rows = %d, want 3", got)
	}
}

func TestRun_ReceiptsChunked(t *testing.T) {
	src := newFakeSource()
	var recs []Record
	for i := 0; i < 7; i++ {
		recs = append(recs, Record{"id": fmt.Sprintf("r-%d", i), "receipt_lines": []any{}, "tip_details": []any{}})
	}
	src.receipts[1][10] = recs
	src.receipts[1][11] = nil

	o, db := testOrchestrator(t, src)

	result, err := o.Run(context.Background(), Options{
		Entities:  []string{"receipts"},
		Window:    testWindow(t),
		ChunkSize: 3,
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if result.Counts[EntityReceipts] != 7 {
		t.Errorf("Counts[receipts] = %d, want 7", result.Counts[EntityReceipts])
	}
	if got := countRows(t, db, "receipts"); got != 7 {
		t.Errorf("receipts rows = %d, want 7 across chunks", got)
	}
}

func TestRun_LocationListFetchedOnce(t *testing.T) {
	src := newFakeSource()
	o, _ := testOrchestrator(t, src)

	_, err := o.Run(context.Background(), Options{
		Entities: []string{"receipts", "daily_sales_and_labor"},
		Window:   testWindow(t),
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if src.locationCalls != 1 {
		t.Errorf("ListLocations called %d times, want 1 (cached per company)", src.locationCalls)
	}
}

func TestRun_UnapprovedPunchesSecondPass(t *testing.T) {
	src := newFakeSource()
	o, _ := testOrchestrator(t, src)

	_, err := o.Run(context.Background(), Options{
		Entities:          []string{"punches"},
		Window:            testWindow(t),
		IncludeUnapproved: true,
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}

	if len(src.punchParams) != 2 {
		t.Fatalf("punches fetched %d times, want 2 passes", len(src.punchParams))
	}
	if got := src.punchParams[0].Get("approved"); got != "1" {
		t.Errorf("first pass approved = %q, want 1", got)
	}
	if got := src.punchParams[1].Get("approved"); got != "" {
		t.Errorf("second pass approved = %q, want unset (both statuses)", got)
	}
}

func TestRun_UnknownEntity(t *testing.T) {
	src := newFakeSource()
	o, _ := testOrchestrator(t, src)

	_, err := o.Run(context.Background(), Options{
		Entities: []string{"widgets"},
		Window:   testWindow(t),
	})

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("Run() error = %v, want ConfigError", err)
	}
}

func TestRun_FetchErrorAbortsButKeepsCommitted(t *testing.T) {
	src := newFakeSource()
	src.fetchErr = fmt.Errorf("upstream 500")
	o, db := testOrchestrator(t, src)

	// Locations sync before shifts in the fixed order, so their commit
	// must survive the shift failure.
	_, err := o.Run(context.Background(), Options{
		Entities: []string{"locations", "shifts"},
		Window:   testWindow(t),
	})

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("Run() error = %v, want FetchError", err)
	}
	if fetchErr.Entity != EntityShifts {
		t.Errorf("failing entity = %s, want shifts", fetchErr.Entity)
	}

	if got := countRows(t, db, "locations"); got != 2 {
		t.Errorf("locations rows = %d, want 2 (prior entity stays committed)", got)
	}
}

func TestRun_ExplicitCompany(t *testing.T) {
	src := newFakeSource()
	o, _ := testOrchestrator(t, src)

	result, err := o.Run(context.Background(), Options{
		Entities:  []string{"locations"},
		CompanyID: 1,
		Window:    testWindow(t),
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if result.Companies != 1 {
		t.Errorf("Companies = %d, want 1", result.Companies)
	}
}

func TestRun_CursorWindow(t *testing.T) {
	src := newFakeSource()
	o, _ := testOrchestrator(t, src)

	w, err := dates.Resolve(dates.Options{ModifiedSince: "2023-06-01"})
	if err != nil {
		t.Fatalf("Resolve() failed: %v", err)
	}

	result, err := o.Run(context.Background(), Options{
		Entities: []string{"shifts"},
		Window:   w,
	})
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if result.Counts[EntityShifts] != 1 {
		t.Errorf("Counts[shifts] = %d, want 1", result.Counts[EntityShifts])
	}
}
