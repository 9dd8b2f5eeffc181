package sync

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/sevensync/sevensync/internal/dates"
)

// Options configures one sync run.
type Options struct {
	// Entities to sync, by name. The single name "all" selects everything
	// in SyncOrder.
	Entities []string

	// CompanyID limits the run to one company. Zero means every company
	// visible to the credential.
	CompanyID int64

	// Window is the resolved date filter, computed once and read-only.
	Window dates.Window

	// ChunkSize bounds receipt batches. Zero means DefaultChunkSize.
	ChunkSize int

	// IncludeInactive adds a second users pass (and wages/assignments
	// passes) for deactivated users.
	IncludeInactive bool

	// IncludeUnapproved adds a second punches pass that also carries
	// unapproved punches.
	IncludeUnapproved bool
}

// Result aggregates per-entity row counts across all companies in a run.
type Result struct {
	Companies int
	Counts    map[Entity]int
}

// Orchestrator sequences fetch, normalize and upsert per entity per
// company. One run is strictly sequential; each entity commits its own sink
// transaction, so a failure aborts the run without disturbing entities that
// already committed.
type Orchestrator struct {
	src    Source
	up     *Upserter
	logger *log.Logger

	// locations caches each company's location list: receipts and the
	// daily report fan out per location, and wages/assignments re-read
	// users, so one fetch serves the whole run.
	locations map[int64][]Record
}

// New creates an Orchestrator. If logger is nil, a default logger writing
// to stderr is used.
func New(src Source, up *Upserter, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Orchestrator{
		src:       src,
		up:        up,
		logger:    logger,
		locations: make(map[int64][]Record),
	}
}

// Run executes one sync run and returns the per-entity counts. The first
// failing entity aborts the run; committed entities stay committed.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	selected, err := selection(opts.Entities)
	if err != nil {
		return nil, err
	}

	companies, err := o.resolveCompanies(ctx, opts.CompanyID)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Companies: len(companies),
		Counts:    make(map[Entity]int),
	}

	if selected[EntityCompanies] {
		n, err := o.syncCompanies(ctx, companies)
		if err != nil {
			return result, err
		}
		o.logger.Printf("Synced %d companies", n)
		result.Counts[EntityCompanies] = n
	}

	for _, company := range companies {
		companyID := idField(company, "id")
		for _, entity := range SyncOrder {
			if entity == EntityCompanies || !selected[entity] {
				continue
			}
			n, err := o.syncEntity(ctx, entity, companyID, opts)
			if err != nil {
				return result, fmt.Errorf("syncing %s for company %d: %w", entity, companyID, err)
			}
			o.logger.Printf("Synced %d %s for company %d", n, entity, companyID)
			result.Counts[entity] += n
		}
	}
	return result, nil
}

func (o *Orchestrator) syncEntity(ctx context.Context, entity Entity, companyID int64, opts Options) (int, error) {
	switch entity {
	case EntityLocations:
		return o.syncLocations(ctx, companyID, opts.Window)
	case EntityDepartments:
		return o.syncDepartments(ctx, companyID, opts.Window)
	case EntityRoles:
		return o.syncRoles(ctx, companyID, opts.Window)
	case EntityUsers:
		return o.syncUsersAllStatuses(ctx, companyID, opts)
	case EntityWages:
		return o.syncWagesAllStatuses(ctx, companyID, opts)
	case EntityAssignments:
		return o.syncAssignmentsAllStatuses(ctx, companyID, opts)
	case EntityReceipts:
		return o.syncReceipts(ctx, companyID, opts.Window, opts.ChunkSize)
	case EntityShifts:
		return o.syncShifts(ctx, companyID, opts.Window)
	case EntityPunches:
		return o.syncPunchesAllPasses(ctx, companyID, opts)
	case EntityDailySalesAndLabor:
		return o.syncDailySalesAndLabor(ctx, companyID, opts.Window)
	default:
		return 0, &ConfigError{Msg: fmt.Sprintf("no sync implementation for entity %q", entity)}
	}
}

// resolveCompanies returns either the one explicitly requested company or
// every company visible to the credential.
func (o *Orchestrator) resolveCompanies(ctx context.Context, companyID int64) ([]Record, error) {
	if companyID != 0 {
		company, err := o.src.GetCompany(ctx, companyID)
		if err != nil {
			return nil, &FetchError{Entity: EntityCompanies, CompanyID: companyID, Err: err}
		}
		return []Record{company}, nil
	}

	companies, err := collect(o.src.ListCompanies(ctx))
	if err != nil {
		return nil, &FetchError{Entity: EntityCompanies, Err: err}
	}
	if len(companies) == 0 {
		return nil, &ConfigError{Msg: "no companies visible to this credential"}
	}
	return companies, nil
}

func (o *Orchestrator) syncCompanies(ctx context.Context, companies []Record) (int, error) {
	batch := Batch{Table: tableFor(EntityCompanies), Keys: keysFor(EntityCompanies)}
	for _, rec := range companies {
		row, _ := Normalize(EntityCompanies, rec)
		batch.Rows = append(batch.Rows, row)
	}
	return o.up.Upsert(ctx, batch)
}

func (o *Orchestrator) syncLocations(ctx context.Context, companyID int64, w dates.Window) (int, error) {
	return o.syncSimple(ctx, EntityLocations, companyID,
		o.src.ListLocations(ctx, companyID, cursorParams(w)))
}

func (o *Orchestrator) syncDepartments(ctx context.Context, companyID int64, w dates.Window) (int, error) {
	return o.syncSimple(ctx, EntityDepartments, companyID,
		o.src.ListDepartments(ctx, companyID, cursorParams(w)))
}

// syncRoles writes roles and their derived station rows. The returned count
// covers roles only; stations are logged separately.
func (o *Orchestrator) syncRoles(ctx context.Context, companyID int64, w dates.Window) (int, error) {
	it := o.src.ListRoles(ctx, companyID, cursorParams(w))

	roleBatch := Batch{Table: tableFor(EntityRoles), Keys: keysFor(EntityRoles)}
	stationBatch := Batch{Table: tableFor(EntityStations), Keys: keysFor(EntityStations)}
	for it.Next() {
		row, derived := Normalize(EntityRoles, it.Record())
		roleBatch.Rows = append(roleBatch.Rows, row)
		for _, d := range derived {
			stationBatch.Rows = append(stationBatch.Rows, d.Row)
		}
	}
	if err := it.Err(); err != nil {
		return 0, &FetchError{Entity: EntityRoles, CompanyID: companyID, Err: err}
	}

	roleCount, err := o.up.Upsert(ctx, roleBatch)
	if err != nil {
		return roleCount, err
	}
	stationCount, err := o.up.Upsert(ctx, stationBatch)
	if err != nil {
		return roleCount, err
	}
	o.logger.Printf("Synced %d stations for company %d", stationCount, companyID)
	return roleCount, nil
}

func (o *Orchestrator) syncUsersAllStatuses(ctx context.Context, companyID int64, opts Options) (int, error) {
	total, err := o.syncUsers(ctx, companyID, opts.Window, "active")
	if err != nil {
		return total, err
	}
	if opts.IncludeInactive {
		n, err := o.syncUsers(ctx, companyID, opts.Window, "inactive")
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (o *Orchestrator) syncUsers(ctx context.Context, companyID int64, w dates.Window, status string) (int, error) {
	return o.syncSimple(ctx, EntityUsers, companyID,
		o.src.ListUsers(ctx, companyID, userParams(w, status)))
}

func (o *Orchestrator) syncWagesAllStatuses(ctx context.Context, companyID int64, opts Options) (int, error) {
	total, err := o.syncWages(ctx, companyID, opts.Window, "active")
	if err != nil {
		return total, err
	}
	if opts.IncludeInactive {
		n, err := o.syncWages(ctx, companyID, opts.Window, "inactive")
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// syncWages fetches wage data per user: the API has no bulk wage listing.
// Current and upcoming wage lists are concatenated before normalization.
func (o *Orchestrator) syncWages(ctx context.Context, companyID int64, w dates.Window, status string) (int, error) {
	users, err := collect(o.src.ListUsers(ctx, companyID, userParams(w, status)))
	if err != nil {
		return 0, &FetchError{Entity: EntityUsers, CompanyID: companyID, Err: err}
	}

	total := 0
	for _, user := range users {
		userID := idField(user, "id")
		current, upcoming, err := o.src.ListUserWages(ctx, companyID, userID)
		if err != nil {
			return total, &FetchError{Entity: EntityWages, CompanyID: companyID, Err: err}
		}

		batch := Batch{Table: tableFor(EntityWages), Keys: keysFor(EntityWages)}
		for _, rec := range append(current, upcoming...) {
			row, _ := Normalize(EntityWages, rec)
			batch.Rows = append(batch.Rows, row)
		}
		n, err := o.up.Upsert(ctx, batch)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (o *Orchestrator) syncAssignmentsAllStatuses(ctx context.Context, companyID int64, opts Options) (int, error) {
	total, err := o.syncAssignments(ctx, companyID, opts.Window, "active")
	if err != nil {
		return total, err
	}
	if opts.IncludeInactive {
		n, err := o.syncAssignments(ctx, companyID, opts.Window, "inactive")
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// syncAssignments gathers every user's assignment lists, then writes one
// batch per assignment kind into its own assignment_<kind> table.
func (o *Orchestrator) syncAssignments(ctx context.Context, companyID int64, w dates.Window, status string) (int, error) {
	users, err := collect(o.src.ListUsers(ctx, companyID, userParams(w, status)))
	if err != nil {
		return 0, &FetchError{Entity: EntityUsers, CompanyID: companyID, Err: err}
	}

	byKind := make(map[string][]Row)
	for _, user := range users {
		userID := idField(user, "id")
		assignments, err := o.src.ListUserAssignments(ctx, companyID, userID)
		if err != nil {
			return 0, &FetchError{Entity: EntityAssignments, CompanyID: companyID, Err: err}
		}
		for kind, recs := range assignments {
			for _, rec := range recs {
				byKind[kind] = append(byKind[kind], NormalizeAssignment(kind, userID, rec))
			}
		}
	}

	total := 0
	for kind, rows := range byKind {
		batch := Batch{Table: assignmentTable(kind), Keys: []string{"user_id"}, Rows: rows}
		n, err := o.up.Upsert(ctx, batch)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// syncReceipts streams receipts through a bounded chunk writer, one
// location at a time: receipt volume is unbounded, so rows never accumulate
// past the chunk size.
func (o *Orchestrator) syncReceipts(ctx context.Context, companyID int64, w dates.Window, chunkSize int) (int, error) {
	locations, err := o.companyLocations(ctx, companyID)
	if err != nil {
		return 0, err
	}

	writer := NewChunkWriter(tableFor(EntityReceipts), keysFor(EntityReceipts), chunkSize,
		func(b Batch) (int, error) {
			o.logger.Printf("writing %d receipt records", len(b.Rows))
			return o.up.Upsert(ctx, b)
		})

	for _, location := range locations {
		locationID := idField(location, "id")
		o.logger.Printf("gathering receipt data for location %v", location["name"])

		it := o.src.ListReceipts(ctx, companyID, receiptParams(w, locationID))
		for it.Next() {
			row, _ := Normalize(EntityReceipts, it.Record())
			if err := writer.Add(row); err != nil {
				return writer.Written(), err
			}
		}
		if err := it.Err(); err != nil {
			return writer.Written(), &FetchError{Entity: EntityReceipts, CompanyID: companyID, Err: err}
		}
		if err := writer.Flush(); err != nil {
			return writer.Written(), err
		}
	}
	return writer.Written(), nil
}

func (o *Orchestrator) syncShifts(ctx context.Context, companyID int64, w dates.Window) (int, error) {
	return o.syncSimple(ctx, EntityShifts, companyID,
		o.src.ListShifts(ctx, companyID, rangeParams(w, "start")))
}

// syncPunchesAllPasses syncs approved punches, then optionally a second
// pass with the approved filter removed so unapproved punches land too.
func (o *Orchestrator) syncPunchesAllPasses(ctx context.Context, companyID int64, opts Options) (int, error) {
	approved := true
	total, err := o.syncPunches(ctx, companyID, opts.Window, &approved)
	if err != nil {
		return total, err
	}
	if opts.IncludeUnapproved {
		n, err := o.syncPunches(ctx, companyID, opts.Window, nil)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (o *Orchestrator) syncPunches(ctx context.Context, companyID int64, w dates.Window, approved *bool) (int, error) {
	return o.syncSimple(ctx, EntityPunches, companyID,
		o.src.ListPunches(ctx, companyID, punchParams(w, approved)))
}

// syncDailySalesAndLabor fans out one report call per location and keys the
// rows on the synthesized location+date composite.
func (o *Orchestrator) syncDailySalesAndLabor(ctx context.Context, companyID int64, w dates.Window) (int, error) {
	locations, err := o.companyLocations(ctx, companyID)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, location := range locations {
		locationID := idField(location, "id")
		recs, err := o.src.DailySalesAndLabor(ctx, dailySalesParams(w, locationID))
		if err != nil {
			return total, &FetchError{Entity: EntityDailySalesAndLabor, CompanyID: companyID, Err: err}
		}
		o.logger.Printf("found %d sales and labor records for company %d, location %v",
			len(recs), companyID, location["name"])

		batch := Batch{
			Table: tableFor(EntityDailySalesAndLabor),
			Keys:  keysFor(EntityDailySalesAndLabor),
		}
		for _, rec := range recs {
			batch.Rows = append(batch.Rows, NormalizeDailySalesAndLabor(rec, locationID))
		}
		n, err := o.up.Upsert(ctx, batch)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// syncSimple materializes a low-volume entity stream fully in memory and
// upserts it as one batch.
func (o *Orchestrator) syncSimple(ctx context.Context, entity Entity, companyID int64, it Iter) (int, error) {
	batch := Batch{Table: tableFor(entity), Keys: keysFor(entity)}
	for it.Next() {
		row, _ := Normalize(entity, it.Record())
		batch.Rows = append(batch.Rows, row)
	}
	if err := it.Err(); err != nil {
		return 0, &FetchError{Entity: entity, CompanyID: companyID, Err: err}
	}
	return o.up.Upsert(ctx, batch)
}

// companyLocations returns a company's locations, fetched once per run.
// The cached fetch is unfiltered: receipts and reports need every location
// regardless of the window.
func (o *Orchestrator) companyLocations(ctx context.Context, companyID int64) ([]Record, error) {
	if cached, ok := o.locations[companyID]; ok {
		return cached, nil
	}
	locations, err := collect(o.src.ListLocations(ctx, companyID, nil))
	if err != nil {
		return nil, &FetchError{Entity: EntityLocations, CompanyID: companyID, Err: err}
	}
	o.locations[companyID] = locations
	return locations, nil
}

// selection expands the requested entity names into a set.
func selection(names []string) (map[Entity]bool, error) {
	selected := make(map[Entity]bool)
	for _, name := range names {
		if name == "all" {
			for _, e := range SyncOrder {
				selected[e] = true
			}
			continue
		}
		if !Selectable(name) {
			return nil, &ConfigError{Msg: fmt.Sprintf("unknown entity %q", name)}
		}
		selected[Entity(name)] = true
	}
	if len(selected) == 0 {
		return nil, &ConfigError{Msg: "no entities selected"}
	}
	return selected, nil
}

// collect drains an iterator into memory.
func collect(it Iter) ([]Record, error) {
	var recs []Record
	for it.Next() {
		recs = append(recs, it.Record())
	}
	return recs, it.Err()
}
