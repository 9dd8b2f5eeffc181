package sync

import (
	"context"
	"net/url"

	"github.com/sevensync/sevensync/internal/sevenshifts"
)

// Iter is a lazy sequence of raw records, paginated transparently by the
// source.
type Iter interface {
	// Next advances the iterator, returning false at the end of the
	// sequence or on error.
	Next() bool
	// Record returns the current record. Only valid after a true Next.
	Record() Record
	// Err returns the first error encountered during iteration.
	Err() error
}

// Source is the remote data source the engine pulls from. The production
// implementation wraps the 7shifts client; tests substitute an in-memory
// one.
type Source interface {
	ListCompanies(ctx context.Context) Iter
	GetCompany(ctx context.Context, companyID int64) (Record, error)
	ListLocations(ctx context.Context, companyID int64, params url.Values) Iter
	ListDepartments(ctx context.Context, companyID int64, params url.Values) Iter
	ListRoles(ctx context.Context, companyID int64, params url.Values) Iter
	ListUsers(ctx context.Context, companyID int64, params url.Values) Iter
	ListShifts(ctx context.Context, companyID int64, params url.Values) Iter
	ListPunches(ctx context.Context, companyID int64, params url.Values) Iter
	ListReceipts(ctx context.Context, companyID int64, params url.Values) Iter
	ListUserWages(ctx context.Context, companyID, userID int64) (current, upcoming []Record, err error)
	ListUserAssignments(ctx context.Context, companyID, userID int64) (map[string][]Record, error)
	DailySalesAndLabor(ctx context.Context, params url.Values) ([]Record, error)
}

// apiSource adapts *sevenshifts.Client to the Source interface.
type apiSource struct {
	c *sevenshifts.Client
}

// NewAPISource wraps a 7shifts client as the engine's record source.
func NewAPISource(c *sevenshifts.Client) Source {
	return &apiSource{c: c}
}

func (s *apiSource) ListCompanies(ctx context.Context) Iter {
	return s.c.ListCompanies(ctx)
}

func (s *apiSource) GetCompany(ctx context.Context, companyID int64) (Record, error) {
	return s.c.GetCompany(ctx, companyID)
}

func (s *apiSource) ListLocations(ctx context.Context, companyID int64, params url.Values) Iter {
	return s.c.ListLocations(ctx, companyID, params)
}

func (s *apiSource) ListDepartments(ctx context.Context, companyID int64, params url.Values) Iter {
	return s.c.ListDepartments(ctx, companyID, params)
}

func (s *apiSource) ListRoles(ctx context.Context, companyID int64, params url.Values) Iter {
	return s.c.ListRoles(ctx, companyID, params)
}

func (s *apiSource) ListUsers(ctx context.Context, companyID int64, params url.Values) Iter {
	return s.c.ListUsers(ctx, companyID, params)
}

func (s *apiSource) ListShifts(ctx context.Context, companyID int64, params url.Values) Iter {
	return s.c.ListShifts(ctx, companyID, params)
}

func (s *apiSource) ListPunches(ctx context.Context, companyID int64, params url.Values) Iter {
	return s.c.ListPunches(ctx, companyID, params)
}

func (s *apiSource) ListReceipts(ctx context.Context, companyID int64, params url.Values) Iter {
	return s.c.ListReceipts(ctx, companyID, params)
}

func (s *apiSource) ListUserWages(ctx context.Context, companyID, userID int64) ([]Record, []Record, error) {
	return s.c.ListUserWages(ctx, companyID, userID)
}

func (s *apiSource) ListUserAssignments(ctx context.Context, companyID, userID int64) (map[string][]Record, error) {
	return s.c.ListUserAssignments(ctx, companyID, userID)
}

func (s *apiSource) DailySalesAndLabor(ctx context.Context, params url.Values) ([]Record, error) {
	return s.c.DailySalesAndLabor(ctx, params)
}
