package sevenshifts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
)

// ListCompanies lists every company visible to the access token.
func (c *Client) ListCompanies(ctx context.Context) *Pager {
	return c.newPager(ctx, "/v2/company", nil)
}

// GetCompany fetches a single company by id.
func (c *Client) GetCompany(ctx context.Context, companyID int64) (Record, error) {
	return c.getRecord(ctx, fmt.Sprintf("/v2/company/%d", companyID), nil)
}

// ListLocations lists a company's locations. Supported filter params:
// modified_since.
func (c *Client) ListLocations(ctx context.Context, companyID int64, params url.Values) *Pager {
	return c.newPager(ctx, fmt.Sprintf("/v2/company/%d/locations", companyID), params)
}

// ListDepartments lists a company's departments. Supported filter params:
// modified_since.
func (c *Client) ListDepartments(ctx context.Context, companyID int64, params url.Values) *Pager {
	return c.newPager(ctx, fmt.Sprintf("/v2/company/%d/departments", companyID), params)
}

// ListRoles lists a company's roles, each with its nested stations.
// Supported filter params: modified_since.
func (c *Client) ListRoles(ctx context.Context, companyID int64, params url.Values) *Pager {
	return c.newPager(ctx, fmt.Sprintf("/v2/company/%d/roles", companyID), params)
}

// ListUsers lists a company's users. Supported filter params: status
// (active/inactive), modified_since.
func (c *Client) ListUsers(ctx context.Context, companyID int64, params url.Values) *Pager {
	return c.newPager(ctx, fmt.Sprintf("/v2/company/%d/users", companyID), params)
}

// ListShifts lists a company's shifts. Supported filter params:
// modified_since, start[gte], start[lte].
func (c *Client) ListShifts(ctx context.Context, companyID int64, params url.Values) *Pager {
	return c.newPager(ctx, fmt.Sprintf("/v2/company/%d/shifts", companyID), params)
}

// ListPunches lists a company's time punches. Supported filter params:
// modified_since (+localize_search_time), clocked_in[gte], clocked_in[lte],
// approved.
func (c *Client) ListPunches(ctx context.Context, companyID int64, params url.Values) *Pager {
	return c.newPager(ctx, fmt.Sprintf("/v2/company/%d/time_punches", companyID), params)
}

// ListReceipts lists sales receipts for one location of a company.
// location_id is required by the API; receipts older than 90 days are not
// queryable. Supported filter params: location_id, modified_since,
// receipt_date[gte], receipt_date[lte], status.
func (c *Client) ListReceipts(ctx context.Context, companyID int64, params url.Values) *Pager {
	return c.newPager(ctx, fmt.Sprintf("/v2/company/%d/receipts", companyID), params)
}

// ListUserWages fetches one user's wage records. The API splits them into
// current and upcoming lists; both are returned.
func (c *Client) ListUserWages(ctx context.Context, companyID, userID int64) (current, upcoming []Record, err error) {
	path := fmt.Sprintf("/v2/company/%d/users/%d/wages", companyID, userID)
	env, err := c.getJSON(ctx, path, nil)
	if err != nil {
		return nil, nil, err
	}

	var payload struct {
		CurrentWages  []Record `json:"current_wages"`
		UpcomingWages []Record `json:"upcoming_wages"`
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, nil, fmt.Errorf("failed to decode wages for user %d: %w", userID, err)
	}
	return payload.CurrentWages, payload.UpcomingWages, nil
}

// ListUserAssignments fetches one user's assignments, keyed by assignment
// kind (locations, departments, roles).
func (c *Client) ListUserAssignments(ctx context.Context, companyID, userID int64) (map[string][]Record, error) {
	path := fmt.Sprintf("/v2/company/%d/users/%d/assignments", companyID, userID)
	env, err := c.getJSON(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	var payload map[string][]Record
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode assignments for user %d: %w", userID, err)
	}
	return payload, nil
}

// DailySalesAndLabor fetches the daily sales and labor report. start_date,
// end_date and location_id params are required by the API.
func (c *Client) DailySalesAndLabor(ctx context.Context, params url.Values) ([]Record, error) {
	for _, required := range []string{"start_date", "end_date", "location_id"} {
		if params.Get(required) == "" {
			return nil, fmt.Errorf("daily_sales_and_labor requires %s", required)
		}
	}
	return c.getRecordList(ctx, "/v2/reports/daily_sales_and_labor", params)
}

// Whoami returns the identity associated with the access token.
func (c *Client) Whoami(ctx context.Context) (Record, error) {
	return c.getRecord(ctx, "/v2/whoami", nil)
}
