package sevenshifts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

// pageServer serves /v2/company/1/shifts in pages of two records, using a
// numeric cursor, and asserts auth headers on every request.
func pageServer(t *testing.T, total int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}

		start := 0
		if cursor := r.URL.Query().Get("cursor"); cursor != "" {
			fmt.Sscanf(cursor, "%d", &start)
		}

		var page []Record
		for i := start; i < total && i < start+2; i++ {
			page = append(page, Record{"id": float64(i + 1)})
		}

		next := ""
		if start+2 < total {
			next = fmt.Sprint(start + 2)
		}

		resp := map[string]any{
			"data": page,
			"meta": map[string]any{"cursor": map[string]any{"next": next}},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestPager_WalksAllPages(t *testing.T) {
	srv := pageServer(t, 5)
	defer srv.Close()

	c := New("test-token", WithBaseURL(srv.URL))
	pager := c.ListShifts(context.Background(), 1, nil)

	var ids []float64
	for pager.Next() {
		ids = append(ids, pager.Record()["id"].(float64))
	}
	if err := pager.Err(); err != nil {
		t.Fatalf("Err() = %v", err)
	}

	if len(ids) != 5 {
		t.Fatalf("got %d records, want 5", len(ids))
	}
	for i, id := range ids {
		if id != float64(i+1) {
			t.Errorf("ids[%d] = %v, want %d (page order must be preserved)", i, id, i+1)
		}
	}
}

func TestPager_EmptyResult(t *testing.T) {
	srv := pageServer(t, 0)
	defer srv.Close()

	c := New("test-token", WithBaseURL(srv.URL))
	pager := c.ListShifts(context.Background(), 1, nil)

	if pager.Next() {
		t.Error("Next() = true for empty result set")
	}
	if err := pager.Err(); err != nil {
		t.Errorf("Err() = %v, want nil", err)
	}
}

func TestGetJSON_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":"bad token"}`)
	}))
	defer srv.Close()

	c := New("test-token", WithBaseURL(srv.URL))
	_, err := c.GetCompany(context.Background(), 7)
	if err == nil {
		t.Fatal("GetCompany() succeeded, want APIError")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %T, want *APIError", err)
	}
	if apiErr.Status != http.StatusForbidden {
		t.Errorf("Status = %d, want 403", apiErr.Status)
	}
}

func TestListUserWages_SplitsLists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/company/3/users/9/wages" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"data":{
			"current_wages":[{"id":1,"wage_type":"hourly"}],
			"upcoming_wages":[{"id":2,"wage_type":"weekly_salary"}]
		}}`)
	}))
	defer srv.Close()

	c := New("test-token", WithBaseURL(srv.URL))
	current, upcoming, err := c.ListUserWages(context.Background(), 3, 9)
	if err != nil {
		t.Fatalf("ListUserWages() failed: %v", err)
	}
	if len(current) != 1 || len(upcoming) != 1 {
		t.Errorf("got %d current, %d upcoming, want 1 and 1", len(current), len(upcoming))
	}
}

func TestDailySalesAndLabor_RequiresParams(t *testing.T) {
	c := New("test-token")
	_, err := c.DailySalesAndLabor(context.Background(), url.Values{
		"start_date": {"2023-01-01"},
		"end_date":   {"2023-01-02"},
	})
	if err == nil {
		t.Fatal("DailySalesAndLabor() succeeded without location_id")
	}
}

func TestNewPager_SetsLimit(t *testing.T) {
	var gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotLimit = r.URL.Query().Get("limit")
		fmt.Fprint(w, `{"data":[]}`)
	}))
	defer srv.Close()

	c := New("test-token", WithBaseURL(srv.URL), WithPageSize(50))
	pager := c.ListLocations(context.Background(), 1, nil)
	pager.Next()

	if gotLimit != "50" {
		t.Errorf("limit param = %q, want 50", gotLimit)
	}
}
