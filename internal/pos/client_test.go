package pos

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchToken_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/auth" {
			t.Fatalf("path = %s, want /auth", r.URL.Path)
		}

		user, pass, ok := r.BasicAuth()
		if !ok || user != "api-user" || pass != "api-pass" {
			t.Fatalf("basic auth = %q/%q, want api-user/api-pass", user, pass)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "bearer-123"})
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "api-user", "api-pass")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	token, err := client.FetchToken(ctx)
	if err != nil {
		t.Fatalf("FetchToken error: %v", err)
	}
	if token != "bearer-123" {
		t.Fatalf("token = %q, want bearer-123", token)
	}
}

func TestFetchToken_Rejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "bad", "creds")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := client.FetchToken(ctx)
	if !errors.Is(err, ErrAuthFailed) {
		t.Fatalf("expected ErrAuthFailed, got %v", err)
	}
}

func TestFetchOrderStatus_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/order/555" {
			t.Fatalf("path = %s, want /order/555", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Fatalf("authorization = %q, want Bearer tok", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id_order": 555,
			"total": 42.5,
			"date_pickup": "2026-08-30",
			"time_pickup": "16:00",
			"complete": true,
			"order_status": "COMPLETE",
			"paid_in_full": true,
			"items": [{"id_item": 7, "qty": 2}, {"id_item": 7, "qty": 1}, {"id_item": 9, "qty": 1}]
		}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "u", "p")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	status, err := client.FetchOrderStatus(ctx, "tok", "555")
	if err != nil {
		t.Fatalf("FetchOrderStatus error: %v", err)
	}
	if status == nil {
		t.Fatalf("expected status, got nil")
	}
	if status.ID != "555" || !status.Complete || !status.PaidInFull {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.Total != 42.5 {
		t.Fatalf("total = %v, want 42.5", status.Total)
	}
	if status.ItemCounts[7] != 3 || status.ItemCounts[9] != 1 {
		t.Fatalf("unexpected item counts: %v", status.ItemCounts)
	}
}

func TestFetchOrderStatus_PosError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"error": "order not found"}`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "u", "p")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	status, err := client.FetchOrderStatus(ctx, "tok", "999")
	if err != nil {
		t.Fatalf("FetchOrderStatus error: %v", err)
	}
	if status != nil {
		t.Fatalf("expected nil status for POS error field, got %+v", status)
	}
}

func TestFetchOrderStatus_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "u", "p")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	status, err := client.FetchOrderStatus(ctx, "tok", "999")
	if err != nil {
		t.Fatalf("FetchOrderStatus error: %v", err)
	}
	if status != nil {
		t.Fatalf("expected nil status for 404, got %+v", status)
	}
}

func TestFetchOrderStatus_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "u", "p")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err := client.FetchOrderStatus(ctx, "tok", "555")
	if !errors.Is(err, ErrFetchFailed) {
		t.Fatalf("expected ErrFetchFailed, got %v", err)
	}
}

func TestSearchInventory_Paging(t *testing.T) {
	var calls int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inventory/search" {
			t.Fatalf("path = %s, want /inventory/search", r.URL.Path)
		}

		var req struct {
			Skip   int `json:"skip"`
			Take   int `json:"take"`
			Filter struct {
				Logic   string            `json:"logic"`
				Filters []InventoryFilter `json:"filters"`
			} `json:"filter"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode search request: %v", err)
		}
		if req.Filter.Logic != "and" {
			t.Fatalf("filter logic = %q, want and", req.Filter.Logic)
		}

		calls++
		w.Header().Set("Content-Type", "application/json")
		if req.Skip == 0 {
			_, _ = w.Write([]byte(`[{"id_item": 1, "item": "Gelato 1g"}, {"id_item": 2, "item": "OG Kush 3.5g"}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer ts.Close()

	client := NewClient(ts.URL, "u", "p")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	items, err := client.SearchInventory(ctx, "tok", []InventoryFilter{
		{Field: "id_area", Value: 1000, Operator: "eq"},
	})
	if err != nil {
		t.Fatalf("SearchInventory error: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 (data page + empty page)", calls)
	}
}
