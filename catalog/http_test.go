package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hazyhaar/surfacekeeper/record"
)

func testServer(t *testing.T, k *Keeper) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(k.Router())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, wantCode int, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantCode {
		t.Fatalf("GET %s: status %d, want %d", url, resp.StatusCode, wantCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("GET %s: content type %q", url, ct)
	}
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatalf("GET %s: decode: %v", url, err)
		}
	}
}

func TestHTTPHealth(t *testing.T) {
	srv := testServer(t, testKeeper(t))
	var body map[string]string
	getJSON(t, srv.URL+"/health", http.StatusOK, &body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestHTTPProducts(t *testing.T) {
	k := testKeeper(t)
	seed(t, k,
		record.Record{"code": "Y0385", "name": "Fine Oak", "colors": []string{"Brown"}},
		record.Record{"code": "W2211", "name": "Walnut", "colors": []string{"Grey"}},
	)
	srv := testServer(t, k)

	var all []map[string]any
	getJSON(t, srv.URL+"/api/products", http.StatusOK, &all)
	if len(all) != 2 {
		t.Errorf("all = %d records", len(all))
	}

	var brown []map[string]any
	getJSON(t, srv.URL+"/api/products?color=brown", http.StatusOK, &brown)
	if len(brown) != 1 || brown[0]["code"] != "Y0385" {
		t.Errorf("brown = %v", brown)
	}

	var none []map[string]any
	getJSON(t, srv.URL+"/api/products?colors=Pink", http.StatusOK, &none)
	if none == nil || len(none) != 0 {
		t.Errorf("none = %v, want empty array", none)
	}

	var one map[string]any
	getJSON(t, srv.URL+"/api/products/y0385", http.StatusOK, &one)
	if one["name"] != "Fine Oak" {
		t.Errorf("product = %v", one)
	}

	var missing map[string]string
	getJSON(t, srv.URL+"/api/products/Q9999", http.StatusNotFound, &missing)
	if missing["error"] == "" || missing["trace_id"] == "" {
		t.Errorf("missing = %v", missing)
	}
}

func TestHTTPUnresolved(t *testing.T) {
	k := testKeeper(t)
	srv := testServer(t, k)

	var empty struct {
		Run        any              `json:"run"`
		Unresolved []map[string]any `json:"unresolved"`
	}
	getJSON(t, srv.URL+"/api/unresolved", http.StatusOK, &empty)
	if empty.Run != nil || len(empty.Unresolved) != 0 {
		t.Errorf("empty ledger = %+v", empty)
	}

	if _, err := k.Ingest(context.Background(), jsonl("scrape", `{"code":"AB"}`)); err != nil {
		t.Fatal(err)
	}
	var body struct {
		Run        map[string]any   `json:"run"`
		Unresolved []map[string]any `json:"unresolved"`
	}
	getJSON(t, srv.URL+"/api/unresolved", http.StatusOK, &body)
	if body.Run["kind"] != "ingest" || len(body.Unresolved) != 1 || body.Unresolved[0]["code"] != "AB" {
		t.Errorf("unresolved = %+v", body)
	}

	var runs []map[string]any
	getJSON(t, srv.URL+"/api/runs?limit=5", http.StatusOK, &runs)
	if len(runs) != 1 {
		t.Errorf("runs = %v", runs)
	}
}

func TestHTTPRunsWithoutLedger(t *testing.T) {
	srv := testServer(t, testKeeper(t, func(c *Config) { c.DisableLedger = true }))
	getJSON(t, srv.URL+"/api/runs", http.StatusNotFound, nil)
}

func TestHTTPRejectsWrites(t *testing.T) {
	srv := testServer(t, testKeeper(t))
	resp, err := http.Post(srv.URL+"/api/products", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", resp.StatusCode)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	k := testKeeper(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- k.Serve(ctx, "127.0.0.1:0") }()
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Serve: %v", err)
	}
}
