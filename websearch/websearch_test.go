package websearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestSearchSendsQueryAndToken(t *testing.T) {
	var gotQuery, gotToken string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotToken = r.Header.Get("X-Subscription-Token")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"web":{"results":[{"url":"https://example.com/a","title":"A","description":"first"},{"url":"https://example.com/b","title":"B","description":"second"}]}}`))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "brave-key", Endpoint: srv.URL})
	results, err := c.Search(context.Background(), "example article")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if gotQuery != "example article" {
		t.Fatalf("query = %q", gotQuery)
	}
	if gotToken != "brave-key" {
		t.Fatalf("token = %q", gotToken)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].URL != "https://example.com/a" || results[0].Title != "A" {
		t.Fatalf("first result = %+v", results[0])
	}
}

func TestSearchNoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"web":{"results":[]}}`))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", Endpoint: srv.URL})
	results, err := c.Search(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0", len(results))
	}
}

func TestSearchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(Config{APIKey: "k", Endpoint: srv.URL})
	if _, err := c.Search(context.Background(), "q"); err == nil {
		t.Fatal("want error on 429")
	}
}

func TestEnabled(t *testing.T) {
	if New(Config{}).Enabled() {
		t.Fatal("client without key should be disabled")
	}
	if !New(Config{APIKey: "k"}).Enabled() {
		t.Fatal("client with key should be enabled")
	}
	var nilClient *Client
	if nilClient.Enabled() {
		t.Fatal("nil client should be disabled")
	}
}
