package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/nations/42" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "secret" {
			t.Fatalf("missing api key header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"42","nation_name":"Arcadia","discord":"arc#1"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret")
	rec, err := c.Resolve(context.Background(), "42")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rec.ID != "42" || rec.Name != "Arcadia" || rec.Discord != "arc#1" {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestResolveDefaultsID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"nation_name":"Arcadia"}`))
	}))
	defer srv.Close()

	rec, err := NewClient(srv.URL, "").Resolve(context.Background(), "99")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rec.ID != "99" {
		t.Fatalf("expected id to default to request id, got %q", rec.ID)
	}
}

func TestResolveNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL, "secret").Resolve(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolveServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "secret").Resolve(context.Background(), "42")
	if err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected generic error for 500, got %v", err)
	}
}
