package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"coinpulse/internal/config"
	"coinpulse/internal/market"
)

func TestWriteDomainErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: market.ErrValidation, want: http.StatusBadRequest},
		{err: fmt.Errorf("%w: cost 10.00", market.ErrInsufficientCredits), want: http.StatusBadRequest},
		{err: market.ErrInsufficientShares, want: http.StatusBadRequest},
		{err: market.ErrNoLiquidity, want: http.StatusBadRequest},
		{err: market.ErrCompanyNotFound, want: http.StatusNotFound},
		{err: market.ErrTradeNotFound, want: http.StatusNotFound},
		{err: market.ErrUserNotFound, want: http.StatusNotFound},
		{err: market.ErrAlreadyExists, want: http.StatusConflict},
		{err: market.ErrTxConflict, want: http.StatusConflict},
		{err: market.ErrUnauthorized, want: http.StatusForbidden},
		{err: market.ErrInvalidPriceState, want: http.StatusInternalServerError},
		{err: fmt.Errorf("query failed"), want: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		rec := httptest.NewRecorder()
		writeDomainError(rec, tc.err)
		if rec.Code != tc.want {
			t.Fatalf("error %v: status %d, want %d", tc.err, rec.Code, tc.want)
		}
		var body struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("error %v: bad body: %v", tc.err, err)
		}
		if body.Error == "" {
			t.Fatalf("error %v: expected error message in body", tc.err)
		}
	}
}

func TestRequireAdmin(t *testing.T) {
	s := &Server{cfg: config.APIConfig{AdminToken: "s3cret"}}
	called := false
	handler := s.requireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusForbidden},
		{name: "wrong token", header: "Bearer nope", want: http.StatusForbidden},
		{name: "not bearer", header: "Basic s3cret", want: http.StatusForbidden},
		{name: "valid token", header: "Bearer s3cret", want: http.StatusNoContent},
	}
	for _, tc := range tests {
		called = false
		req := httptest.NewRequest(http.MethodGet, "/v1/transactions", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s: status %d, want %d", tc.name, rec.Code, tc.want)
		}
		if tc.want == http.StatusNoContent && !called {
			t.Fatalf("%s: expected handler to run", tc.name)
		}
		if tc.want == http.StatusForbidden && called {
			t.Fatalf("%s: handler must not run", tc.name)
		}
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "Bearer abc", want: "abc"},
		{in: "bearer abc", want: "abc"},
		{in: "Bearer  abc ", want: "abc"},
		{in: "Basic abc", want: ""},
		{in: "Bearer", want: ""},
		{in: "", want: ""},
	}
	for _, tc := range tests {
		if got := bearerToken(tc.in); got != tc.want {
			t.Fatalf("bearerToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestDecodeJSONRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/v1/orders/buy",
		strings.NewReader(`{"user_id":"u1","company":"Nimbus","shares":5,"bogus":true}`))
	var in struct {
		UserID  string `json:"user_id"`
		Company string `json:"company"`
		Shares  int64  `json:"shares"`
	}
	if err := decodeJSON(req, &in); err == nil {
		t.Fatalf("expected unknown field to be rejected")
	}
}
