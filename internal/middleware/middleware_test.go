package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/baedrik/skulls2/internal/cache"
	"github.com/baedrik/skulls2/internal/service"
	"github.com/google/go-cmp/cmp"
)

type anyKey struct{}

func (anyKey) CheckViewingKey(context.Context, string, string) error { return nil }

func TestAuthIdentity(t *testing.T) {
	auth := NewAuthMiddleware(AuthConfig{APIKeys: []string{"secret"}})
	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		want       Identity
	}{
		{"anonymous", nil, http.StatusOK, Identity{}},
		{"gateway", map[string]string{"X-API-Key": "secret", "X-Caller": "alice"}, http.StatusOK, Identity{Caller: "alice", Gateway: true}},
		{"bearer", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK, Identity{Gateway: true}},
		{"bad key", map[string]string{"X-API-Key": "guess", "X-Caller": "alice"}, http.StatusUnauthorized, Identity{}},
		{"token without sessions", map[string]string{"X-Token": "skt_x"}, http.StatusServiceUnavailable, Identity{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Identity
			h := auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = GetIdentity(r.Context())
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("identity mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRequireGateway(t *testing.T) {
	h := NewAuthMiddleware(AuthConfig{APIKeys: []string{"secret"}})(RequireGateway(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))
	for key, want := range map[string]int{"": http.StatusUnauthorized, "secret": http.StatusNoContent} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if key != "" {
			req.Header.Set("X-API-Key", key)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != want {
			t.Errorf("key %q: status = %d, want %d", key, rec.Code, want)
		}
	}
}

func TestRecoveryAndRequestID(t *testing.T) {
	var seen string
	h := RequestID(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		panic("boom")
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", rec.Code)
	}
	if seen != "req-1" || rec.Header().Get("X-Request-ID") != "req-1" {
		t.Errorf("request id = %q / %q", seen, rec.Header().Get("X-Request-ID"))
	}
}

func TestSessionIdentity(t *testing.T) {
	sessions := service.NewSessionService(cache.NewMemoryCache(), anyKey{}, time.Hour)
	token, _, err := sessions.Open(context.Background(), "alice", "k")
	if err != nil {
		t.Fatal(err)
	}
	auth := NewAuthMiddleware(AuthConfig{Sessions: sessions, APIKeys: []string{"secret"}})
	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		want       Identity
	}{
		{"session", map[string]string{"X-Token": token}, http.StatusOK, Identity{Caller: "alice"}},
		{"session via gateway", map[string]string{"X-Token": token, "X-API-Key": "secret"}, http.StatusOK, Identity{Caller: "alice", Gateway: true}},
		{"caller mismatch", map[string]string{"X-Token": token, "X-API-Key": "secret", "X-Caller": "bob"}, http.StatusUnauthorized, Identity{}},
		{"unknown token", map[string]string{"X-Token": service.SessionPrefix + "nope"}, http.StatusUnauthorized, Identity{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Identity
			h := auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = GetIdentity(r.Context())
			}))
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("identity mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
