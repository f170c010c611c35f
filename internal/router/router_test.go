package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/baedrik/skulls2/internal/cache"
	"github.com/baedrik/skulls2/internal/engine"
	"github.com/baedrik/skulls2/internal/handler"
	"github.com/baedrik/skulls2/internal/middleware"
	"github.com/baedrik/skulls2/internal/service"
	"github.com/baedrik/skulls2/internal/store"
	"github.com/google/go-cmp/cmp"
)

const apiKey = "gw-key"

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type server struct {
	t       *testing.T
	handler http.Handler
}

func newServer(t *testing.T, instantiate bool) *server {
	t.Helper()
	eng := engine.New(store.NewMemoryBackend())
	if instantiate {
		_, err := eng.Instantiate(context.Background(), engine.Env{Now: 1, Height: 1, Caller: "admin"}, engine.InitParams{
			Entropy:          "router",
			SkullsCollection: "skulls",
			ChargeTime:       60,
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	c := cache.NewMemoryCache()
	gateway := service.NewGateway(eng, c, 0, 1)
	sessions := service.NewSessionService(c, eng, 0)
	maint := service.NewMaintenanceScheduler(eng, c, service.MaintenanceConfig{})
	r := New(Config{
		Handler:        handler.New("skulls2", "test", eng),
		EngineHandler:  handler.NewEngineHandler(gateway, eng),
		SessionHandler: handler.NewSessionHandler(sessions),
		AdminHandler:   handler.NewAdminHandler(eng, maint, c, "memory", "memory"),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{Sessions: sessions, APIKeys: []string{apiKey}}),
	})
	return &server{t: t, handler: r}
}

func (s *server) do(method, path, body string, headers map[string]string) (int, envelope) {
	s.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		s.t.Fatalf("%s %s: undecodable body %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, env
}

func gw(caller string) map[string]string {
	return map[string]string{"X-API-Key": apiKey, "X-Caller": caller}
}

func TestHealthAndReady(t *testing.T) {
	tests := []struct {
		name        string
		instantiate bool
		path        string
		wantStatus  int
	}{
		{"health", false, "/api/v1/health", http.StatusOK},
		{"status", false, "/api/status", http.StatusOK},
		{"ready before instantiate", false, "/api/v1/ready", http.StatusServiceUnavailable},
		{"ready", true, "/api/v1/ready", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t, tt.instantiate)
			code, env := s.do(http.MethodGet, tt.path, "", nil)
			if code != tt.wantStatus {
				t.Errorf("status = %d, want %d", code, tt.wantStatus)
			}
			if !env.Success {
				t.Errorf("success = false, body data %s", env.Data)
			}
		})
	}
}

func TestExecuteRequiresGateway(t *testing.T) {
	s := newServer(t, true)
	msg := `{"add_viewers":{"viewers":["watcher"]}}`
	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
		wantCode   string
	}{
		{"no key", map[string]string{"X-Caller": "admin"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong key", map[string]string{"X-API-Key": "nope", "X-Caller": "admin"}, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"no caller", map[string]string{"X-API-Key": apiKey}, http.StatusBadRequest, "BAD_INPUT"},
		{"not admin", gw("mallory"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"admin", gw("admin"), http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := s.do(http.MethodPost, "/api/v1/execute", msg, tt.headers)
			if code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", code, tt.wantStatus)
			}
			got := ""
			if env.Error != nil {
				got = env.Error.Code
			}
			if got != tt.wantCode {
				t.Errorf("error code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestSessionQueries(t *testing.T) {
	s := newServer(t, true)
	if code, env := s.do(http.MethodPost, "/api/v1/execute", `{"set_viewing_key":{"key":"alice-key"}}`, gw("alice")); code != http.StatusOK {
		t.Fatalf("set_viewing_key: %d %+v", code, env.Error)
	}

	code, _ := s.do(http.MethodPost, "/api/v1/sessions", `{"address":"alice","viewing_key":"wrong"}`, nil)
	if code != http.StatusUnauthorized {
		t.Errorf("wrong key status = %d", code)
	}

	code, env := s.do(http.MethodPost, "/api/v1/sessions", `{"address":"alice","viewing_key":"alice-key"}`, nil)
	if code != http.StatusOK {
		t.Fatalf("open session: %d %+v", code, env.Error)
	}
	var opened handler.SessionResponse
	if err := json.Unmarshal(env.Data, &opened); err != nil {
		t.Fatal(err)
	}
	if opened.Address != "alice" || !strings.HasPrefix(opened.Token, service.SessionPrefix) {
		t.Fatalf("session = %+v", opened)
	}

	query := `{"my_ingredients":{}}`
	code, _ = s.do(http.MethodPost, "/api/v1/query", query, nil)
	if code != http.StatusUnauthorized {
		t.Errorf("anonymous query status = %d", code)
	}

	session := map[string]string{"X-Token": opened.Token}
	code, env = s.do(http.MethodPost, "/api/v1/query", query, session)
	if code != http.StatusOK {
		t.Fatalf("session query: %d %+v", code, env.Error)
	}
	var answer map[string]map[string][]interface{}
	if err := json.Unmarshal(env.Data, &answer); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]map[string][]interface{}{"my_ingredients": {"inventory": {}}}, answer); diff != "" {
		t.Errorf("answer mismatch (-want +got):\n%s", diff)
	}

	mismatch := map[string]string{"X-Token": opened.Token, "X-API-Key": apiKey, "X-Caller": "bob"}
	if code, _ := s.do(http.MethodPost, "/api/v1/query", query, mismatch); code != http.StatusUnauthorized {
		t.Errorf("mismatched caller status = %d", code)
	}

	if code, _ := s.do(http.MethodDelete, "/api/v1/sessions", "", session); code != http.StatusOK {
		t.Errorf("close session status = %d", code)
	}
	if code, _ := s.do(http.MethodPost, "/api/v1/query", query, session); code != http.StatusUnauthorized {
		t.Errorf("closed session status = %d", code)
	}
}

func TestQueryRejectsBadBodies(t *testing.T) {
	s := newServer(t, true)
	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{"halt_statuses":`, http.StatusBadRequest},
		{"unknown query", `{"nope":{}}`, http.StatusBadRequest},
		{"two queries", `{"halt_statuses":{},"materials":{}}`, http.StatusBadRequest},
		{"public query", `{"halt_statuses":{}}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, env := s.do(http.MethodPost, "/api/v1/query", tt.body, nil); code != tt.want {
				t.Errorf("status = %d, want %d (%+v)", code, tt.want, env.Error)
			}
		})
	}
}

func TestAdminRoutes(t *testing.T) {
	s := newServer(t, true)
	if code, _ := s.do(http.MethodGet, "/api/v1/admin/stats", "", nil); code != http.StatusUnauthorized {
		t.Errorf("anonymous stats status = %d", code)
	}
	code, env := s.do(http.MethodGet, "/api/v1/admin/stats", "", map[string]string{"X-API-Key": apiKey})
	if code != http.StatusOK {
		t.Fatalf("stats status = %d", code)
	}
	var stats map[string]json.RawMessage
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"engine", "maintenance", "memory", "runtime"} {
		if _, ok := stats[key]; !ok {
			t.Errorf("stats lacks %q", key)
		}
	}
	if code, _ := s.do(http.MethodPost, "/api/v1/admin/maintenance", "", map[string]string{"X-API-Key": apiKey}); code != http.StatusOK {
		t.Errorf("maintenance status = %d", code)
	}
}
