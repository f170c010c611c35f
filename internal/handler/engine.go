package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/baedrik/skulls2/internal/engine"
	"github.com/baedrik/skulls2/internal/middleware"
	"github.com/baedrik/skulls2/pkg/apierror"
	"github.com/baedrik/skulls2/pkg/response"
)

// MaxMessageBytes bounds a message or query body.
const MaxMessageBytes = 1 << 20

// Gateway runs messages and queries on behalf of a caller.
type Gateway interface {
	Execute(ctx context.Context, caller string, raw json.RawMessage) (engine.Result, error)
	Query(ctx context.Context, caller string, raw json.RawMessage) (json.RawMessage, error)
}

// Catalog lists the message and query names the engine dispatches.
type Catalog interface {
	Messages() []string
	QueryNames() []string
}

// EngineHandler exposes the engine over HTTP.
type EngineHandler struct {
	gateway Gateway
	catalog Catalog
}

// NewEngineHandler creates an engine handler. catalog may be nil.
func NewEngineHandler(gateway Gateway, catalog Catalog) *EngineHandler {
	return &EngineHandler{gateway: gateway, catalog: catalog}
}

func readMessage(r *http.Request) (json.RawMessage, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxMessageBytes+1))
	if err != nil {
		return nil, apierror.BadRequest("failed to read request body")
	}
	if len(body) > MaxMessageBytes {
		return nil, apierror.BadRequest("request body too large")
	}
	if !json.Valid(body) {
		return nil, apierror.BadRequest("invalid JSON")
	}
	return body, nil
}

// Execute handles POST /api/v1/execute
func (h *EngineHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentity(r.Context())
	if id.Caller == "" {
		response.Error(w, apierror.BadRequest("X-Caller is required"))
		return
	}
	raw, err := readMessage(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	result, err := h.gateway.Execute(r.Context(), id.Caller, raw)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, result)
}

// Query handles POST /api/v1/query
func (h *EngineHandler) Query(w http.ResponseWriter, r *http.Request) {
	raw, err := readMessage(r)
	if err != nil {
		response.Error(w, err)
		return
	}
	out, err := h.gateway.Query(r.Context(), middleware.GetIdentity(r.Context()).Caller, raw)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, out)
}

// Messages handles GET /api/v1/messages
func (h *EngineHandler) Messages(w http.ResponseWriter, r *http.Request) {
	if h.catalog == nil {
		response.Error(w, apierror.ServiceUnavailable("message catalog unavailable"))
		return
	}
	response.OK(w, map[string][]string{
		"messages": h.catalog.Messages(),
		"queries":  h.catalog.QueryNames(),
	})
}
