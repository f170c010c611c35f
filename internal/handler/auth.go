package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/baedrik/skulls2/internal/service"
	"github.com/baedrik/skulls2/pkg/apierror"
	"github.com/baedrik/skulls2/pkg/response"
)

// SessionHandler exchanges viewing keys for session tokens.
type SessionHandler struct {
	sessions *service.SessionService
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// SessionRequest represents the request body for opening a session.
type SessionRequest struct {
	Address    string `json:"address"`
	ViewingKey string `json:"viewing_key"`
}

// SessionResponse represents an opened session.
type SessionResponse struct {
	Token     string    `json:"token"`
	Address   string    `json:"address"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int       `json:"expires_in"`
}

// Open handles POST /api/v1/sessions
func (h *SessionHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierror.BadRequest("invalid request body"))
		return
	}
	defer r.Body.Close()

	token, data, err := h.sessions.Open(r.Context(), req.Address, req.ViewingKey)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, SessionResponse{
		Token:     token,
		Address:   data.Address,
		ExpiresAt: data.ExpiresAt,
		ExpiresIn: int(data.ExpiresAt.Sub(data.CreatedAt).Seconds()),
	})
}

// Close handles DELETE /api/v1/sessions
func (h *SessionHandler) Close(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Token")
	if token == "" {
		response.Error(w, apierror.BadRequest("X-Token header is required"))
		return
	}
	if err := h.sessions.Close(r.Context(), token); err != nil {
		response.Error(w, apierror.ServiceUnavailable("session store unavailable"))
		return
	}
	response.OK(w, map[string]string{"status": "closed"})
}
