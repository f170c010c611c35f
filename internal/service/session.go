package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/baedrik/skulls2/internal/cache"
	"github.com/baedrik/skulls2/internal/model"
	"github.com/baedrik/skulls2/pkg/apierror"
	"github.com/baedrik/skulls2/pkg/uid"
)

const (
	// SessionPrefix starts every session token.
	SessionPrefix = "skt_"

	// DefaultSessionTTL is the session lifetime when none is configured.
	DefaultSessionTTL = time.Hour

	sessionKeyPrefix = "session:"
)

// KeyChecker verifies an address's viewing key.
type KeyChecker interface {
	CheckViewingKey(ctx context.Context, addr, key string) error
}

// SessionService trades a viewing key for a short-lived session token, so
// that clients do not resend the key with every query.
type SessionService struct {
	cache cache.Cache
	keys  KeyChecker
	ttl   time.Duration
	now   func() time.Time
}

// NewSessionService creates a session service.
func NewSessionService(c cache.Cache, keys KeyChecker, ttl time.Duration) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{cache: c, keys: keys, ttl: ttl, now: time.Now}
}

// Open checks the viewing key and issues a token for addr.
func (s *SessionService) Open(ctx context.Context, addr, viewingKey string) (string, model.SessionData, error) {
	if addr == "" || viewingKey == "" {
		return "", model.SessionData{}, apierror.BadInput("address and viewing_key are required")
	}
	if err := s.keys.CheckViewingKey(ctx, addr, viewingKey); err != nil {
		return "", model.SessionData{}, err
	}

	token := uid.NewToken(SessionPrefix)

	data := model.SessionData{Address: addr, CreatedAt: s.now()}
	data.ExpiresAt = data.CreatedAt.Add(s.ttl)
	body, err := json.Marshal(data)
	if err != nil {
		return "", model.SessionData{}, fmt.Errorf("failed to serialize session: %w", err)
	}
	if err := s.cache.Set(ctx, sessionKeyPrefix+token, body, s.ttl); err != nil {
		return "", model.SessionData{}, fmt.Errorf("failed to store session: %w", err)
	}

	log.Printf("[SessionService] Opened session for %s, expires=%v", addr, data.ExpiresAt)
	return token, data, nil
}

// Resolve returns the session behind token.
func (s *SessionService) Resolve(ctx context.Context, token string) (model.SessionData, error) {
	if !uid.HasPrefix(token, SessionPrefix) {
		return model.SessionData{}, apierror.Unauthorized("invalid session token format")
	}
	body, err := s.cache.Get(ctx, sessionKeyPrefix+token)
	if errors.Is(err, cache.ErrCacheMiss) {
		return model.SessionData{}, apierror.Unauthorized("session not found or expired")
	}
	if err != nil {
		return model.SessionData{}, apierror.ServiceUnavailable("session store unavailable")
	}
	var data model.SessionData
	if err := json.Unmarshal(body, &data); err != nil {
		return model.SessionData{}, fmt.Errorf("failed to parse session: %w", err)
	}
	if s.now().After(data.ExpiresAt) {
		_ = s.cache.Delete(ctx, sessionKeyPrefix+token)
		return model.SessionData{}, apierror.Unauthorized("session expired")
	}
	return data, nil
}

// Close revokes a session token.
func (s *SessionService) Close(ctx context.Context, token string) error {
	return s.cache.Delete(ctx, sessionKeyPrefix+token)
}
