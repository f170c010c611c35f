package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"os"
	"strings"

	"github.com/baedrik/skulls2/internal/service"
	"github.com/baedrik/skulls2/pkg/apierror"
	"github.com/baedrik/skulls2/pkg/response"
)

// IdentityKey is the context key for the resolved caller.
const IdentityKey contextKey = "identity"

// Identity is who a request speaks for.
type Identity struct {
	// Caller is the address messages and queries run as. Empty means
	// anonymous.
	Caller string
	// Gateway is set when the request carried a valid gateway API key.
	Gateway bool
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	Sessions *service.SessionService
	APIKeys  []string
}

// NewAuthMiddleware resolves the request identity.
//
// A gateway API key (X-API-Key or a bearer token) vouches for the address
// in X-Caller. A session token (X-Token) stands for the address that opened
// it. Requests with neither pass through anonymously; handlers decide what
// anonymous callers may do.
func NewAuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	keys := cfg.APIKeys
	if len(keys) == 0 {
		keys = getAPIKeysFromEnv()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id Identity

			if apiKey := apiKeyFrom(r); apiKey != "" {
				if !isValidKey(apiKey, keys) {
					response.Error(w, apierror.Unauthorized("Invalid API key"))
					return
				}
				id.Gateway = true
				id.Caller = strings.TrimSpace(r.Header.Get("X-Caller"))
			}

			if token := r.Header.Get("X-Token"); token != "" {
				if cfg.Sessions == nil {
					response.Error(w, apierror.ServiceUnavailable("sessions are not enabled"))
					return
				}
				session, err := cfg.Sessions.Resolve(r.Context(), token)
				if err != nil {
					response.Error(w, err)
					return
				}
				if id.Caller != "" && id.Caller != session.Address {
					response.Error(w, apierror.Unauthorized("X-Caller does not match the session address"))
					return
				}
				id.Caller = session.Address
			}

			ctx := context.WithValue(r.Context(), IdentityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireGateway rejects requests without a valid gateway API key.
func RequireGateway(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetIdentity(r.Context()).Gateway {
			response.Error(w, apierror.Unauthorized("Authentication required. Use X-API-Key header."))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func apiKeyFrom(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// getAPIKeysFromEnv returns API keys from environment variables.
func getAPIKeysFromEnv() []string {
	keysEnv := os.Getenv("API_KEYS")
	if keysEnv == "" {
		if single := os.Getenv("API_KEY"); single != "" {
			return []string{single}
		}
		return nil
	}
	keys := strings.Split(keysEnv, ",")
	for i := range keys {
		keys[i] = strings.TrimSpace(keys[i])
	}
	return keys
}

func isValidKey(key string, validKeys []string) bool {
	for _, valid := range validKeys {
		if valid != "" && subtle.ConstantTimeCompare([]byte(key), []byte(valid)) == 1 {
			return true
		}
	}
	return false
}

// GetIdentity retrieves the resolved identity from the request context.
func GetIdentity(ctx context.Context) Identity {
	id, _ := ctx.Value(IdentityKey).(Identity)
	return id
}
