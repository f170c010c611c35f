package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"github.com/baedrik/skulls2/pkg/apierror"
	"github.com/baedrik/skulls2/pkg/response"
)

// Recovery turns a handler panic into a padded 500 response.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("[Recovery] panic serving %s %s (request %s): %v\n%s",
					r.Method, r.URL.Path, GetRequestID(r.Context()), err, debug.Stack())
				response.Error(w, apierror.InternalError("internal server error"))
			}
		}()

		next.ServeHTTP(w, r)
	})
}
