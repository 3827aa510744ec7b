package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/hongminglow/tripdesk/internal/apperr"
	"github.com/hongminglow/tripdesk/internal/http/respond"
)

// Recover turns a panic into a 500 response and logs the stack.
func Recover(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log := LoggerFrom(r.Context())
				log.Errorw("panic", "err", rec, "stack", string(debug.Stack()))
				respond.Error(w, nil, apperr.Internal(apperr.CodeInternal, "Internal server error", fmt.Errorf("panic: %v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
