package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/namelens/repolens/internal/metrics"
)

// PanicResponder writes the response for a recovered panic.
type PanicResponder func(w http.ResponseWriter, r *http.Request, recovered any, stack string)

// Recovery turns handler panics into responses written by respond.
func Recovery(respond PanicResponder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}
				if recovered == http.ErrAbortHandler {
					panic(recovered)
				}

				metrics.RecordPanic()
				if respond == nil {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				respond(w, r, recovered, string(debug.Stack()))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
