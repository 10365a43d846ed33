package router

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/stepup/internal/pkg/stacktrace"
)

// middlewareRecoverer runs inside the observability middleware, so a panic is
// logged with the correlation id and recorded on the request span.
func middlewareRecoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			//nolint:err113,errorlint // sentinel must be re-raised as is
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}

			if setter, ok := w.(interface{ SetError(error) }); ok {
				setter.SetError(fmt.Errorf("panic: %v", rvr))
			}

			stack := debug.Stack()
			attrs := []any{"method", r.Method, "route", matchedRoutePath(r), "because", rvr}
			if id := httprouter.ParamsFromContext(r.Context()).ByName("id"); id != "" {
				attrs = append(attrs, "pending_id", id)
			}
			if paths := stacktrace.InternalPaths(stack); len(paths) > 0 {
				attrs = append(attrs, "stack", paths)
			} else {
				attrs = append(attrs, "stack", string(stack))
			}
			slog.ErrorContext(r.Context(), "handler panicked", attrs...)

			writeJSON(w, errorResponse{Message: "Internal server error"}, http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}
