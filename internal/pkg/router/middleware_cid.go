package router

import (
	"net/http"
	"strings"

	"github.com/shandysiswandi/stepup/internal/pkg/instrument"
	"github.com/shandysiswandi/stepup/internal/pkg/uid"
)

const (
	// HeaderCorrelationID carries the id that ties a pipeline call to its logs, spans and events.
	HeaderCorrelationID = "X-Correlation-ID"
	// HeaderRequestID is accepted from proxies that only set this one.
	HeaderRequestID = "X-Request-ID"

	maxCorrelationIDLen = 64
)

// incomingCorrelationID returns the first acceptable id sent by the caller.
// Ids that would not survive a log line or a NATS header untouched are dropped.
func incomingCorrelationID(h http.Header) string {
	for _, name := range [...]string{HeaderCorrelationID, HeaderRequestID} {
		if v := strings.TrimSpace(h.Get(name)); validCorrelationID(v) {
			return v
		}
	}
	return ""
}

func validCorrelationID(v string) bool {
	if v == "" || len(v) > maxCorrelationIDLen {
		return false
	}
	for _, c := range v {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '-', c == '_', c == '.', c == ':':
		default:
			return false
		}
	}
	return true
}

func middlewareCorrelationID(gen uid.StringID) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cid := incomingCorrelationID(r.Header)
			if cid == "" && gen != nil {
				cid = gen.Generate()
			}
			if cid == "" {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set(HeaderCorrelationID, cid)
			next.ServeHTTP(w, r.WithContext(instrument.SetCorrelationID(r.Context(), cid)))
		})
	}
}
