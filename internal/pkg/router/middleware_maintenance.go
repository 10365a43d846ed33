package router

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/shandysiswandi/stepup/internal/pkg/config"
)

// middlewareMaintenance reads its settings on every request so an operator can
// pause challenges by editing the watched config file.
//
//	app.maintenance.enabled              pauses every API route
//	app.maintenance.endpoints            "POST /api/v1/challenges/:id/send,/api/v1/challenges"
//	app.maintenance.retry_after_seconds  sent back as Retry-After
func middlewareMaintenance(cfg config.Config) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg == nil || !underMaintenance(cfg, r.Method, matchedRoutePath(r)) {
				next.ServeHTTP(w, r)
				return
			}

			if secs := cfg.GetInt("app.maintenance.retry_after_seconds"); secs > 0 {
				w.Header().Set("Retry-After", strconv.Itoa(secs))
			}
			writeJSON(w, errorResponse{Message: "Step-up verification is temporarily unavailable"}, http.StatusServiceUnavailable)
		})
	}
}

// underMaintenance matches entries written either as "METHOD route" or as a bare route.
func underMaintenance(cfg config.Config, method, route string) bool {
	if cfg.GetBool("app.maintenance.enabled") {
		return true
	}

	for _, entry := range cfg.GetArray("app.maintenance.endpoints") {
		m, p, hasMethod := strings.Cut(strings.TrimSpace(entry), " ")
		if !hasMethod {
			if m != "" && m == route {
				return true
			}
			continue
		}
		if strings.EqualFold(m, method) && strings.TrimSpace(p) == route {
			return true
		}
	}
	return false
}
