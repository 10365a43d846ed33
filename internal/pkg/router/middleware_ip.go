package router

import (
	"log/slog"
	"net/http"
	"net/netip"
	"strings"

	"github.com/shandysiswandi/stepup/internal/pkg/config"
)

// proxyTrust decides which peers may speak for the client through
// X-Forwarded-For and X-Real-IP. With no trusted proxies configured the
// forwarding headers are ignored and the socket peer is the client.
type proxyTrust struct {
	prefixes []netip.Prefix
}

func newProxyTrust(entries []string) proxyTrust {
	var t proxyTrust
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		if p, err := netip.ParsePrefix(entry); err == nil {
			t.prefixes = append(t.prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(entry); err == nil {
			a = a.Unmap()
			t.prefixes = append(t.prefixes, netip.PrefixFrom(a, a.BitLen()))
			continue
		}

		slog.Warn("ignoring invalid trusted proxy entry", "entry", entry)
	}
	return t
}

func (t proxyTrust) trusts(a netip.Addr) bool {
	for _, p := range t.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// clientIP walks X-Forwarded-For from the nearest hop outwards and stops at
// the first address that is not a trusted proxy.
func (t proxyTrust) clientIP(r *http.Request) netip.Addr {
	peer := parseRemoteAddr(r.RemoteAddr)
	if !peer.IsValid() || !t.trusts(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			peer = hop.Unmap()
			if !t.trusts(peer) {
				return peer
			}
		}
		return peer
	}

	if xrip, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return xrip.Unmap()
	}
	return peer
}

func parseRemoteAddr(v string) netip.Addr {
	if ap, err := netip.ParseAddrPort(v); err == nil {
		return ap.Addr().Unmap()
	}
	if a, err := netip.ParseAddr(v); err == nil {
		return a.Unmap()
	}
	return netip.Addr{}
}

func middlewareClientIP(cfg config.Config) Middleware {
	var entries []string
	if cfg != nil {
		entries = cfg.GetArray("app.server.trusted_proxies")
	}
	trust := newProxyTrust(entries)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := trust.clientIP(r); ip.IsValid() {
				r.RemoteAddr = ip.String()
			}
			next.ServeHTTP(w, r)
		})
	}
}
