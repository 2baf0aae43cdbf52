package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/entra-mcp/entra-mcp/pkg/config"
)

// originPolicy is the compiled form of CORSConfig.AllowedOrigins.
type originPolicy struct {
	any      bool
	exact    map[string]struct{}
	suffixes []string
}

func newOriginPolicy(allowed []string) originPolicy {
	p := originPolicy{any: len(allowed) == 0, exact: make(map[string]struct{}, len(allowed))}
	for _, origin := range allowed {
		switch {
		case origin == "*":
			p.any = true
		case strings.HasPrefix(origin, "*."):
			// "*.example.com" matches "https://app.example.com", never "https://evilexample.com".
			p.suffixes = append(p.suffixes, origin[1:])
		default:
			p.exact[origin] = struct{}{}
		}
	}
	return p
}

// allow returns the value for Access-Control-Allow-Origin, or "" when the origin is refused.
func (p originPolicy) allow(origin string) string {
	if p.any {
		return "*"
	}
	if origin == "" {
		return ""
	}
	if _, ok := p.exact[origin]; ok {
		return origin
	}
	for _, suffix := range p.suffixes {
		if strings.HasSuffix(origin, suffix) {
			return origin
		}
	}
	return ""
}

// CORSMiddleware answers preflight requests for the HTTP front door and decorates the rest.
func CORSMiddleware(cfg *config.CORSConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}

	policy := newOriginPolicy(cfg.AllowedOrigins)
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")
	maxAge := ""
	if cfg.MaxAge > 0 {
		maxAge = strconv.Itoa(cfg.MaxAge)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if allowed := policy.allow(r.Header.Get("Origin")); allowed != "" {
				h.Set("Access-Control-Allow-Origin", allowed)
				if allowed != "*" {
					h.Add("Vary", "Origin")
				}
			}
			if methods != "" {
				h.Set("Access-Control-Allow-Methods", methods)
			}
			if headers != "" {
				h.Set("Access-Control-Allow-Headers", headers)
			}
			if maxAge != "" {
				h.Set("Access-Control-Max-Age", maxAge)
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
