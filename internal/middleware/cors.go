// Package middleware provides HTTP middleware for the interviewd API.
package middleware

import "net/http"

// CORSOptions configures cross-origin access for the API.
type CORSOptions struct {
	// AllowedOrigins lists acceptable Origin values; "*" allows any.
	AllowedOrigins []string
	// AllowCredentials sets Access-Control-Allow-Credentials for explicitly
	// listed origins. It never applies to wildcard matches: echoing
	// arbitrary origins with credentials enabled opens CSRF.
	AllowCredentials bool
}

// CORS returns middleware that answers preflight requests and stamps
// cross-origin response headers per opts.
func CORS(opts CORSOptions) func(http.Handler) http.Handler {
	wildcard := false
	explicit := make(map[string]struct{}, len(opts.AllowedOrigins))
	for _, o := range opts.AllowedOrigins {
		if o == "*" {
			wildcard = true
			continue
		}
		explicit[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			_, listed := explicit[origin]

			if origin != "" && (wildcard || listed) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
				if listed && opts.AllowCredentials {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
