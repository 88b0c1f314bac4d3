package middleware

import "net/http"

// OriginChecker reports whether a browser origin may open an event stream.
// An empty list allows every origin (local development only). Requests
// without an Origin header are not from a browser and are allowed.
func OriginChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		if len(set) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
