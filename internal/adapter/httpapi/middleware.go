package httpapi

import "net/http"

// requireToken guards a mutating route with a bearer token check.
// An empty configured token disables the guard.
func (s *Server) requireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.APIToken == "" {
			next(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if header == "" {
			writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "missing authorization header"})
			return
		}
		if header != "Bearer "+s.APIToken {
			writeJSON(w, http.StatusUnauthorized, envelope{Success: false, Error: "invalid token"})
			return
		}

		next(w, r)
	}
}
