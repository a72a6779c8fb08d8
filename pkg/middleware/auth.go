package middleware

import (
	"encoding/json"
	"net/http"

	"sharednotes/pkg/models"
)

// SessionChecker reports the state of the client session
type SessionChecker interface {
	Status() models.SessionStatus
}

// RequireSession creates middleware for API routes that need a signed in user
func RequireSession(session SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if session.Status() != models.SessionAuthenticated {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]interface{}{
					"success": false,
					"message": "Please log in to continue",
					"loading": false,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
