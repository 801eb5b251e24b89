package identity

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// Authenticate requires a valid "Authorization: Bearer <token>" header and stores the user
// in the request context.
func Authenticate(tokens *TokenProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				writeError(w, http.StatusUnauthorized, ErrUnauthenticated.Error())
				return
			}

			user, err := tokens.Parse(raw)
			if err != nil {
				log.Warn().Err(err).Str("path", r.URL.Path).Msg("Rejected bearer token")
				writeError(w, http.StatusUnauthorized, ErrInvalidToken.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, ErrUnauthenticated.Error())
				return
			}
			if !user.HasRole(role) {
				log.Warn().Stringer("user_id", user.ID).Str("required_role", role).Msg("Access denied")
				writeError(w, http.StatusForbidden, ErrForbidden.Error())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
