package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/tallybot/tally/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// ClientIDKey is the context key for storing the authenticated client ID.
const ClientIDKey contextKey = "client_id"

// GetClientID extracts the client ID from the context.
// Returns empty string if not found.
func GetClientID(ctx context.Context) string {
	clientID, _ := ctx.Value(ClientIDKey).(string)
	return clientID
}

// RequireAuth returns a middleware that validates bearer JWT tokens.
// It extracts the token from the Authorization header, validates it, and adds
// the client ID to the request context.
func RequireAuth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, auth.ErrMissingToken.Error())
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				unauthorized(w, auth.ErrInvalidToken.Error())
				return
			}

			claims, err := jwtManager.Validate(parts[1])
			if err != nil {
				unauthorized(w, auth.ErrInvalidToken.Error())
				return
			}

			ctx := context.WithValue(r.Context(), ClientIDKey, claims.ClientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
