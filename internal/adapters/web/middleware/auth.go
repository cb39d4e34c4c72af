package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/cardbridge/cardbridge/internal/core/ports"
)

// PasscodeMiddleware ensures the request carries the configured passcode.
// Accepted forms, in order: X-Passcode header, Authorization: Bearer, and a
// ?passcode= query parameter. The query form exists for WebSocket clients:
// the browser WebSocket API cannot set request headers.
func PasscodeMiddleware(passcodes ports.PasscodeService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			passcode := r.Header.Get("X-Passcode")

			if passcode == "" {
				authHeader := r.Header.Get("Authorization")
				if strings.HasPrefix(authHeader, "Bearer ") {
					passcode = strings.TrimPrefix(authHeader, "Bearer ")
				}
			}

			if passcode == "" {
				passcode = r.URL.Query().Get("passcode")
			}

			if passcode == "" || !passcodes.Verify(r.Context(), passcode) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Invalid or missing passcode",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
