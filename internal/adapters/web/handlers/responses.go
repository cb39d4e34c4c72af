// Package handlers contains the REST handlers: thin translation between HTTP
// and the core services, no business logic.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// CardReadResponse is the REST shape for card data endpoints. REST responses
// never carry photo bytes; the full payload goes to event subscribers only.
type CardReadResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Cached    bool        `json:"cached,omitempty"`
	ReadAt    string      `json:"read_at,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error":     msg,
		"timestamp": time.Now().UTC(),
	})
}
