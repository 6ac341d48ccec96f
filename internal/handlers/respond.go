// Package handlers contains the console API's HTTP handlers. Handlers parse
// requests, drive the submission controller and projections, and return JSON.
package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
)

// maxDraftBytes bounds a submitted draft body.
const maxDraftBytes = 64 << 10

// Helper: respond with JSON
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Helper: respond with error
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// queryInt parses an integer query parameter, falling back to def.
func queryInt(q url.Values, key string, def int) int {
	v := q.Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
