// Package json holds the response encoding helper shared by the HTTP handlers.
package json

import (
	"encoding/json"
	"net/http"
)

// WriteJSON marshals response before touching the ResponseWriter so an
// encoding failure can still produce a clean 500 instead of a half-written
// body under an already-committed status.
func WriteJSON(w http.ResponseWriter, status int, response any) {
	body, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
