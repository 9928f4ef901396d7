// Package response renders the API's JSON bodies: a plain envelope for
// errors and direct marshaling for success payloads.
package response

import (
	"encoding/json"
	"net/http"
)

// ListResponse wraps a collection with pagination metadata
type ListResponse struct {
	Data interface{} `json:"data"`
	Meta *ListMeta   `json:"meta,omitempty"`
}

// ListMeta carries cursor pagination state for list endpoints
type ListMeta struct {
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// RenderJSON marshals payload and writes it with the given status.
// Marshaling happens before any write so a failure never produces a
// half-written body.
func RenderJSON(w http.ResponseWriter, status int, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, err = w.Write(data)
	return err
}

// RenderList renders a collection with pagination metadata
func RenderList(w http.ResponseWriter, status int, items interface{}, meta *ListMeta) error {
	return RenderJSON(w, status, &ListResponse{Data: items, Meta: meta})
}

// RenderNoContent writes a 204 with no body
func RenderNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
