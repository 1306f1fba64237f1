// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ProblemDetail represents RFC7807 problem details. Fields carries
// per-field validation messages when the problem is a validation failure.
type ProblemDetail struct {
	Type   string            `json:"type,omitempty"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	problemJSON(w, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// ProblemFields sends a validation problem carrying per-field messages.
func ProblemFields(w http.ResponseWriter, status int, title string, fields map[string]string) {
	problemJSON(w, ProblemDetail{
		Title:  title,
		Status: status,
		Fields: fields,
	})
}

func problemJSON(w http.ResponseWriter, detail ProblemDetail) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(detail.Status)
	_ = json.NewEncoder(w).Encode(detail)
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
