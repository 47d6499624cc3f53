// Package response writes JSON bodies for the catalog HTTP surface.
// Successful responses carry the payload as-is; failures use {"error": "..."}
// with an optional "field" naming the offending input.
package response

import (
	"encoding/json"
	"net/http"
)

const contentType = "application/json; charset=utf-8"

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// Page is the list envelope used by catalog browse endpoints.
type Page struct {
	Items    interface{} `json:"items"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Total    int64       `json:"total"`
	HasMore  bool        `json:"has_more"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// Success sends a 200 JSON response with data.
func Success(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}

// Created sends a 201 JSON response with data.
func Created(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusCreated, data)
}

// NoContent sends a bare 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error sends a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, errorBody{Error: message})
}

// FieldError sends a JSON error that names the input field at fault.
func FieldError(w http.ResponseWriter, status int, field, message string) {
	JSON(w, status, errorBody{Error: message, Field: field})
}

// Paginated sends a 200 response with a page of items.
func Paginated(w http.ResponseWriter, p Page) {
	JSON(w, http.StatusOK, p)
}

// Unauthorized sends a 401.
func Unauthorized(w http.ResponseWriter) {
	Error(w, http.StatusUnauthorized, "Unauthorized")
}

// NotFound sends a 404.
func NotFound(w http.ResponseWriter) {
	Error(w, http.StatusNotFound, "Not found")
}

// TooManyRequests sends a 429.
func TooManyRequests(w http.ResponseWriter) {
	Error(w, http.StatusTooManyRequests, "Too Many Requests")
}
