package response

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldError(t *testing.T) {
	rec := httptest.NewRecorder()
	FieldError(rec, http.StatusBadRequest, "price", "must be non-negative")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"must be non-negative","field":"price"}`, rec.Body.String())
}

func TestErrorOmitsField(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusBadGateway, "scraper unreachable")
	assert.JSONEq(t, `{"error":"scraper unreachable"}`, rec.Body.String())
}

func TestSuccessWritesPayloadUnwrapped(t *testing.T) {
	rec := httptest.NewRecorder()
	Success(rec, map[string]string{"publicUrl": "https://cdn.test/products/a.jpg"})
	assert.JSONEq(t, `{"publicUrl":"https://cdn.test/products/a.jpg"}`, rec.Body.String())
}
