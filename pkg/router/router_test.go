package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tag(v string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("X-Chain", v)
			next.ServeHTTP(w, r)
		})
	}
}

func TestGroupRoutesAndMiddlewareOrder(t *testing.T) {
	r := New()
	api := r.Group("/api", tag("api"))
	admin := api.Group("products", tag("admin"))
	admin.Delete("/{id}", "products.destroy", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ID", Param(r, "id"))
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/products/42", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"api", "admin"}, rec.Header().Values("X-Chain"))
	assert.Equal(t, "42", rec.Header().Get("X-ID"))

	url, err := r.URL("products.destroy", map[string]string{"id": "42"})
	require.NoError(t, err)
	assert.Equal(t, "/api/products/42", url)

	_, err = r.URL("products.destroy", nil)
	assert.Error(t, err)
}

func TestMountStripsPrefix(t *testing.T) {
	r := New()
	r.Mount("/storage", "storage", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	}))

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/storage/product-images/products/a.jpg", nil))
	assert.Equal(t, "/product-images/products/a.jpg", rec.Body.String())
}

func TestRoutesSorted(t *testing.T) {
	r := New()
	noop := func(http.ResponseWriter, *http.Request) {}
	r.Post("/ingest/autofill", "ingest.autofill", noop)
	r.Get("/api/products", "products.index", noop)
	r.Put("/api/products/{id}", "products.update", noop)

	routes := r.Routes()
	require.Len(t, routes, 3)
	assert.Equal(t, RouteInfo{Method: http.MethodGet, Path: "/api/products", Name: "products.index"}, routes[0])
	assert.Equal(t, "/ingest/autofill", routes[2].Path)
}
