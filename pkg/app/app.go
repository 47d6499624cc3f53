// Package app assembles the HTTP handler: global middleware, ops endpoints
// and the route callbacks supplied by the project.
//
//	h := app.New().Routes(routes.RegisterAPI).Handler()
//	server.Start(ctx, h)
//
// It imports no project code; routes and services are injected.
package app

import (
	"net/http"

	"github.com/opsipintar/catalog/pkg/router"
)

// Application collects route callbacks.
type Application struct {
	routesFns []func(*router.Router)
}

// New creates an empty Application.
func New() *Application {
	return &Application{}
}

// Routes registers a route callback. Callbacks run in order when the
// handler is built.
func (a *Application) Routes(fn func(*router.Router)) *Application {
	a.routesFns = append(a.routesFns, fn)
	return a
}

// Handler builds the full middleware chain and route table.
func (a *Application) Handler() http.Handler {
	return buildHandler(a).Handler()
}

// RouteTable returns the registered routes without serving them.
func (a *Application) RouteTable() []router.RouteInfo {
	r := router.New()
	for _, fn := range a.routesFns {
		fn(r)
	}
	return r.Routes()
}
