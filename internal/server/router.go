package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// BasicRouter implements the [Router] interface on top of a [chi.Mux].
//
// Middleware runs for every request, including ones that match no route, so [BasicRouter.Use] must be
// called before routes are added.
type BasicRouter struct {
	mux *chi.Mux
}

// NewBasicRouter creates a new [BasicRouter] instance.
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{mux: chi.NewRouter()}
}

// Use adds [Middleware] to the [Router] instance's middleware stack, applied in the order it's added.
func (r *BasicRouter) Use(middleware ...Middleware) {
	for _, m := range middleware {
		r.mux.Use(m)
	}
}

// Handle registers a handler for the specified HTTP method and path.
//
// Other methods on the same path get a 405 from chi.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	r.mux.Method(method, path, handler)
}

// Handler registers every [Route] returned by [Handler.Routes].
func (r *BasicRouter) Handler(handler Handler) {
	for _, route := range handler.Routes() {
		r.Handle(route.Method, route.Path, route.Handler)
	}
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}
