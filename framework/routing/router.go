// Package routing is the HTTP ingress. Routes map to requests sent through
// the dispatcher:
//
//	r := routing.New(routing.WithLogger(log))
//	r.Prefix("/api", func(api *routing.Router) {
//	    api.Post("/orders", routing.Endpoint[PlaceOrder, OrderPlaced](d))
//	    api.Get("/orders/{id}", routing.Dispatch[GetOrder](d))
//	})
package routing

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	gohttp "github.com/km-arc/go-bootstrap/framework/http"
	"github.com/km-arc/go-bootstrap/framework/logging"
)

// Router wraps chi.Router.
type Router struct {
	mux chi.Router
	log *logging.NamedLogger
}

// Option customises the root Router.
type Option func(*Router)

// WithLogger sets the logger access lines are written to.
func WithLogger(log *logging.NamedLogger) Option {
	return func(r *Router) { r.log = log }
}

// New creates a Router with RequestID, RealIP, access logging and Recoverer.
func New(opts ...Option) *Router {
	r := &Router{mux: chi.NewRouter()}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logging.GetOrCreate(logging.NameOf[Router]())
	}
	r.mux.Use(middleware.RequestID)
	r.mux.Use(middleware.RealIP)
	r.mux.Use(accessLog(r.log))
	r.mux.Use(middleware.Recoverer)
	r.mux.NotFound(notFound)
	return r
}

// notFound answers JSON clients with the JSON error envelope and everyone
// else with chi's plain text.
func notFound(w http.ResponseWriter, r *http.Request) {
	if gohttp.NewRequest(r).IsJSON() {
		gohttp.NewResponse(w).NotFound()
		return
	}
	http.NotFound(w, r)
}

// RequireBearer rejects requests whose bearer token differs from token with
// 401.
func RequireBearer(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := gohttp.NewRequest(r).BearerToken()
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				gohttp.NewResponse(w).Error(http.StatusUnauthorized, "Unauthenticated.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ── HTTP verbs ───────────────────────────────────────────────────────────────

func (r *Router) Get(pattern string, h http.HandlerFunc)    { r.mux.Get(pattern, h) }
func (r *Router) Post(pattern string, h http.HandlerFunc)   { r.mux.Post(pattern, h) }
func (r *Router) Put(pattern string, h http.HandlerFunc)    { r.mux.Put(pattern, h) }
func (r *Router) Patch(pattern string, h http.HandlerFunc)  { r.mux.Patch(pattern, h) }
func (r *Router) Delete(pattern string, h http.HandlerFunc) { r.mux.Delete(pattern, h) }

// Any registers a handler for all common HTTP methods.
func (r *Router) Any(pattern string, h http.HandlerFunc) {
	for _, m := range []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"} {
		r.mux.Method(m, pattern, h)
	}
}

// ── Groups & Prefixes ────────────────────────────────────────────────────────

// Group creates an inline group sharing the parent's prefix.
func (r *Router) Group(fn func(r *Router)) {
	r.mux.Group(func(mx chi.Router) {
		fn(&Router{mux: mx, log: r.log})
	})
}

// Prefix creates a sub-router mounted under pattern.
func (r *Router) Prefix(pattern string, fn func(r *Router)) {
	r.mux.Route(pattern, func(mx chi.Router) {
		fn(&Router{mux: mx, log: r.log})
	})
}

// ── Middleware ───────────────────────────────────────────────────────────────

// Middleware adds one or more middleware to the router.
func (r *Router) Middleware(mw ...func(http.Handler) http.Handler) {
	r.mux.Use(mw...)
}

// Timeout cancels the request context after d. Handlers that honour the
// context answer 504 through Response.Failure.
func (r *Router) Timeout(d time.Duration) {
	r.mux.Use(middleware.Timeout(d))
}

// ── Metrics ──────────────────────────────────────────────────────────────────

// Metrics exposes g in the Prometheus text format at pattern.
// prometheus.DefaultGatherer is used when g is nil.
func (r *Router) Metrics(pattern string, g prometheus.Gatherer) {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	r.mux.Method(http.MethodGet, pattern, promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
}

// ── Params ───────────────────────────────────────────────────────────────────

// Param extracts a URL route parameter.
func Param(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// ── Serve ────────────────────────────────────────────────────────────────────

// ServeHTTP implements http.Handler so Router can be handed to http.Server.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Handler returns the underlying http.Handler.
func (r *Router) Handler() http.Handler {
	return r.mux
}

// accessLog stamps the request id as execution id and writes one Debug line
// per request.
func accessLog(log *logging.NamedLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := withRequestID(r)
			req := gohttp.NewRequest(r)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r.WithContext(ctx))

			log.DebugFn(ctx, func() string {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				return fmt.Sprintf("%s %s %d in %s", req.Method(), req.Path(), status, time.Since(start))
			})
		})
	}
}

func withRequestID(r *http.Request) context.Context {
	ctx := r.Context()
	if logging.HasExecutionID(ctx) {
		return ctx
	}
	if id := gohttp.NewRequest(r).RequestID(); id != "" {
		return logging.WithExecutionID(ctx, id)
	}
	return ctx
}
