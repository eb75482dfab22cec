// Package httpapi exposes the storefront REST API under /api.
package httpapi

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/mux"

	app "github.com/R3E-Network/opxpress/internal/app"
	"github.com/R3E-Network/opxpress/internal/app/metrics"
	"github.com/R3E-Network/opxpress/internal/errors"
	"github.com/R3E-Network/opxpress/internal/httputil"
	"github.com/R3E-Network/opxpress/internal/logging"
	"github.com/R3E-Network/opxpress/internal/middleware"
)

// Options tunes the HTTP surface.
type Options struct {
	AllowedOrigin string
	CookieSecure  bool
	// AuthLimiter throttles signup and login per client IP. Nil disables it.
	AuthLimiter *middleware.RateLimiter
	// TrustProxyHeaders rewrites RemoteAddr from X-Forwarded-For/X-Real-IP
	// before the limiter sees it.
	TrustProxyHeaders bool
	StartedAt         time.Time
}

// NewHandler returns the full HTTP handler: the /api routes, /healthz and
// /metrics behind the recovery, request id, tracing and CORS middleware.
func NewHandler(application *app.Application, opts Options, log *logging.Logger) http.Handler {
	if log == nil {
		log = logging.NewDefault("httpapi")
	}
	if opts.StartedAt.IsZero() {
		opts.StartedAt = time.Now()
	}

	h := &handler{app: application, cookieSecure: opts.CookieSecure}
	requireAuth := middleware.NewAuthMiddleware(application.Tokens, log.Named("auth")).Handler
	limited := func(fn http.HandlerFunc) http.Handler {
		if opts.AuthLimiter == nil {
			return fn
		}
		return opts.AuthLimiter.Handler(fn)
	}
	protected := func(fn http.HandlerFunc) http.Handler {
		return requireAuth(fn)
	}

	router := mux.NewRouter()
	router.Use(metrics.InstrumentHandler)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.NotFound(w, r, "Route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorResponse(w, r, http.StatusMethodNotAllowed, errors.CodeValidation, "Method not allowed", nil)
	})

	router.Handle("/healthz", healthHandler(opts.StartedAt)).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/helloworld", h.helloWorld).Methods(http.MethodGet)

	api.HandleFunc("/products", h.listProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/search", h.searchProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/category/{category}", h.productsByCategory).Methods(http.MethodGet)
	api.HandleFunc("/products/{id}", h.getProduct).Methods(http.MethodGet)

	api.Handle("/auth/signup", limited(h.signup)).Methods(http.MethodPost)
	api.Handle("/auth/login", limited(h.login)).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", h.logout).Methods(http.MethodDelete)
	api.Handle("/auth/verify-access-token", protected(h.verifyAccessToken)).Methods(http.MethodGet)
	api.Handle("/verify-access-token", protected(h.verifyAccessToken)).Methods(http.MethodGet)

	api.Handle("/cart", protected(h.getCart)).Methods(http.MethodGet)
	api.Handle("/cart", protected(h.addToCart)).Methods(http.MethodPost)
	api.Handle("/cart", protected(h.updateCart)).Methods(http.MethodPatch)
	api.Handle("/cart", protected(h.removeFromCart)).Methods(http.MethodDelete)
	api.Handle("/cart/all", protected(h.clearCart)).Methods(http.MethodDelete)

	api.Handle("/order", protected(h.listOrders)).Methods(http.MethodGet)
	api.Handle("/order", protected(h.checkout)).Methods(http.MethodPost)

	var root http.Handler = router
	root = middleware.NewCORSMiddleware(opts.AllowedOrigin).Handler(root)
	root = chimw.Recoverer(root)
	root = middleware.NewTracingMiddleware(log.Named("http")).Handler(root)
	root = chimw.RequestID(root)
	if opts.TrustProxyHeaders {
		root = chimw.RealIP(root)
	}
	return root
}
