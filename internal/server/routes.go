package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tyrowin/gameportal/internal/auth"
	"github.com/Tyrowin/gameportal/internal/config"
	"github.com/Tyrowin/gameportal/internal/logging"
	"github.com/Tyrowin/gameportal/internal/metrics"
)

// SetupRoutes builds the application router. The WebSocket endpoint sits
// outside the instrumented group so its hijacked connection is not wrapped.
func SetupRoutes(h *Handlers, g *Gateway, tokens *auth.TokenManager, sec config.SecurityConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/ws", g.ServeWS)

	r.Group(func(r chi.Router) {
		r.Use(requestMetrics)

		r.Get("/", HealthHandler)
		r.Get("/test", TestPageHandler)
		r.Handle("/metrics", promhttp.Handler())

		r.Route("/api", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins: sec.CORSOrigins,
				AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
				AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
				MaxAge:         300,
			}))

			r.Get("/debug", h.Debug)

			r.Route("/auth", func(r chi.Router) {
				r.Use(authRateLimit(sec))
				r.Post("/register", h.Register)
				r.Post("/login", h.Login)
			})

			r.Route("/chat", func(r chi.Router) {
				r.Use(auth.Authenticate(tokens))
				r.Get("/info", h.ChatInfo)
				r.Get("/presence", h.ChatPresence)
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", h.ListProducts)
				r.Get("/{id}", h.GetProduct)

				r.Group(func(r chi.Router) {
					r.Use(auth.Authenticate(tokens))
					r.Use(auth.RequireAdmin)
					r.Post("/", h.CreateProduct)
					r.Put("/{id}", h.UpdateProduct)
					r.Delete("/{id}", h.DeleteProduct)
				})
			})
		})
	})

	return r
}

// authRateLimit limits login and registration attempts per client IP.
func authRateLimit(sec config.SecurityConfig) func(http.Handler) http.Handler {
	if sec.AuthRateLimitOff || sec.AuthRateLimit <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}
	return httprate.Limit(
		sec.AuthRateLimit,
		sec.AuthRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			respondError(w, http.StatusTooManyRequests, "Too many authentication attempts, try again later", nil)
		}),
	)
}

// requestMetrics records Prometheus metrics and a structured access log line
// per request.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)
		metrics.RecordAPIRequest(r.Method, route, status, elapsed)

		logging.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("route", route).
			Int("status", status).
			Dur("duration", elapsed).
			Msg("HTTP request")
	})
}
