package server

import (
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotauth/internal/metrics"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

const unmatchedRoute = "unmatched"

// AccessLog logs one line per request and records its latency.
//
// Only the path is logged. Query strings carry codes and tokens. Requests that match no route share the
// "unmatched" route label.
func AccessLog(logger *log.Logger, recorder metrics.Recorder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)

			route := unmatchedRoute
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			recorder.ObserveRequest(r.Method, route, status, duration)

			kv := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"duration", duration,
			}
			if id := chimw.GetReqID(r.Context()); id != "" {
				kv = append(kv, "request_id", id)
			}

			switch {
			case status >= 500:
				logger.Error("http request", kv...)
			case status >= 400:
				logger.Warn("http request", kv...)
			default:
				logger.Info("http request", kv...)
			}
		})
	}
}

// CORS sets permissive cross-origin headers for origin and answers preflight requests with 204.
func CORS(origin string) Middleware {
	if origin == "" {
		origin = "*"
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "86400")
			if origin != "*" {
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
