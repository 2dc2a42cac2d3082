// Package middleware provides reusable HTTP middleware for request IDs,
// Prometheus metrics, and request timeouts.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/metrics"
)

// Routes resolves a request to the pattern it was registered under.
// *http.ServeMux satisfies it.
type Routes interface {
	Handler(r *http.Request) (h http.Handler, pattern string)
}

// Metrics records request count, latency and in-flight requests labelled
// by route. With routes set the label is the matched pattern, or
// "unmatched"; otherwise it is the path with numeric segments collapsed.
func Metrics(m *metrics.Metrics, routes Routes) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeLabel(routes, r)
			rec := &statusRecorder{ResponseWriter: w}
			start := time.Now()

			m.HTTPRequestsInFlight.Inc()
			defer func() {
				m.HTTPRequestsInFlight.Dec()
				m.HTTPRequest(r.Method, route, rec.code(), time.Since(start))
			}()
			next.ServeHTTP(rec, r)
		})
	}
}

func routeLabel(routes Routes, r *http.Request) string {
	if routes == nil {
		return normalizePath(r.URL.Path)
	}
	_, pattern := routes.Handler(r)
	if pattern == "" {
		return "unmatched"
	}
	// "GET /api/v1/search" carries the method, which has its own label.
	if i := strings.IndexByte(pattern, ' '); i >= 0 {
		pattern = pattern[i+1:]
	}
	return pattern
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

func (s *statusRecorder) code() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

// normalizePath collapses numeric path segments so entry and rule ids do
// not explode label cardinality.
func normalizePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
