package server

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type logRequestKey string

const (
	RequestKeyRequestID logRequestKey = "request_id"
	RequestKeyRemoteIP  logRequestKey = "client_remote_addr"
)

func withRequestID(ctx context.Context) context.Context {
	return context.WithValue(ctx, RequestKeyRequestID, uuid.NewString())
}

func withRemoteIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, RequestKeyRemoteIP, ip)
}

// withMiddleware wraps next with request-id/remote-ip context population
// and request metrics, mirroring dex's server.go request-context pattern.
// cmd/hashrand's requestContextHandler reads these keys from the context
// of a slog record; pkg/log.Logger methods take no context, so lines
// logged through them carry neither key.
func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := withRequestID(r.Context())
		ctx = withRemoteIP(ctx, remoteIP(r))
		r = r.WithContext(ctx)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)

		s.metrics.observe(r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}

func remoteIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}

// statusWriter records the status code a handler wrote, for metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
