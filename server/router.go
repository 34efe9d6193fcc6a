package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Path constants for the endpoint table of spec §6, flat and named the
// way http.go's httpPath* table names the old dex endpoints.
var (
	httpPathLogin        = "/api/login/"
	httpPathRefresh      = "/api/refresh"
	httpPathKeysRotate   = "/api/keys/rotate"
	httpPathUserKeys     = "/api/user/keys/"
	httpPathSharedSecret = "/api/shared-secret"
	httpPathVersion      = "/api/version"
	httpPathMetrics      = "/metrics"
	httpPathHealthz      = "/healthz"
)

func (s *Server) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc(httpPathLogin, s.handleLoginIssue).Methods(http.MethodPost)
	r.HandleFunc(httpPathLogin, s.handleLoginRedeem).Methods(http.MethodGet)
	r.HandleFunc(httpPathLogin, s.handleLogout).Methods(http.MethodDelete)

	r.HandleFunc(httpPathRefresh, s.handleRefresh).Methods(http.MethodPost)

	r.HandleFunc(httpPathKeysRotate, s.handleKeysRotate).Methods(http.MethodPost)
	r.HandleFunc(httpPathUserKeys, s.handleUserKeys).Methods(http.MethodGet)

	r.HandleFunc(httpPathSharedSecret, s.handleSharedSecretCreate).Methods(http.MethodPost)
	r.HandleFunc(httpPathSharedSecret, s.handleSharedSecretGet).Methods(http.MethodGet)
	r.HandleFunc(httpPathSharedSecret, s.handleSharedSecretDelete).Methods(http.MethodDelete)

	r.HandleFunc(httpPathVersion, s.handleVersion).Methods(http.MethodGet)

	return r
}

// TelemetryHandler returns the /metrics and /healthz mux served on the
// separate telemetry listener, mirroring cmd/dex/serve.go's
// telemetryRouter split from the main web listener.
func (s *Server) TelemetryHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(httpPathMetrics, s.metricsHandler())
	mux.Handle(httpPathHealthz, s.healthHandler())
	return mux
}
