// Package server is the REST binding of the dispatch engine: a thin adapter
// that translates HTTP requests into engine operation calls. All policy
// logic lives in the dispatch package.
package server

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"notify-dispatch/internal/common/logger"
	"notify-dispatch/internal/common/observability"
	"notify-dispatch/internal/dispatch"
)

// Server adapts HTTP transport to the engine's operation surface.
type Server struct {
	engine *dispatch.Engine
	logger logger.Logger
	tracer *observability.Tracer
}

// New creates the HTTP adapter around an engine.
func New(engine *dispatch.Engine, log logger.Logger, tracer *observability.Tracer) *Server {
	return &Server{
		engine: engine,
		logger: log.WithFields(map[string]interface{}{"component": "server"}),
		tracer: tracer,
	}
}

// Handler returns the route table for the operation surface.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /send", s.handleSend)
	mux.HandleFunc("POST /digest/queue", s.handleDigestQueue)
	mux.HandleFunc("POST /digest/send", s.handleDigestSend)
	mux.HandleFunc("POST /preferences/update", s.handlePreferenceUpdate)
	mux.HandleFunc("POST /preferences/check", s.handlePreferenceCheck)
	mux.HandleFunc("POST /template/validate", s.handleTemplateValidate)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// callerFrom builds the per-call capability bundle from the authenticated
// request context supplied by the fronting proxy.
func (s *Server) callerFrom(r *http.Request) dispatch.Caller {
	return dispatch.Caller{
		TenantID:     r.Header.Get("X-Tenant-ID"),
		UserID:       r.Header.Get("X-User-ID"),
		SecretLookup: lookupSecret,
		Telemetry:    &logTelemetry{logger: s.logger},
	}
}

func lookupSecret(key string) (string, error) {
	return os.Getenv(key), nil
}

// logTelemetry is the default telemetry sink: structured log events.
type logTelemetry struct {
	logger logger.Logger
}

func (t *logTelemetry) LogEvent(name string, attributes map[string]interface{}) {
	t.logger.Info(name, attributes)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
