// Package gateway exposes the daemon's pairing, health, and metrics
// surface over HTTP. Every route except /healthz, /pair, and the
// configured metrics path requires a bearer token once pairing is
// required.
package gateway

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fenwick-labs/agentd/internal/health"
	"github.com/fenwick-labs/agentd/internal/pairing"
	"github.com/fenwick-labs/agentd/pkg/logger"
)

// Gateway wires the pairing guard into an HTTP router.
type Gateway struct {
	guard       *pairing.Guard
	logger      *slog.Logger
	metricsPath string
}

// New builds a Gateway over guard. metricsPath is the route that serves
// Prometheus metrics; an empty string disables the metrics route.
func New(guard *pairing.Guard, logger *slog.Logger, metricsPath string) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{guard: guard, logger: logger, metricsPath: metricsPath}
}

// Router returns the gorilla/mux router serving this gateway's routes.
// Callers needing additional routes (worker-specific APIs) can register
// them on the returned router before passing it to http.Server.
func (g *Gateway) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", g.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/pair", g.handlePair).Methods(http.MethodPost)
	if g.metricsPath != "" {
		r.Handle(g.metricsPath, promhttp.Handler()).Methods(http.MethodGet)
	}
	r.Use(logger.RequestMiddleware(g.logger))
	r.Use(g.authMiddleware)
	return r
}

func (g *Gateway) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(health.SnapshotJSON())
}

type pairResponse struct {
	Token string `json:"token"`
}

func (g *Gateway) handlePair(w http.ResponseWriter, r *http.Request) {
	code := r.Header.Get("X-Pairing-Code")

	ok, lockoutRemaining, token := g.guard.TryPair(code)
	if lockoutRemaining > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(lockoutRemaining.Seconds())))
		writeJSONError(w, http.StatusTooManyRequests, "locked out, try again later")
		return
	}
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "invalid pairing code")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pairResponse{Token: token})
}

// authMiddleware enforces bearer-token auth on every route except
// /healthz, /pair, and the configured metrics path. mux.Router.Use wraps
// all registered routes, so those paths are exempted explicitly rather
// than by route order.
func (g *Gateway) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" || r.URL.Path == "/pair" || (g.metricsPath != "" && r.URL.Path == g.metricsPath) {
			next.ServeHTTP(w, r)
			return
		}

		if !g.guard.RequirePairing() {
			next.ServeHTTP(w, r)
			return
		}

		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" || !g.guard.IsAuthenticated(token) {
			logger.Scoped(r.Context(), g.logger).Warn("gateway request rejected: unauthenticated", "path", r.URL.Path)
			writeJSONError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": message})
}
