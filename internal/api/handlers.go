package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"tradegate/internal/admission"
	"tradegate/internal/models"
	"tradegate/internal/version"
)

// Handlers contains the HTTP handlers for the gateway API.
//
// The downstream trading routes (analysis, trade proposal, backtesting,
// quantum optimization, agent debate) are service boundaries only: this
// deployment gates their traffic but does not implement them, so they
// answer 501 until the corresponding backend is wired up.
type Handlers struct {
	engine *admission.Engine
}

// NewHandlers creates a handlers instance. engine may be nil when
// admission control is disabled.
func NewHandlers(engine *admission.Engine) *Handlers {
	return &Handlers{engine: engine}
}

// HealthCheck handles health check requests.
// GET /health
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := models.NewHealthCheckResponse(models.StatusHealthy)
	response.Version = version.GetInfo().Version

	if h.engine != nil {
		status := models.StatusHealthy
		message := "backend " + h.engine.Backend()
		if err := h.engine.Healthy(r.Context()); err != nil {
			// Local fallback keeps serving; the gate is degraded, not down.
			status = models.StatusDegraded
			message = "shared store unreachable, serving from local store"
			response.Status = models.StatusDegraded
		}
		response.AddComponent("admission", status, message)
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// ReadyCheck reports whether the process is ready to serve traffic.
// The gate fails open, so readiness does not depend on the shared store.
// GET /health/ready
func (h *Handlers) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	h.HealthCheck(w, r)
}

// LiveCheck is the liveness probe.
// GET /health/live
func (h *Handlers) LiveCheck(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, map[string]string{"status": "alive"})
}

// AdmissionStats serves the read-only admission snapshot for dashboards.
// GET /api/v1/admission/stats
func (h *Handlers) AdmissionStats(w http.ResponseWriter, r *http.Request) {
	if h.engine == nil {
		h.writeErrorResponse(w, http.StatusNotFound, models.ErrorCodeNotFound, "Admission control is disabled")
		return
	}

	stats := h.engine.Stats(r.Context())

	h.writeJSONResponse(w, http.StatusOK, &models.AdmissionStatsResponse{
		Backend:        stats.Backend,
		ActiveLimits:   stats.ActiveKeys,
		DefaultLimit:   stats.DefaultLimit,
		WindowSeconds:  int(stats.Window.Seconds()),
		EndpointLimits: stats.Routes,
	})
}

// AnalyzeSymbol is the symbol-analysis boundary.
// POST /api/v1/analyze, GET/POST /api/v1/analyze/{symbol}
func (h *Handlers) AnalyzeSymbol(w http.ResponseWriter, r *http.Request) {
	h.notImplemented(w, "Symbol analysis")
}

// ProposeTrade is the trade-execution boundary.
// POST /api/v1/trade
func (h *Handlers) ProposeTrade(w http.ResponseWriter, r *http.Request) {
	h.notImplemented(w, "Trade execution")
}

// RunBacktest is the backtesting boundary.
// POST /api/v1/backtest
func (h *Handlers) RunBacktest(w http.ResponseWriter, r *http.Request) {
	h.notImplemented(w, "Backtesting")
}

// QuantumOptimize is the portfolio-optimization boundary.
// POST /api/v1/quantum/optimize
func (h *Handlers) QuantumOptimize(w http.ResponseWriter, r *http.Request) {
	h.notImplemented(w, "Quantum optimization")
}

// AgentDebate is the multi-agent debate boundary.
// POST /api/v1/agent/debate
func (h *Handlers) AgentDebate(w http.ResponseWriter, r *http.Request) {
	h.notImplemented(w, "Agent debate")
}

func (h *Handlers) notImplemented(w http.ResponseWriter, service string) {
	h.writeErrorResponse(w, http.StatusNotImplemented, models.ErrorCodeNotImplemented,
		service+" is not available in this deployment")
}

func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

func (h *Handlers) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	errorResp := models.NewErrorResponse(message, errorCode)
	if err := json.NewEncoder(w).Encode(errorResp); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}
