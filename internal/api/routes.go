package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"tradegate/internal/admission"
	"tradegate/internal/models"
)

// RouteOption configures optional route behavior.
type RouteOption func(*mux.Router)

// WithOTelMiddleware adds OpenTelemetry HTTP instrumentation middleware.
// Paths exempt from admission control are also excluded from tracing;
// probe traffic is noise in both places.
func WithOTelMiddleware(serviceName string, table *admission.Table) RouteOption {
	return func(r *mux.Router) {
		r.Use(otelmux.Middleware(serviceName,
			otelmux.WithFilter(func(r *http.Request) bool {
				return !table.IsExempt(r.URL.Path)
			}),
		))
	}
}

// WithAdmissionGate adds the rate-limiting gate to the router.
func WithAdmissionGate(middleware func(http.Handler) http.Handler) RouteOption {
	return func(r *mux.Router) {
		r.Use(middleware)
	}
}

// SetupRoutes configures the HTTP routes for the gateway.
func SetupRoutes(handlers *Handlers, config *models.Config, opts ...RouteOption) *mux.Router {
	router := mux.NewRouter()

	for _, opt := range opts {
		opt(router)
	}

	// Each subrouter consults its own MethodNotAllowedHandler, so the
	// handler must be assigned to every router that registers routes.
	methodNotAllowed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		errorResp := models.NewErrorResponse("Method not allowed", models.ErrorCodeInvalidRequest)
		json.NewEncoder(w).Encode(errorResp)
	})
	router.MethodNotAllowedHandler = methodNotAllowed

	api := router.PathPrefix("/api/v1").Subrouter()
	api.MethodNotAllowedHandler = methodNotAllowed
	api.HandleFunc("/analyze", handlers.AnalyzeSymbol).Methods("POST")
	api.HandleFunc("/analyze/{symbol}", handlers.AnalyzeSymbol).Methods("GET", "POST")
	api.HandleFunc("/trade", handlers.ProposeTrade).Methods("POST")
	api.HandleFunc("/backtest", handlers.RunBacktest).Methods("POST")
	api.HandleFunc("/quantum/optimize", handlers.QuantumOptimize).Methods("POST")
	api.HandleFunc("/agent/debate", handlers.AgentDebate).Methods("POST")
	api.HandleFunc("/admission/stats", handlers.AdmissionStats).Methods("GET")

	router.HandleFunc("/health", handlers.HealthCheck).Methods("GET")
	router.HandleFunc("/health/ready", handlers.ReadyCheck).Methods("GET")
	router.HandleFunc("/health/live", handlers.LiveCheck).Methods("GET")

	if config.Server.CORS.Enabled {
		router.Use(corsMiddleware(config.Server.CORS))
	}

	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)

	return router
}
