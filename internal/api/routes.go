package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler, registry *prometheus.Registry) *mux.Router {
	r := mux.NewRouter()

	// Health check and metrics
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Cycle routes
	api.HandleFunc("/cycle/run", handler.RunCycle).Methods("POST")

	// Portfolio routes
	api.HandleFunc("/portfolio", handler.GetPortfolio).Methods("GET")
	api.HandleFunc("/portfolio/performance", handler.GetPerformance).Methods("GET")
	api.HandleFunc("/trades", handler.GetTrades).Methods("GET")

	// Signal routes
	api.HandleFunc("/signals/{date}", handler.GetSignals).Methods("GET")
	api.HandleFunc("/report/{date}", handler.GetReport).Methods("GET")

	return r
}
