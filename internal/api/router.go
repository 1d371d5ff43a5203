package api

import (
	"github.com/alexivanou/simple-geo/internal/config"
	"github.com/alexivanou/simple-geo/internal/service"
	"github.com/alexivanou/simple-geo/internal/stats"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter creates a new HTTP router. With admin.Hidden set only the
// health and stats endpoints are registered.
func NewRouter(service service.ServiceInterface, statsCollector *stats.Collector, admin config.AdminConfig, logger *zap.Logger) *mux.Router {
	handler := NewHandler(service, logger)
	statsHandler := NewStatsHandler(statsCollector, logger)

	router := mux.NewRouter()

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// API v1
	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.HandleFunc("/stats", statsHandler.GetStats).Methods("GET")

	if admin.Hidden {
		return router
	}

	v1.HandleFunc("/cities", handler.SearchCities).Methods("GET")
	v1.HandleFunc("/cities/{slug}", handler.GetCity).Methods("GET")
	v1.HandleFunc("/postal-codes", handler.SearchPostalCodes).Methods("GET")
	v1.HandleFunc("/nearest", handler.FindNearestCity).Methods("GET")

	return router
}
