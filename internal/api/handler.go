package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/alexivanou/simple-geo/internal/model"
	"github.com/alexivanou/simple-geo/internal/service"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const maxLimit = 500

// Handler handles HTTP requests
type Handler struct {
	service service.ServiceInterface
	logger  *zap.Logger
}

// NewHandler creates a new handler instance
func NewHandler(service service.ServiceInterface, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// SearchCities handles GET /api/v1/cities
func (h *Handler) SearchCities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, ok := parseLimit(w, q.Get("limit"))
	if !ok {
		return
	}

	filter := model.CityFilter{
		Query:    q.Get("q"),
		Country:  strings.ToUpper(q.Get("country")),
		Province: strings.ToUpper(q.Get("province")),
		Limit:    limit,
	}

	response, err := h.service.SearchCities(r.Context(), filter)
	if err != nil {
		h.logger.Error("Error searching cities", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, response)
}

// GetCity handles GET /api/v1/cities/{slug}
func (h *Handler) GetCity(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]
	if slug == "" {
		http.Error(w, "invalid city slug", http.StatusBadRequest)
		return
	}

	city, err := h.service.GetCityBySlug(r.Context(), slug)
	if err != nil {
		h.logger.Error("Error getting city", zap.String("slug", slug), zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if city == nil {
		http.Error(w, "city not found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, city)
}

// SearchPostalCodes handles GET /api/v1/postal-codes
func (h *Handler) SearchPostalCodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, ok := parseLimit(w, q.Get("limit"))
	if !ok {
		return
	}

	filter := model.PostalCodeFilter{
		Query:    q.Get("q"),
		Country:  strings.ToUpper(q.Get("country")),
		Province: strings.ToUpper(q.Get("province")),
		Limit:    limit,
	}

	response, err := h.service.SearchPostalCodes(r.Context(), filter)
	if err != nil {
		h.logger.Error("Error searching postal codes", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, response)
}

// FindNearestCity handles GET /api/v1/nearest
func (h *Handler) FindNearestCity(w http.ResponseWriter, r *http.Request) {
	latStr := r.URL.Query().Get("lat")
	lonStr := r.URL.Query().Get("lon")

	if latStr == "" || lonStr == "" {
		http.Error(w, "parameters 'lat' and 'lon' are required", http.StatusBadRequest)
		return
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		http.Error(w, "invalid lat parameter", http.StatusBadRequest)
		return
	}

	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		http.Error(w, "invalid lon parameter", http.StatusBadRequest)
		return
	}

	country := strings.ToUpper(r.URL.Query().Get("country"))

	response, err := h.service.FindNearestCity(r.Context(), lat, lon, country)
	if errors.Is(err, service.ErrInvalidCoordinates) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Error("Error finding nearest city", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	if response == nil {
		http.Error(w, "no cities found", http.StatusNotFound)
		return
	}

	h.writeJSON(w, response)
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handler) writeJSON(w http.ResponseWriter, v interface{}) {
	writeJSON(w, h.logger, v)
}

func writeJSON(w http.ResponseWriter, logger *zap.Logger, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Error("Error encoding response", zap.Error(err))
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Write(append(body, '\n'))
}

// parseLimit reads an optional positive limit, capped at maxLimit.
// It writes a 400 and returns false when the value is unusable.
func parseLimit(w http.ResponseWriter, s string) (int, bool) {
	if s == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(s)
	if err != nil || limit <= 0 {
		http.Error(w, "invalid limit parameter", http.StatusBadRequest)
		return 0, false
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return limit, true
}
