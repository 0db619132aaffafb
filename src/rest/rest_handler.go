package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"ticker-monitor/src/interfaces"
	"ticker-monitor/src/logger"
	"ticker-monitor/src/models"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

// -----------------------------------------------------------------------------
// Response types
// -----------------------------------------------------------------------------

// ControlResponse is returned by the control endpoints.
type ControlResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HealthResponse is returned by /rest/health.
type HealthResponse struct {
	Status    string                  `json:"status"` // ok while connected, degraded otherwise
	State     models.MConnectionState `json:"state"`
	Timestamp time.Time               `json:"timestamp"`
}

// AlertsResponse is returned by /rest/alerts.
type AlertsResponse struct {
	Entries []models.MAlertFeedEntry `json:"entries"`
}

// -----------------------------------------------------------------------------
// APIHandler
// -----------------------------------------------------------------------------

// APIHandler exposes the feed controller over HTTP.
type APIHandler struct {
	Name       string
	controller interfaces.IFeedController
	logger     *logger.Logger
	limiter    *rate.Limiter
}

// -----------------------------------------------------------------------------

// NewAPIHandler creates a handler whose control endpoints accept perSecond requests
// per second with the given burst.
func NewAPIHandler(controller interfaces.IFeedController, logger *logger.Logger, perSecond float64, burst int) *APIHandler {
	return &APIHandler{
		Name:       "RESTHandler",
		controller: controller,
		logger:     logger,
		limiter:    rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// -----------------------------------------------------------------------------

// Router registers every endpoint on a gorilla/mux router.
func (h *APIHandler) Router() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/rest").Subrouter()

	control := api.PathPrefix("/control").Subrouter()
	control.Use(h.rateLimit)
	control.HandleFunc("/reconnect", h.Reconnect).Methods(http.MethodPost)
	control.HandleFunc("/close", h.Close).Methods(http.MethodPost)
	control.HandleFunc("/refresh", h.Refresh).Methods(http.MethodPost)

	api.HandleFunc("/status", h.GetStatus).Methods(http.MethodGet)
	api.HandleFunc("/alerts", h.GetAlerts).Methods(http.MethodGet)
	api.HandleFunc("/snapshot", h.GetSnapshot).Methods(http.MethodGet)
	api.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)

	return r
}

// -----------------------------------------------------------------------------
// Control endpoints
// -----------------------------------------------------------------------------

// Reconnect handles POST /rest/control/reconnect
func (h *APIHandler) Reconnect(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("%s : reconnect requested from %s", h.Name, r.RemoteAddr)
	h.controller.Reconnect()
	h.writeJSON(w, http.StatusAccepted, ControlResponse{Success: true, Message: "reconnect requested"})
}

// -----------------------------------------------------------------------------

// Close handles POST /rest/control/close
func (h *APIHandler) Close(w http.ResponseWriter, r *http.Request) {
	h.logger.Info("%s : close requested from %s", h.Name, r.RemoteAddr)
	h.controller.Close()
	h.writeJSON(w, http.StatusOK, ControlResponse{Success: true, Message: "feed closed"})
}

// -----------------------------------------------------------------------------

// Refresh handles POST /rest/control/refresh
func (h *APIHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.controller.Refresh()
	h.writeJSON(w, http.StatusAccepted, ControlResponse{Success: true, Message: "refresh accepted"})
}

// -----------------------------------------------------------------------------
// Read endpoints
// -----------------------------------------------------------------------------

// GetStatus handles GET /rest/status
func (h *APIHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.controller.GetStatus())
}

// -----------------------------------------------------------------------------

// GetAlerts handles GET /rest/alerts
func (h *APIHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, AlertsResponse{Entries: h.controller.Alerts()})
}

// -----------------------------------------------------------------------------

// GetSnapshot handles GET /rest/snapshot, 204 until the first snapshot arrived
func (h *APIHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, ok := h.controller.LatestDisplay()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.writeJSON(w, http.StatusOK, snapshot)
}

// -----------------------------------------------------------------------------

// HealthCheck handles GET /rest/health
func (h *APIHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	state := h.controller.State()

	resp := HealthResponse{Status: "ok", State: state, Timestamp: time.Now().UTC()}
	code := http.StatusOK
	if state != models.StateConnected {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	h.writeJSON(w, code, resp)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// rateLimit rejects control requests beyond the limiter budget with 429.
func (h *APIHandler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow() {
			h.logger.Warning("%s : rate limit exceeded for %s %s", h.Name, r.Method, r.URL.Path)
			h.writeJSON(w, http.StatusTooManyRequests, ControlResponse{Success: false, Message: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// -----------------------------------------------------------------------------

func (h *APIHandler) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error("%s : failed to encode response: %v", h.Name, err)
	}
}
