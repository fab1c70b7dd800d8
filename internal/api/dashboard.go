package api

import (
	"net/http"

	"github.com/medieye/med-reminder/internal/registry"
	"github.com/medieye/med-reminder/internal/store"
	ws "github.com/medieye/med-reminder/internal/websocket"
)

type DashboardHandler struct {
	registry registry.Registry
	journal  Journal
	hub      *ws.Hub
}

func NewDashboardHandler(reg registry.Registry, j Journal, hub *ws.Hub) *DashboardHandler {
	return &DashboardHandler{registry: reg, journal: j, hub: hub}
}

type metricsResponse struct {
	Subscriptions    int                    `json:"subscriptions"`
	WebSocketClients int                    `json:"websocket_clients"`
	Deliveries       *store.DeliveryMetrics `json:"deliveries,omitempty"`
}

// Metrics returns the live subscription count plus journal totals when recorded.
func (h *DashboardHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	resp := metricsResponse{Subscriptions: h.registry.Len()}
	if h.hub != nil {
		resp.WebSocketClients = h.hub.ClientCount()
	}

	if h.journal != nil {
		m, err := h.journal.GetDeliveryMetrics(r.Context())
		if err != nil {
			respondError(w, http.StatusInternalServerError, "failed to get metrics")
			return
		}
		resp.Deliveries = m
	}

	respondJSON(w, http.StatusOK, resp)
}
