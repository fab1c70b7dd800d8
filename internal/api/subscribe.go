package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/medieye/med-reminder/internal/domain"
	"github.com/medieye/med-reminder/internal/notify"
	"github.com/medieye/med-reminder/internal/registry"
	ws "github.com/medieye/med-reminder/internal/websocket"
)

const maxSubscribeBody = 64 << 10

type SubscribeHandler struct {
	registry registry.Registry
	hub      *ws.Hub
	logger   *zap.Logger
}

func NewSubscribeHandler(reg registry.Registry, hub *ws.Hub, logger *zap.Logger) *SubscribeHandler {
	return &SubscribeHandler{registry: reg, hub: hub, logger: logger}
}

// Subscribe accepts {"subscription": <push subscription>, "email": "..."}.
func (h *SubscribeHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req domain.SubscribeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSubscribeBody)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sub, err := h.registry.Add(r.Context(), req.Subscription, req.Email)
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			respondError(w, http.StatusBadRequest, verr.Message)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to add subscription")
		return
	}

	h.logger.Info("subscription added",
		zap.String("subscription_id", sub.ID),
		zap.String("email", sub.Email),
		zap.String("endpoint", notify.PushEndpoint(sub.Push)),
	)
	if h.hub != nil {
		h.hub.Broadcast(ws.DeliveryEvent{Type: ws.EventSubscriptionNew, SubscriptionID: sub.ID})
	}

	respondJSON(w, http.StatusOK, domain.SubscribeResponse{
		Success: true,
		Message: "Subscription added successfully!",
	})
}

// List returns ids, emails and creation times. Push keys are never exposed.
func (h *SubscribeHandler) List(w http.ResponseWriter, r *http.Request) {
	subs := h.registry.All(r.Context())
	out := make([]domain.SubscriptionSummary, 0, len(subs))
	for _, s := range subs {
		out = append(out, s.Summary())
	}
	respondJSON(w, http.StatusOK, out)
}
