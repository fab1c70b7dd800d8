package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/medieye/med-reminder/internal/domain"
)

type SlotHandler struct {
	notifier SlotNotifier
	schedule Schedule
}

func NewSlotHandler(n SlotNotifier, s Schedule) *SlotHandler {
	return &SlotHandler{notifier: n, schedule: s}
}

func (h *SlotHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.schedule.Entries())
}

// Notify fires a slot immediately and returns the run summary once every
// attempt has finished. The run outlives a disconnecting client.
func (h *SlotHandler) Notify(w http.ResponseWriter, r *http.Request) {
	slot := chi.URLParam(r, "slot")
	if !h.schedule.Has(slot) {
		respondError(w, http.StatusNotFound, "unknown slot")
		return
	}

	summary := h.notifier.Run(context.WithoutCancel(r.Context()), slot, domain.TriggerManual)
	respondJSON(w, http.StatusOK, summary)
}
