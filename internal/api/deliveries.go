package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medieye/med-reminder/internal/store"
)

type DeliveryHandler struct {
	journal Journal
}

func NewDeliveryHandler(j Journal) *DeliveryHandler {
	return &DeliveryHandler{journal: j}
}

func queryLimit(r *http.Request) int {
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	return limit
}

func validID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	for _, param := range []string{"run_id", "subscription_id"} {
		if v := q.Get(param); v != "" && !validID(v) {
			respondError(w, http.StatusBadRequest, "invalid "+param)
			return
		}
	}
	attempts, err := h.journal.ListDeliveryAttempts(r.Context(), store.DeliveryFilter{
		RunID:          q.Get("run_id"),
		SubscriptionID: q.Get("subscription_id"),
		Channel:        q.Get("channel"),
		Status:         q.Get("status"),
		Limit:          queryLimit(r),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list delivery attempts")
		return
	}

	respondJSON(w, http.StatusOK, attempts)
}

func (h *DeliveryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !validID(id) {
		respondError(w, http.StatusNotFound, "delivery attempt not found")
		return
	}

	attempt, err := h.journal.GetDeliveryAttempt(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to get delivery attempt")
		return
	}
	if attempt == nil {
		respondError(w, http.StatusNotFound, "delivery attempt not found")
		return
	}

	respondJSON(w, http.StatusOK, attempt)
}

func (h *DeliveryHandler) Runs(w http.ResponseWriter, r *http.Request) {
	runs, err := h.journal.ListSlotRuns(r.Context(), r.URL.Query().Get("slot"), queryLimit(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to list slot runs")
		return
	}

	respondJSON(w, http.StatusOK, runs)
}
