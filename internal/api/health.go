package api

import (
	"context"
	"net/http"
	"time"
)

type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthHandler reports healthy unless a configured dependency fails its ping.
func HealthHandler(pingers map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "healthy", Version: "1.0.0"}
		status := http.StatusOK

		if len(pingers) > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			resp.Checks = make(map[string]string, len(pingers))
			for name, p := range pingers {
				if err := p.Ping(ctx); err != nil {
					resp.Checks[name] = err.Error()
					resp.Status = "degraded"
					status = http.StatusServiceUnavailable
					continue
				}
				resp.Checks[name] = "ok"
			}
		}

		respondJSON(w, status, resp)
	}
}

// VAPIDKeyHandler serves the application server key for PushManager.subscribe.
func VAPIDKeyHandler(publicKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if publicKey == "" {
			respondError(w, http.StatusNotFound, "push is not configured")
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"publicKey": publicKey})
	}
}
