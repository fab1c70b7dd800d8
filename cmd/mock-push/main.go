// Command mock-push stands in for a browser push service during local runs.
// Point a subscription's endpoint at one of its routes to watch reminders
// arrive or fail.
package main

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/medieye/med-reminder/internal/logger"
)

var requestCount atomic.Int64

func main() {
	log, err := logger.New(os.Getenv("LOG_LEVEL"))
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}

	r := chi.NewRouter()

	// Accepted, as a push service answers a valid message.
	r.Post("/push/ok", func(w http.ResponseWriter, r *http.Request) {
		logPush(log, r, http.StatusCreated)
		w.WriteHeader(http.StatusCreated)
	})

	// Slow endpoint, delays 3 seconds before accepting.
	r.Post("/push/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(3 * time.Second)
		logPush(log, r, http.StatusCreated)
		w.WriteHeader(http.StatusCreated)
	})

	// Expired subscription.
	r.Post("/push/gone", func(w http.ResponseWriter, r *http.Request) {
		logPush(log, r, http.StatusGone)
		http.Error(w, "push subscription has unsubscribed or expired", http.StatusGone)
	})

	r.Post("/push/fail", func(w http.ResponseWriter, r *http.Request) {
		logPush(log, r, http.StatusInternalServerError)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]int64{"total_requests": requestCount.Load()})
	})

	log.Info("mock push service starting",
		zap.String("port", port),
		zap.Strings("routes", []string{
			"POST /push/ok   -> 201",
			"POST /push/slow -> 201 (3s delay)",
			"POST /push/gone -> 410",
			"POST /push/fail -> 500",
			"GET  /stats",
		}),
	)

	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}

func logPush(log *zap.Logger, r *http.Request, status int) {
	n, _ := io.Copy(io.Discard, r.Body)
	log.Info("push received",
		zap.Int64("request", requestCount.Add(1)),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Int64("payload_bytes", n),
		zap.String("ttl", r.Header.Get("TTL")),
		zap.String("content_encoding", r.Header.Get("Content-Encoding")),
		zap.String("authorization", truncate(r.Header.Get("Authorization"), 24)),
	)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
