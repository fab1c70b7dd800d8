package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/medieye/med-reminder/internal/domain"
	"github.com/medieye/med-reminder/internal/engine"
	"github.com/medieye/med-reminder/internal/otp"
	"github.com/medieye/med-reminder/internal/registry"
	"github.com/medieye/med-reminder/internal/scheduler"
	"github.com/medieye/med-reminder/internal/store"
	ws "github.com/medieye/med-reminder/internal/websocket"
)

// SlotNotifier runs a slot's fan-out on demand.
type SlotNotifier interface {
	Run(ctx context.Context, label, trigger string) engine.Summary
}

// Schedule exposes the trigger table.
type Schedule interface {
	Entries() []scheduler.Entry
	Has(label string) bool
}

// Journal is the read side of the delivery journal.
type Journal interface {
	ListDeliveryAttempts(ctx context.Context, f store.DeliveryFilter) ([]domain.DeliveryAttempt, error)
	GetDeliveryAttempt(ctx context.Context, id string) (*domain.DeliveryAttempt, error)
	ListSlotRuns(ctx context.Context, slot string, limit int) ([]domain.SlotRun, error)
	GetDeliveryMetrics(ctx context.Context) (*store.DeliveryMetrics, error)
}

// Pinger is a dependency checked by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators wired into the router. OTP, Journal, Hub and
// Pingers are optional.
type Deps struct {
	Registry       registry.Registry
	Notifier       SlotNotifier
	Schedule       Schedule
	OTP            *otp.Service
	Journal        Journal
	Hub            *ws.Hub
	Pingers        map[string]Pinger
	VAPIDPublicKey string
	Logger         *zap.Logger
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(d.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(corsMiddleware)

	subHandler := NewSubscribeHandler(d.Registry, d.Hub, d.Logger)
	slotHandler := NewSlotHandler(d.Notifier, d.Schedule)
	dashHandler := NewDashboardHandler(d.Registry, d.Journal, d.Hub)

	r.Post("/subscribe", subHandler.Subscribe)
	r.Get("/vapid-public-key", VAPIDKeyHandler(d.VAPIDPublicKey))

	if d.OTP != nil {
		otpHandler := NewOTPHandler(d.OTP)
		r.Post("/send-otp", otpHandler.Send)
		r.Post("/verify-otp", otpHandler.Verify)
	}

	if d.Hub != nil {
		r.Get("/ws", d.Hub.HandleWebSocket)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler(d.Pingers))
		r.Get("/subscriptions", subHandler.List)
		r.Get("/schedule", slotHandler.Schedule)
		r.Post("/slots/{slot}/notify", slotHandler.Notify)
		r.Get("/metrics", dashHandler.Metrics)

		if d.Journal != nil {
			deliveryHandler := NewDeliveryHandler(d.Journal)
			r.Get("/runs", deliveryHandler.Runs)
			r.Route("/deliveries", func(r chi.Router) {
				r.Get("/", deliveryHandler.List)
				r.Get("/{id}", deliveryHandler.Get)
			})
		}
	})

	return r
}

// requestLogger logs one line per request with zap.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			log.Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// corsMiddleware lets the browser page on another origin call the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
