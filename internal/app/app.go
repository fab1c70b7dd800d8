package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/medieye/med-reminder/internal/api"
	"github.com/medieye/med-reminder/internal/config"
	"github.com/medieye/med-reminder/internal/domain"
	"github.com/medieye/med-reminder/internal/engine"
	"github.com/medieye/med-reminder/internal/notify"
	"github.com/medieye/med-reminder/internal/otp"
	"github.com/medieye/med-reminder/internal/registry"
	"github.com/medieye/med-reminder/internal/scheduler"
	"github.com/medieye/med-reminder/internal/store"
	ws "github.com/medieye/med-reminder/internal/websocket"
	"github.com/medieye/med-reminder/internal/worker"
)

// App owns every long-lived component and their startup/shutdown order.
type App struct {
	cfg      *config.Config
	log      *zap.Logger
	clock    clockwork.Clock
	vapid    config.VAPIDKeys
	slots    []domain.Slot
	location *time.Location
}

// New validates everything that must be correct before serving: key files,
// the schedule table and the timezone.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	vapid, err := config.LoadVAPIDKeys(cfg.VAPIDPrivateKeyFile, cfg.VAPIDPublicKeyFile)
	if err != nil {
		return nil, err
	}
	slots, err := config.LoadSchedule(cfg.ScheduleFile)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:      cfg,
		log:      log,
		clock:    clockwork.NewRealClock(),
		vapid:    vapid,
		slots:    slots,
		location: loc,
	}, nil
}

// Run serves until ctx is cancelled, then shuts down in reverse order.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("vapid keys loaded", zap.String("public_key_prefix", prefix(a.vapid.PublicKey, 30)))
	for _, s := range a.slots {
		a.log.Info("reminder slot", zap.String("slot", s.Label), zap.String("time", s.Clock()))
	}

	var (
		pg      *store.PostgresStore
		rs      *store.RedisStore
		pingers = map[string]api.Pinger{}
		err     error
	)

	if a.cfg.DatabaseURL != "" {
		pg, err = store.NewPostgres(ctx, a.cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.RunMigrations(ctx); err != nil {
			return err
		}
		pingers["postgres"] = pg
		a.log.Info("delivery journal ready")
	}

	if a.cfg.RedisURL != "" {
		rs, err = store.NewRedis(ctx, a.cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rs.Close()
		pingers["redis"] = rs
		a.log.Info("connected to redis")
	}

	hub := ws.NewHub(a.log.Named("websocket"))
	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go hub.Run(hubCtx)

	mailer := a.mailer()

	var (
		limiter notify.Limiter   = engine.NewLocalLimiter(a.cfg.EmailRate)
		guard   engine.FireGuard = engine.NewMemoryFireGuard()
		codes   otp.Store        = otp.NewMemoryStore(a.clock)
	)
	if rs != nil {
		limiter = engine.NewRedisLimiter(rs.Client(), a.cfg.EmailRate, a.log)
		guard = engine.NewRedisFireGuard(rs.Client())
		codes = otp.NewRedisStore(rs.Client())
	}

	senders := []notify.Sender{
		notify.NewWebPushSender(notify.VAPID{
			PublicKey:  a.vapid.PublicKey,
			PrivateKey: a.vapid.PrivateKey,
			Subscriber: a.cfg.SenderEmail,
		}, a.cfg.PushTTL),
		notify.NewPaced(notify.NewEmailSender(mailer), limiter),
	}

	reg := registry.NewMemoryRegistry(a.clock)

	var recorder worker.Recorder
	fanoutOpts := []engine.Option{engine.WithBroadcaster(hub), engine.WithClock(a.clock)}
	if pg != nil {
		recorder = pg
		fanoutOpts = append(fanoutOpts, engine.WithJournal(pg))
	}

	deliverer := worker.NewDeliverer(senders, a.cfg.SendTimeout, recorder, hub, a.log.Named("deliverer"))
	pool := worker.NewPool(a.cfg.NumWorkers, deliverer, a.log)
	pool.Start(context.Background())
	defer pool.Stop()

	fanout := engine.NewFanOutEngine(reg, pool, a.log.Named("fanout"), fanoutOpts...)

	notifySlot := func(ctx context.Context, label string) {
		fanout.NotifySlot(ctx, label)
	}
	sched, err := scheduler.New(a.slots, notifySlot, a.log.Named("scheduler"),
		scheduler.WithClock(a.clock),
		scheduler.WithLocation(a.location),
		scheduler.WithFireGuard(guard),
	)
	if err != nil {
		return &domain.ConfigurationError{Field: "schedule", Err: err}
	}

	deps := api.Deps{
		Registry:       reg,
		Notifier:       fanout,
		Schedule:       sched,
		OTP:            otp.NewService(codes, mailer, a.clock, a.log.Named("otp")),
		Hub:            hub,
		Pingers:        pingers,
		VAPIDPublicKey: a.vapid.PublicKey,
		Logger:         a.log.Named("http"),
	}
	if pg != nil {
		deps.Journal = pg
	}

	server := &http.Server{
		Addr:        ":" + a.cfg.Port,
		Handler:     api.NewRouter(deps),
		ReadTimeout: 15 * time.Second,
		// Manual slot notifications answer only after every attempt finishes.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	serveErr := make(chan error, 1)
	go func() {
		a.log.Info("server starting", zap.String("port", a.cfg.Port), zap.Int("num_workers", a.cfg.NumWorkers))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		a.log.Info("shutting down server...")
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server forced to shutdown", zap.Error(err))
	}

	a.log.Info("server stopped")
	return nil
}

func (a *App) mailer() notify.Mailer {
	if a.cfg.EmailProvider == config.ProviderResend {
		return notify.NewResendMailer(a.cfg.ResendAPIKey, a.cfg.FromAddress())
	}
	return notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     a.cfg.SMTPHost,
		Port:     a.cfg.SMTPPort,
		Username: a.cfg.SenderEmail,
		Password: a.cfg.SenderPassword,
		From:     a.cfg.SenderEmail,
		Timeout:  a.cfg.SendTimeout,
	})
}

func prefix(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
