package cmd

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/birchwood-sourdough/orders/config"
	"github.com/birchwood-sourdough/orders/kds"
	"github.com/birchwood-sourdough/orders/kvstore"
	"github.com/birchwood-sourdough/orders/metrics"
	"github.com/birchwood-sourdough/orders/middlewares"
	"github.com/birchwood-sourdough/orders/recordstore"
	"github.com/birchwood-sourdough/orders/recordstore/airtable"
	"github.com/birchwood-sourdough/orders/recordstore/gormstore"
	"github.com/birchwood-sourdough/orders/recordstore/memory"
	"github.com/birchwood-sourdough/orders/router"
	"github.com/birchwood-sourdough/orders/services"
)

const admissionLockTTL = 10 * time.Second

// application is everything the serve command runs.
type application struct {
	cfg        config.Config
	logger     *logrus.Logger
	metrics    *metrics.Metrics
	kv         kvstore.Store
	memKV      *kvstore.Memory
	hub        *kds.Hub
	dispatcher *services.NotificationDispatcher
	engine     *gin.Engine
	closers    []func() error
}

func newApplication(cfg config.Config, logger *logrus.Logger) (*application, error) {
	app := &application{cfg: cfg, logger: logger, metrics: metrics.New()}

	if err := app.initKV(); err != nil {
		app.Close()
		return nil, err
	}
	store, err := app.initRecordStore()
	if err != nil {
		app.Close()
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		app.Close()
		return nil, err
	}
	days, err := cfg.PickupWeekdays()
	if err != nil {
		app.Close()
		return nil, err
	}
	countable, err := cfg.CountableStatuses()
	if err != nil {
		app.Close()
		return nil, err
	}

	messages := services.NewMessageRenderer(services.MessageConfig{
		BusinessName: cfg.Bakery.Name,
		PayID:        cfg.Bakery.PayID,
		ContactPhone: cfg.Bakery.ContactPhone,
	})
	email := services.NewResendService(services.ResendConfig{APIKey: cfg.Resend.APIKey, From: cfg.Resend.From})
	sms := services.NewCellcastService(services.CellcastConfig{AppKey: cfg.Cellcast.AppKey, Sender: cfg.Cellcast.Sender})
	if !email.Configured() {
		logger.Warn("RESEND_API_KEY not set, confirmation emails will be skipped")
	}
	app.dispatcher = services.NewNotificationDispatcher(services.DispatcherConfig{
		Workers:     cfg.Notify.Workers,
		QueueSize:   cfg.Notify.QueueSize,
		MaxAttempts: cfg.Notify.MaxAttempts,
		SendTimeout: cfg.Notify.SendTimeout,
	}, email, sms, messages, app.metrics, logger.WithField("component", "notifications"))

	app.hub = kds.NewHub(logger.WithField("component", "events"))

	settings := services.NewSettingsService(store, app.metrics, logger.WithField("component", "settings"))
	ledger := services.NewCapacityLedger(store, cfg.Bakery.MaxLoavesPerDay, countable, app.metrics, logger.WithField("component", "capacity"))
	policy := services.AdmissionPolicy{
		PerOrderMax: cfg.Bakery.MaxLoavesPerOrder,
		UnitPrice:   cfg.Bakery.LoafPrice,
		AllowedDays: days,
		Location:    loc,
	}
	var locker services.DayLocker
	if cfg.Bakery.SerializeAdmission {
		locker = kvstore.NewLocker(app.kv, admissionLockTTL)
	}
	admission := services.NewAdmissionController(store, ledger, policy, settings, locker, app.dispatcher, app.metrics, logger.WithField("component", "admission"))
	tracker := services.NewStatusTracker(store, app.dispatcher, app.hub, app.metrics, logger.WithField("component", "lifecycle"))
	auth := services.NewAuthService(services.AuthConfig{
		PasswordHash: cfg.Auth.PasswordHash,
		JWTSecret:    cfg.Auth.JWTSecret,
		TokenTTL:     cfg.Auth.TokenTTL,
		BindIP:       cfg.Auth.BindIP,
	}, app.kv, app.metrics, logger.WithField("component", "auth"))

	app.engine = router.SetupRouter(router.Dependencies{
		Admission: admission,
		Tracker:   tracker,
		Orders:    services.NewOrderRepository(store, logger.WithField("component", "orders")),
		Ledger:    ledger,
		Auth:      auth,
		Settings:  settings,
		Feedback:  services.NewFeedbackService(store, app.metrics, logger.WithField("component", "feedback")),
		Hub:       app.hub,
		Metrics:   app.metrics,
		Logger:    logger,
		OrderLimiter: middlewares.NewRateLimiter(middlewares.RateLimitConfig{
			Name:    "orders",
			Limit:   cfg.Limits.Orders.Limit,
			Window:  cfg.Limits.Orders.Window,
			Lockout: cfg.Limits.Orders.Lockout,
		}, app.kv, app.metrics, logger),
		LoginLimiter: middlewares.NewRateLimiter(middlewares.RateLimitConfig{
			Name:    "login",
			Limit:   cfg.Limits.Login.Limit,
			Window:  cfg.Limits.Login.Window,
			Lockout: cfg.Limits.Login.Lockout,
		}, app.kv, app.metrics, logger),
		OrderThrottle:  rate.NewLimiter(rate.Limit(cfg.Limits.OrdersRPS), cfg.Limits.OrdersBurst),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		TrustedProxies: cfg.Server.TrustedProxies,
	})
	return app, nil
}

func (a *application) initKV() error {
	switch a.cfg.KV.Backend {
	case "redis":
		r, err := kvstore.NewRedis(kvstore.RedisConfig{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
			Prefix:   a.cfg.Redis.Prefix,
		})
		if err != nil {
			return errors.Wrap(err, "connect to redis")
		}
		a.kv = r
		a.closers = append(a.closers, r.Close)
	default:
		a.memKV = kvstore.NewMemory()
		a.kv = a.memKV
	}
	a.logger.WithField("backend", a.cfg.KV.Backend).Info("KV store ready")
	return nil
}

func (a *application) initRecordStore() (recordstore.Store, error) {
	log := a.logger.WithField("backend", a.cfg.Store.Backend)
	switch a.cfg.Store.Backend {
	case "airtable":
		client, err := airtable.NewClient(airtable.Config{
			APIKey:  a.cfg.Airtable.APIKey,
			BaseID:  a.cfg.Airtable.BaseID,
			BaseURL: a.cfg.Airtable.BaseURL,
			Timeout: a.cfg.Airtable.Timeout,
		})
		if err != nil {
			return nil, errors.Wrap(err, "airtable client")
		}
		log.Info("Record store ready")
		return client, nil
	case "sqlite", "mysql":
		db, err := config.InitDB(a.cfg.Store, a.logger)
		if err != nil {
			return nil, err
		}
		if sqlDB, err := db.DB(); err == nil {
			a.closers = append(a.closers, sqlDB.Close)
		}
		store, err := gormstore.New(db)
		if err != nil {
			return nil, errors.Wrap(err, "migrate record store")
		}
		log.Info("Record store ready")
		return store, nil
	default:
		log.Warn("Using in-memory record store, data is lost on restart")
		return memory.New(), nil
	}
}

// Close releases connections in reverse order of opening.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.WithError(err).Warn("Error during close")
		}
	}
	a.closers = nil
}
