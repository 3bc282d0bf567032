package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/saloncore/booking-core/internal/availability"
	"github.com/saloncore/booking-core/internal/booking"
	"github.com/saloncore/booking-core/internal/catalog"
	"github.com/saloncore/booking-core/internal/config"
	"github.com/saloncore/booking-core/internal/database"
	"github.com/saloncore/booking-core/internal/eventbus"
	"github.com/saloncore/booking-core/internal/handlers"
	"github.com/saloncore/booking-core/internal/middleware"
	"github.com/saloncore/booking-core/internal/notifier"
	"github.com/saloncore/booking-core/internal/payments"
	"github.com/saloncore/booking-core/internal/repository"
	"github.com/saloncore/booking-core/internal/subscribers"
	"github.com/saloncore/booking-core/internal/workers"
	"github.com/saloncore/booking-core/pkg/events"
	"github.com/saloncore/booking-core/pkg/logger"
	"github.com/saloncore/booking-core/pkg/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	log := logger.New(cfg.LogLevel)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}

	if err := database.Migrate(db, cfg.Policy); err != nil {
		log.Fatal("failed to run database migrations", "error", err)
	}

	var redisClient *redis.Client
	redisClient, err = database.ConnectRedis(cfg.Redis)
	if err != nil {
		if cfg.Environment == "development" {
			log.Warn("failed to connect to redis, continuing without it", "error", err)
			redisClient = nil
		} else {
			log.Fatal("failed to connect to redis", "error", err)
		}
	}

	var natsConn *nats.Conn
	var eventPublisher *events.Publisher
	natsConn, err = events.Connect(cfg.NATS)
	if err != nil {
		if cfg.Environment == "development" {
			log.Warn("failed to connect to nats, continuing without it", "error", err)
			eventPublisher = events.NewNullPublisher(log)
		} else {
			log.Fatal("failed to connect to nats", "error", err)
		}
	} else {
		defer natsConn.Close()
		eventPublisher = events.NewPublisher(natsConn, log)
	}

	// Repositories
	catalogRepo := repository.NewCatalogRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	policyRepo := repository.NewPolicyRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)

	// Read models and pure components
	cat := catalog.New(catalogRepo, cacheRepo, cfg.Policy.SettingsCacheTTLSeconds, log)
	availEngine := availability.New(cat, bookingRepo)

	// Ports: fall back to null implementations when not configured, the
	// same graceful-degradation shape used above for NATS and redis.
	var paymentsPort payments.Payments
	if cfg.Stripe.SecretKey != "" {
		paymentsPort = payments.NewStripePayments(cfg.Stripe.SecretKey, log)
	} else {
		log.Warn("stripe secret key not configured, using null payments port")
		paymentsPort = payments.NewNullPayments(log)
	}

	var notifierPort notifier.Notifier
	if cfg.Notifier.BaseURL != "" {
		notifierPort = notifier.NewHTTPNotifier(cfg.Notifier.BaseURL, log)
	} else {
		notifierPort = notifier.NewNullNotifier(log)
	}

	bus := eventbus.New(log)
	sm := booking.New(db, bookingRepo, policyRepo, cat, availEngine, paymentsPort, bus, log)

	// Wire the bus: one subscriber forwards the events that have a NATS
	// subject onto NATS, another delivers ReminderDue through the Notifier
	// port.
	bus.Subscribe(subscribers.NewNatsForwarder(eventPublisher, log))
	bus.Subscribe(workers.NewReminderNotifierBridge(notifierPort, log))

	// Background lifecycle workers
	holdExpirer := workers.NewHoldExpirer(bookingRepo, sm, cfg.Workers.BatchSize, log)
	reminderDispatcher := workers.NewReminderDispatcher(bookingRepo, cacheRepo, bus, cfg.Policy.ReminderLeadMinutes, cfg.Workers.BatchSize, log)
	paymentReconciler := workers.NewPaymentReconciler(bookingRepo, policyRepo, sm, paymentsPort, cfg.Workers.BatchSize, log)

	cronScheduler := scheduler.New(
		holdExpirer, reminderDispatcher, paymentReconciler,
		cfg.Workers.HoldExpirerIntervalSeconds, cfg.Workers.ReminderDispatcherIntervalSeconds, cfg.Workers.PaymentReconcilerIntervalSeconds,
		log,
	)
	cronScheduler.Start()
	defer cronScheduler.Stop()

	// Inbound NATS subscriptions
	if natsConn != nil {
		eventSubscriber := events.NewSubscriber(natsConn, log)
		natsEventHandlers := subscribers.NewNatsEventHandlers(cat, log)
		if err := eventSubscriber.Subscribe(events.CatalogInvalidatedEvent, natsEventHandlers.HandleCatalogInvalidated); err != nil {
			log.Fatal("failed to subscribe to catalog.invalidated", "error", err)
		}
	} else {
		log.Warn("skipping nats subscriptions, no connection")
	}

	// HTTP handlers
	healthHandler := handlers.NewHealthHandler(db, redisClient, natsConn, log)
	catalogHandler := handlers.NewCatalogHandler(cat, log)
	availabilityHandler := handlers.NewAvailabilityHandler(availEngine, cat, bookingRepo, policyRepo, log)
	bookingHandler := handlers.NewBookingHandler(sm, bookingRepo, log)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.DefaultRequestLogging(log))
	router.Use(middleware.ErrorLogging(log))
	router.Use(middleware.DefaultCORS())
	router.Use(middleware.Identity())

	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/health/live", healthHandler.Live)

	if redisClient != nil {
		readLimiter := middleware.IPBasedRateLimit(redisClient, cfg.RateLimit.RequestsPerMinute, time.Minute, log)
		writeLimiter := middleware.ClientBasedRateLimit(redisClient, cfg.RateLimit.RequestsPerMinute, time.Minute, log)

		v1 := router.Group("/api/v1")
		v1.Use(readLimiter)
		{
			v1.GET("/services", catalogHandler.ListServices)
			v1.GET("/staff", catalogHandler.ListStaff)
			v1.GET("/availability/days", availabilityHandler.AvailableDays)
			v1.GET("/availability/slots", availabilityHandler.Slots)
			v1.GET("/availability/check", availabilityHandler.CheckSlot)
			v1.GET("/quote", availabilityHandler.Quote)

			v1.GET("/bookings", bookingHandler.ListBookings)
			v1.GET("/bookings/:id", bookingHandler.GetBooking)

			writes := v1.Group("")
			writes.Use(writeLimiter, middleware.RequireClient())
			{
				writes.POST("/bookings/hold", bookingHandler.Hold)
				writes.POST("/bookings/:id/finalize", bookingHandler.Finalize)
				writes.POST("/bookings/:id/reschedule", bookingHandler.Reschedule)
				writes.POST("/bookings/:id/cancel", bookingHandler.Cancel)
				writes.POST("/bookings/:id/rate", bookingHandler.Rate)
			}
		}
	} else {
		log.Warn("redis unavailable, serving without rate limiting")
		registerRoutesWithoutRateLimit(router, catalogHandler, availabilityHandler, bookingHandler)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting booking core", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down booking core")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown", "error", err)
	}

	log.Info("booking core stopped")
}

// registerRoutesWithoutRateLimit is the local-dev fallback when redis is
// unavailable; client identity is still required on write endpoints.
func registerRoutesWithoutRateLimit(router *gin.Engine, catalogHandler *handlers.CatalogHandler, availabilityHandler *handlers.AvailabilityHandler, bookingHandler *handlers.BookingHandler) {
	v1 := router.Group("/api/v1")
	v1.GET("/services", catalogHandler.ListServices)
	v1.GET("/staff", catalogHandler.ListStaff)
	v1.GET("/availability/days", availabilityHandler.AvailableDays)
	v1.GET("/availability/slots", availabilityHandler.Slots)
	v1.GET("/availability/check", availabilityHandler.CheckSlot)
	v1.GET("/quote", availabilityHandler.Quote)
	v1.GET("/bookings", bookingHandler.ListBookings)
	v1.GET("/bookings/:id", bookingHandler.GetBooking)

	writes := v1.Group("")
	writes.Use(middleware.RequireClient())
	writes.POST("/bookings/hold", bookingHandler.Hold)
	writes.POST("/bookings/:id/finalize", bookingHandler.Finalize)
	writes.POST("/bookings/:id/reschedule", bookingHandler.Reschedule)
	writes.POST("/bookings/:id/cancel", bookingHandler.Cancel)
	writes.POST("/bookings/:id/rate", bookingHandler.Rate)
}
