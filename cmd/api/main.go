package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/tour-booking-service/internal/api/http"
	"github.com/spec-kit/tour-booking-service/internal/api/http/handlers"
	"github.com/spec-kit/tour-booking-service/internal/auth"
	"github.com/spec-kit/tour-booking-service/internal/config"
	"github.com/spec-kit/tour-booking-service/internal/domain"
	"github.com/spec-kit/tour-booking-service/internal/events"
	"github.com/spec-kit/tour-booking-service/internal/mail"
	"github.com/spec-kit/tour-booking-service/internal/observability"
	"github.com/spec-kit/tour-booking-service/internal/payment"
	"github.com/spec-kit/tour-booking-service/internal/persistence"
	"github.com/spec-kit/tour-booking-service/internal/repository"
	"github.com/spec-kit/tour-booking-service/internal/service"
	"github.com/spec-kit/tour-booking-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	tourRepo := repository.NewTourRepository(pool)
	reviewRepo := repository.NewReviewRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	mailer := mail.NewLogSender(cfg.Mail, logger)
	sessions := payment.NewHTTPSessionClient(cfg.Payment)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:   userRepo,
		Mailer:     mailer,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	tourService := service.NewTourService(tourRepo, redis, logger)
	reviewService := service.NewReviewService(reviewRepo, dispatcher)
	bookingService := service.NewBookingService(bookingRepo, tourRepo, sessions, dispatcher)
	notificationService := service.NewNotificationService(dispatcher, userRepo, mailer, logger)
	worker.StartNotificationWorker(notificationService)

	authGate := auth.NewMiddleware(authService.TokenManager(), userRepo)

	tourResource := handlers.NewResource(handlers.ResourceConfig[domain.Tour]{
		Name:  "tour",
		Store: tourRepo.Store(),
	})
	userResource := handlers.NewResource(handlers.ResourceConfig[domain.User]{
		Name:  "user",
		Store: repository.NewSQLStore[domain.User](pool, repository.UserDescriptor()),
	})
	reviewResource := handlers.NewResource(handlers.ResourceConfig[domain.Review]{
		Name:        "review",
		Store:       reviewRepo.Store(),
		ParentParam: "tourId",
		ParentField: "tour_id",
		AfterCreate: reviewService.AfterWrite,
		AfterUpdate: reviewService.AfterWrite,
		AfterDelete: reviewService.AfterDelete,
	})
	bookingResource := handlers.NewResource(handlers.ResourceConfig[domain.Booking]{
		Name:        "booking",
		Store:       bookingRepo.Store(),
		AfterCreate: bookingService.NotifyCreated,
	})

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	secureCookies := cfg.App.Env == "production"
	healthHandler := handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis)
	usersHandler := handlers.NewUsersHandler(authService, cfg.Auth.CookieTTLDays, secureCookies)
	toursHandler := handlers.NewToursHandler(tourService)
	bookingsHandler := handlers.NewBookingsHandler(bookingService)

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:   healthHandler,
		Users:    usersHandler,
		Tours:    toursHandler,
		Bookings: bookingsHandler,

		TourResource:    tourResource,
		UserResource:    userResource,
		ReviewResource:  reviewResource,
		BookingResource: bookingResource,

		PopulateTourGuides: tourRepo.AttachGuides,
		PopulateReviewAuthor: func(ctx context.Context, review *domain.Review) error {
			batch := []domain.Review{*review}
			if err := reviewRepo.AttachAuthors(ctx, batch); err != nil {
				return err
			}
			review.Author = batch[0].Author
			return nil
		},

		AuthGate: authGate,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
