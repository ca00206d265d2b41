package main

import (
	"context"
	stderrors "errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"holidaysri-admin/internal/application/command"
	"holidaysri-admin/internal/application/query"
	"holidaysri-admin/internal/application/services"
	"holidaysri-admin/internal/config"
	"holidaysri-admin/internal/domain/aggregate"
	"holidaysri-admin/internal/domain/event"
	"holidaysri-admin/internal/domain/repository"
	"holidaysri-admin/internal/infrastructure/bus"
	"holidaysri-admin/internal/infrastructure/cache"
	"holidaysri-admin/internal/infrastructure/cloudinary"
	httpHandler "holidaysri-admin/internal/infrastructure/http"
	"holidaysri-admin/internal/infrastructure/kafka"
	"holidaysri-admin/internal/infrastructure/memory"
	"holidaysri-admin/internal/infrastructure/mongo"
	"holidaysri-admin/internal/infrastructure/notification"
	jwtutil "holidaysri-admin/pkg/jwt"
	"holidaysri-admin/pkg/logger"
	"holidaysri-admin/pkg/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New(logger.Config{ServiceName: "holidaysri-admin"})
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.New(logger.Config{
		Level:       cfg.LogLevel,
		Environment: cfg.Environment,
		ServiceName: "holidaysri-admin",
	})

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("storage", cfg.Storage).Msg("starting Holidaysri admin API")

	// Storage
	var (
		uowFactory  repository.UnitOfWorkFactory
		healthCheck func(context.Context) error
	)
	switch cfg.Storage {
	case config.StorageMemory:
		uowFactory = memory.NewFactory(memory.NewStore())
		log.Warn().Msg("using in-memory storage, data is lost on restart")
	default:
		mongoClient, err := mongo.NewMongoClient(&cfg.Mongo)
		if err != nil {
			return err
		}
		defer func() {
			if err := mongoClient.Close(); err != nil {
				log.Error().Err(err).Msg("error closing MongoDB connection")
			}
		}()
		if err := mongoClient.Ping(); err != nil {
			return err
		}
		if err := mongoClient.EnsureIndexes(ctx); err != nil {
			return err
		}
		log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

		uowFactory = mongo.NewMongoUnitOfWorkFactory(mongoClient.GetClient(), mongoClient.GetDatabase())
		healthCheck = func(context.Context) error { return mongoClient.Ping() }
	}

	// Transition lock
	var locker cache.Locker = cache.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		rdb, err := cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		locker = cache.NewRedisLocker(rdb, "holidaysri-admin:lock:")
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using Redis transition lock")
	}

	// Mail
	var mailer notification.Mailer = notification.NopMailer{Log: log}
	if cfg.Brevo.Enabled() {
		mailer = notification.NewBrevoMailer(cfg.Brevo, log)
	} else {
		log.Warn().Msg("Brevo is not configured, emails are disabled")
	}

	// Events: requester notifications and the optional Kafka fan-out run off
	// the request path
	eventBus := bus.NewAsyncEventBus(log)
	notifier := notification.NewPayoutNotifier(mailer, log)
	if err := bus.SubscribeAll(eventBus, notifier, notifier.EventTypes()...); err != nil {
		return err
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := kafka.NewEventPublisher(cfg.Kafka)
		if err != nil {
			return err
		}
		defer publisher.Close()
		if err := bus.SubscribeAll(eventBus, publisher,
			event.TypePayoutRequestApproved,
			event.TypePayoutRequestRejected,
			event.TypePayoutRequestPaid,
		); err != nil {
			return err
		}
		log.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("publishing events to Kafka")
	}
	if err := eventBus.Start(ctx); err != nil {
		return err
	}

	// Asset host
	var (
		assets  command.AssetRemover
		uploads *cloudinary.Handler
	)
	if cfg.Cloudinary.Enabled() {
		cld, err := cloudinary.NewService(cfg.Cloudinary, log)
		if err != nil {
			return err
		}
		assets = cld
		uploads = cloudinary.NewHandler(cld)
	}

	jwtManager := jwtutil.NewJWTManager(cfg.JWTSecret, cfg.JWTDuration)
	if err := seedAdmin(ctx, cfg, uowFactory, log); err != nil {
		return err
	}

	payoutService := services.NewPayoutService(
		command.NewApprovePayoutRequestHandler(uowFactory, locker, eventBus, log),
		command.NewRejectPayoutRequestHandler(uowFactory, locker, eventBus, log),
		command.NewMarkPayoutRequestPaidHandler(uowFactory, locker, eventBus, mailer, assets, log),
		query.NewListPayoutRequestsHandler(uowFactory),
		query.NewGetPayoutRequestHandler(uowFactory),
		query.NewGetPayoutStatsHandler(uowFactory),
		query.NewGetPayoutHistoryHandler(uowFactory),
	)

	digest := services.NewPendingDigestService(uowFactory, mailer, cfg.Digest, log)
	if err := digest.Start(ctx); err != nil {
		return err
	}
	defer digest.Stop()

	loginLimiter := middleware.NewRateLimiter(cfg.LoginRateLimit, time.Minute)
	if err := loginLimiter.TrustProxies(cfg.TrustedProxies...); err != nil {
		return err
	}

	validate := validator.New()
	router := httpHandler.NewRouter(httpHandler.RouterDeps{
		Log:          log,
		JWTManager:   jwtManager,
		Payouts:      httpHandler.NewHTTPPayoutController(payoutService, validate),
		Auth:         httpHandler.NewHTTPAuthController(command.NewLoginHandler(uowFactory, jwtManager, log), validate),
		Uploads:      uploads,
		LoginLimiter: loginLimiter,
		HealthCheck:  healthCheck,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	eventBus.Stop()
	log.Info().Msg("server stopped")
	return nil
}

// seedAdmin creates the bootstrap admin when it does not exist yet
func seedAdmin(ctx context.Context, cfg *config.Config, uowFactory repository.UnitOfWorkFactory, log zerolog.Logger) error {
	if cfg.SeedAdminEmail == "" {
		return nil
	}
	uow := uowFactory.CreateUnitOfWork()
	defer uow.Close()

	admins := uow.AdminRepository()
	if _, err := admins.GetByEmail(ctx, cfg.SeedAdminEmail); err == nil {
		return nil
	} else if !stderrors.Is(err, repository.ErrNotFound) {
		return err
	}

	admin, err := aggregate.NewAdmin(uuid.NewString(), cfg.SeedAdminName, cfg.SeedAdminEmail, cfg.SeedAdminPassword, aggregate.RoleSuperAdmin)
	if err != nil {
		return err
	}
	if err := admins.Save(ctx, admin); err != nil {
		return err
	}
	log.Info().Str("email", admin.Email()).Msg("seeded admin account")
	return nil
}
