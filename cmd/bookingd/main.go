// Command bookingd runs the booking service: an HTTP API for availability
// and reservations, and a background worker that relays outbox events to
// RabbitMQ.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/velvetcut/booking/adapter/api"
	"github.com/velvetcut/booking/internal/booking/application/commands"
	"github.com/velvetcut/booking/internal/booking/application/queries"
	"github.com/velvetcut/booking/internal/booking/application/services"
	"github.com/velvetcut/booking/internal/booking/infrastructure/guard"
	bookingpersistence "github.com/velvetcut/booking/internal/booking/infrastructure/persistence"
	"github.com/velvetcut/booking/internal/booking/infrastructure/token"
	catalogpersistence "github.com/velvetcut/booking/internal/catalog/infrastructure/persistence"
	"github.com/velvetcut/booking/internal/shared/infrastructure/eventbus"
	"github.com/velvetcut/booking/internal/shared/infrastructure/outbox"
	sharedpersistence "github.com/velvetcut/booking/internal/shared/infrastructure/persistence"
	staffingpersistence "github.com/velvetcut/booking/internal/staffing/infrastructure/persistence"
	"github.com/velvetcut/booking/pkg/config"
	"github.com/velvetcut/booking/pkg/observability"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "bookingd",
		Short:         "Booking service for the velvetcut shop",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(serveCmd(), workerCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the outbox relay worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	metrics := observability.NewInMemoryMetrics()
	location := cfg.Location()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	var tokenGuard commands.ConsumedGuard
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		redisClient = redis.NewClient(opts)
		defer redisClient.Close()
		tokenGuard = guard.NewRedisGuard(redisClient, cfg.OptionTokenTTL)
	}

	// Repositories and unit of work
	uow := sharedpersistence.NewPostgresUnitOfWork(pool)
	appointmentRepo := bookingpersistence.NewPostgresAppointmentRepository(pool)
	customerRepo := bookingpersistence.NewPostgresCustomerRepository(pool)
	auditRepo := bookingpersistence.NewPostgresAuditRepository(pool)
	agendaRepo := bookingpersistence.NewPostgresAgendaRepository(pool)
	staffingRepo := staffingpersistence.NewPostgresRepository(pool)
	catalogRepo := catalogpersistence.NewPostgresRepository(pool)
	outboxRepo := outbox.NewPostgresRepository(pool)

	codec := token.NewCodec(cfg.OptionTokenSecret, cfg.OptionTokenTTL)
	calendar := services.NewCalendarResolver(staffingRepo, appointmentRepo, location)

	// Handlers
	findOptions := queries.NewFindOptionsHandler(catalogRepo, staffingRepo, calendar, codec, logger)
	staffAgenda := queries.NewStaffAgendaHandler(agendaRepo, location)
	workerAgenda := queries.NewWorkerAgendaHandler(agendaRepo, location)

	reserve := commands.NewReserveHandler(uow, codec, tokenGuard, appointmentRepo,
		customerRepo, catalogRepo, staffingRepo, outboxRepo, auditRepo, logger, metrics)
	cancel := commands.NewCancelHandler(uow, appointmentRepo, outboxRepo, auditRepo,
		cfg.CancelWindow, logger, metrics)
	markAttended := commands.NewMarkAttendedHandler(uow, appointmentRepo, outboxRepo, auditRepo, logger, metrics)
	markNoShow := commands.NewMarkNoShowHandler(uow, appointmentRepo, outboxRepo, auditRepo, logger, metrics)
	registerPayment := commands.NewRegisterPaymentHandler(uow, appointmentRepo, outboxRepo, auditRepo, logger, metrics)
	reschedule := commands.NewRescheduleHandler(uow, codec, appointmentRepo, staffingRepo,
		outboxRepo, auditRepo, cfg.CancelWindow, logger, metrics)
	inlineEdit := commands.NewInlineEditHandler(uow, appointmentRepo, outboxRepo, auditRepo, logger, metrics)

	health := observability.NewHealthChecker()
	health.Register("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	if redisClient != nil {
		health.RegisterOptional("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}

	serverCfg := api.DefaultServerConfig()
	serverCfg.Addr = cfg.HTTPAddr
	serverCfg.AuthSecret = cfg.AuthJWTSecret

	server := api.NewServer(serverCfg,
		api.NewAvailabilityHandler(findOptions, api.AvailabilityDefaults{
			SlotIntervalMinutes: cfg.SlotIntervalMinutes,
			Limit:               cfg.OptionsLimit,
		}, location),
		api.NewAppointmentsHandler(reserve, cancel, markAttended, markNoShow,
			registerPayment, reschedule, inlineEdit),
		api.NewAgendaHandler(staffAgenda, workerAgenda, location),
		health, logger, metrics)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	return server.Shutdown(shutdownCtx)
}

func runWorker(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	metrics := observability.NewInMemoryMetrics()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	var publisher eventbus.Publisher
	if cfg.RabbitMQURL == "" {
		logger.Warn("RABBITMQ_URL not set, events will be dropped")
		publisher = eventbus.NewNoopPublisher(logger)
	} else {
		publisher, err = eventbus.NewRabbitMQPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
	}
	defer publisher.Close()

	processorCfg := outbox.DefaultProcessorConfig()
	processorCfg.PollInterval = cfg.OutboxPollInterval
	processorCfg.BatchSize = cfg.OutboxBatchSize
	processorCfg.MaxRetries = cfg.OutboxMaxRetries
	processorCfg.RetentionDays = cfg.OutboxRetentionDays
	processorCfg.CleanupInterval = cfg.OutboxCleanupInterval

	processor := outbox.NewProcessor(outbox.NewPostgresRepository(pool), publisher,
		processorCfg, logger, metrics)

	logger.Info("starting outbox relay worker")
	processor.Run(ctx)
	logger.Info("outbox relay worker stopped")
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	logCfg := observability.DefaultLogConfig()
	if !cfg.IsDevelopment() {
		logCfg = observability.ProductionLogConfig()
	}
	logCfg.Level = observability.LogLevel(cfg.LogLevel)
	logCfg.ServiceVersion = version
	return observability.NewLogger(logCfg)
}
