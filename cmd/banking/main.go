package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"banking/internal/app/auth"
	"banking/internal/app/ledger"
	"banking/internal/config"
	"banking/internal/handler/http/router"
	"banking/internal/infrastructure/database"
	kafka_infra "banking/internal/infrastructure/kafka"
	"banking/internal/outbox"
	"banking/internal/repository/accounts_repo"
	"banking/internal/repository/loans_repo"
	"banking/internal/repository/outbox_repo"
	"banking/internal/repository/payments_repo"
	"banking/internal/repository/refresh_tokens_repo"
	"banking/internal/token"
)

const topicSetupTimeout = 10 * time.Second

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogConfig.Level)
	if err != nil {
		return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}
	zapConfig := zap.NewProductionConfig()
	if cfg.LogConfig.Development {
		zapConfig = zap.NewDevelopmentConfig()
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zapConfig.EncoderConfig.TimeKey = "timestamp"
	return zapConfig.Build()
}

type flags struct {
	envFiles    []string
	migrateOnly bool
}

func parseFlags(args []string) (flags, error) {
	var f flags
	flagSet := pflag.NewFlagSet("banking", pflag.ContinueOnError)
	flagSet.StringSliceVar(&f.envFiles, "env-file", nil, "env file to load before reading the environment (repeatable, default .env)")
	flagSet.BoolVar(&f.migrateOnly, "migrate-only", false, "apply database migrations and exit")
	if err := flagSet.Parse(args); err != nil {
		return f, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return f, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return f, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(opts.envFiles...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	appLogger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create zap logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = appLogger.Sync() }()
	appLogger.Info("Banking service starting...", zap.String("db_driver", cfg.DBConfig.Driver))

	ctxMain, cancelMain := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancelMain()

	driver, err := database.ParseDriver(cfg.DBConfig.Driver)
	if err != nil {
		appLogger.Fatal("Unsupported database driver", zap.Error(err))
	}

	db, err := database.ConnectWithRetry(ctxMain, driver, cfg.GetDBConnectionString(),
		cfg.DBConfig.ConnectRetries, cfg.DBConfig.ConnectRetryDelay, appLogger.With(zap.String("component", "Database")))
	if err != nil {
		appLogger.Fatal("Could not connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			appLogger.Error("Error closing database connection", zap.Error(err))
		} else {
			appLogger.Info("Database connection closed.")
		}
	}()

	if err := database.Migrate(driver, cfg.GetDBMigrationConnectionString(), appLogger.With(zap.String("component", "Migrations"))); err != nil {
		appLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}
	if opts.migrateOnly {
		appLogger.Info("Migrations applied, exiting.")
		return
	}

	codec, err := token.NewCodec(cfg.TokenConfig.Secret)
	if err != nil {
		appLogger.Fatal("Failed to create token codec", zap.Error(err))
	}

	accountRepository := accounts_repo.NewAccountRepository(driver)
	refreshTokenRepository := refresh_tokens_repo.NewRefreshTokenRepository()
	paymentRepository := payments_repo.NewPaymentRepository()
	loanRepository := loans_repo.NewLoanRepository()
	outboxRepository := outbox_repo.NewOutboxRepository(driver)

	refreshStore := auth.NewRefreshTokenStore(
		db,
		refreshTokenRepository,
		codec,
		cfg.TokenConfig.RefreshTTL,
		appLogger.With(zap.String("component", "RefreshTokenStore")),
	)
	authService := auth.NewService(
		db,
		accountRepository,
		refreshStore,
		auth.NewBcryptHasher(0),
		codec,
		cfg.TokenConfig.AccessTTL,
		appLogger.With(zap.String("component", "AuthService")),
	)
	ledgerService := ledger.NewService(
		db,
		accountRepository,
		paymentRepository,
		loanRepository,
		outboxRepository,
		ledger.LoanPolicy{
			RepaymentMultiplier: cfg.LoanConfig.RepaymentMultiplier,
			RepaymentLimit:      cfg.LoanConfig.RepaymentLimit,
			AmountStep:          cfg.LoanConfig.AmountStep,
			PrincipalPerYear:    cfg.LoanConfig.PrincipalPerYear,
		},
		cfg.KafkaConfig.LedgerEventsTopic,
		appLogger.With(zap.String("component", "LedgerService")),
	)
	appLogger.Info("Services initialized.")

	var workers sync.WaitGroup
	if cfg.KafkaConfig.Enabled {
		brokers := cfg.GetKafkaBrokers()
		topicCtx, cancelTopics := context.WithTimeout(ctxMain, topicSetupTimeout)
		err := kafka_infra.EnsureTopics(topicCtx, brokers, []string{cfg.KafkaConfig.LedgerEventsTopic}, appLogger)
		cancelTopics()
		if err != nil {
			appLogger.Fatal("Failed to ensure Kafka topics", zap.Error(err))
		}

		kafkaProducer := kafka_infra.NewProducer(brokers, appLogger.With(zap.String("component", "KafkaProducer")))
		defer func() {
			if err := kafkaProducer.Close(); err != nil {
				appLogger.Error("Error closing Kafka producer", zap.Error(err))
			}
		}()

		outboxProcessor := outbox.NewProcessor(
			db,
			outboxRepository,
			kafkaProducer,
			outbox.ProcessorConfig{
				PollInterval: cfg.OutboxConfig.PollInterval,
				PollTimeout:  cfg.OutboxConfig.PollTimeout,
				BatchSize:    cfg.OutboxConfig.BatchSize,
				MaxAttempts:  cfg.OutboxConfig.MaxAttempts,
			},
			appLogger.With(zap.String("component", "OutboxProcessor")),
		)
		workers.Add(1)
		go func() {
			defer workers.Done()
			outboxProcessor.Run(ctxMain)
		}()
	} else {
		appLogger.Info("Kafka disabled, ledger events stay in the outbox table.")
	}

	handler := router.NewRouter(db, authService, ledgerService, codec, router.Options{
		CORSOrigins:    cfg.HTTPConfig.CORSOrigins,
		RequestTimeout: cfg.HTTPConfig.RequestTimeout,
	}, appLogger)

	httpServer := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadHeaderTimeout: cfg.HTTPConfig.ReadHeaderTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		appLogger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctxMain.Done():
		appLogger.Info("Shutting down application...")
	case err := <-serverErr:
		if err != nil {
			appLogger.Error("HTTP server failed", zap.Error(err))
		}
		cancelMain()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPConfig.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		appLogger.Info("HTTP server gracefully shut down.")
	}

	workers.Wait()
	appLogger.Info("Application gracefully shut down.")
}
