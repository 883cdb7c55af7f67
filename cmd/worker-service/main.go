package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tlexii/overlord/internal/armory"
	"github.com/tlexii/overlord/internal/auth"
	"github.com/tlexii/overlord/internal/config"
	"github.com/tlexii/overlord/internal/dispatch"
	"github.com/tlexii/overlord/internal/jobs"
	"github.com/tlexii/overlord/shared/logger"
	"github.com/tlexii/overlord/shared/postgresql"
	"github.com/tlexii/overlord/shared/rabbitmq"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("WORKER_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/worker-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateWorkerConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting worker service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Build the routing table from configuration
	table, err := cfg.RoutingTable()
	if err != nil {
		return fmt.Errorf("invalid routing table: %w", err)
	}

	// Token store: file by default, database when configured
	var dbClient *postgresql.Client
	var tokenStore auth.Store
	switch cfg.Auth.Store {
	case "db":
		dbClient, err = initPostgreSQL(&cfg.Database, appLogger.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		tokenStore = auth.NewDBStore(dbClient)
		appLogger.Info("Database connection established")
	default:
		tokenStore = auth.NewFileStore(cfg.Auth.TokenFile)
	}

	creds := auth.NewCache(&auth.Config{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		TokenURL:     cfg.Auth.TokenURL,
		SafetyMargin: cfg.Auth.SafetyMargin,
		Store:        tokenStore,
		Logger:       appLogger.Logger,
	})

	armoryClient := armory.NewClient(&armory.Config{
		BaseURL:           cfg.Armory.BaseURL,
		Locale:            cfg.Armory.Locale,
		RequestsPerSecond: cfg.Armory.RequestsPerSecond,
		Burst:             cfg.Armory.Burst,
	}, creds, appLogger.Logger)

	// Initialize RabbitMQ client bound under every request key
	rabbitClient, err := initRabbitMQ(&cfg.RabbitMQ, table.RequestKeys(), appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ: %w", err)
	}

	appLogger.Info("RabbitMQ connection established")

	// Never prefetch more than the pool can execute
	if err := rabbitClient.Qos(cfg.Worker.PrefetchCount); err != nil {
		return fmt.Errorf("failed to set prefetch: %w", err)
	}

	pool := dispatch.NewPool(cfg.Worker.Concurrency, cfg.Worker.FailureMessage, appLogger.Logger)
	dispatcher := dispatch.NewDispatcher(table, pool, rabbitClient, appLogger.Logger)

	// Register job functions
	simcRunner := jobs.NewSimcRunner(&jobs.SimcConfig{
		SimcPath:     cfg.Simc.SimcPath,
		OutputPath:   cfg.Simc.OutputPath,
		ProfilePath:  cfg.Simc.ProfilePath,
		URLPrefix:    cfg.Simc.URLPrefix,
		DefaultRealm: cfg.Armory.DefaultRealm,
	}, armoryClient, appLogger.Logger)

	characterLookup := jobs.NewCharacterLookup(armoryClient, cfg.Armory.DefaultRealm, appLogger.Logger)
	mountsLookup := jobs.NewMountsLookup(armoryClient, cfg.Mounts.CacheDir, cfg.Armory.DefaultRealm, appLogger.Logger)

	handlers := map[string]dispatch.JobFunc{
		"simc":      simcRunner.Run,
		"character": characterLookup.Run,
		"mounts":    mountsLookup.Run,
	}
	for jobType, fn := range handlers {
		if _, err := table.Route(jobType); err != nil {
			appLogger.Warn("Job type not routed, skipping registration",
				slog.String("job_type", jobType),
			)
			continue
		}
		if err := dispatcher.Register(jobType, fn); err != nil {
			return fmt.Errorf("failed to register job %q: %w", jobType, err)
		}
	}

	// Start consuming
	deliveries, err := rabbitClient.Consume(cfg.Worker.ConsumerTag)
	if err != nil {
		return fmt.Errorf("failed to start consumer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool.Start(ctx)

	dispatcherDone := make(chan struct{})
	go func() {
		defer close(dispatcherDone)
		dispatcher.Run(ctx, deliveries)
	}()

	appLogger.Info("Worker service started successfully",
		slog.Int("concurrency", cfg.Worker.Concurrency),
		slog.Int("prefetch_count", cfg.Worker.PrefetchCount),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	appLogger.Info("Received signal, shutting down gracefully",
		slog.String("signal", sig.String()),
	)

	// Cancel context to stop the dispatcher and pool
	cancel()

	shutdownTimeout := cfg.Worker.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		<-dispatcherDone
		pool.Wait()
		close(done)
	}()

	select {
	case <-done:
		appLogger.Info("Worker stopped gracefully")
	case <-shutdownCtx.Done():
		appLogger.Warn("Worker shutdown timeout exceeded, forcing exit")
	}

	// Cleanup function to close all resources
	cleanup := func() {
		if dbClient != nil {
			dbClient.Close()
		}
		if rabbitClient != nil {
			rabbitClient.Close()
		}
	}
	cleanup()

	appLogger.Info("Worker service shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client with the durable request queue
// bound under every request routing key.
func initRabbitMQ(cfg *config.RabbitMQConfig, bindingKeys []string, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		BindingKeys:        bindingKeys,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}
