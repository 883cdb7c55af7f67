package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/tlexii/overlord/internal/config"
	"github.com/tlexii/overlord/internal/frontend"
	"github.com/tlexii/overlord/internal/protocol"
	"github.com/tlexii/overlord/shared/logger"
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
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	// Build the routing table from configuration
	table, err := cfg.RoutingTable()
	if err != nil {
		return fmt.Errorf("invalid routing table: %w", err)
	}

	// Publish-only client for job requests
	publishClient, err := initRabbitMQ(&cfg.RabbitMQ, nil, "", appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ publisher: %w", err)
	}

	// Consumer client bound to every response key on a server-named queue
	consumeClient, err := initRabbitMQ(&cfg.RabbitMQ, table.ResponseKeys(), "", appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize RabbitMQ consumer: %w", err)
	}

	appLogger.Info("RabbitMQ connections established")

	// Start routing responses back to their destinations
	deliveries, err := consumeClient.Consume(cfg.App.Name)
	if err != nil {
		return fmt.Errorf("failed to start response consumer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deliverer := frontend.NewWebhookDeliverer(cfg.Webhook.URL, appLogger.Logger)
	responseRouter := frontend.NewResponseRouter(table, deliverer, appLogger.Logger)

	routerDone := make(chan struct{})
	go func() {
		defer close(routerDone)
		responseRouter.Run(ctx, deliveries)
	}()

	// Initialize the HTTP surface
	r := initRouter(cfg.App.Environment, table, publishClient, appLogger.Logger)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	// Cleanup function to close all resources
	cleanup := func() {
		cancel()
		<-routerDone
		if publishClient != nil {
			publishClient.Close()
		}
		if consumeClient != nil {
			consumeClient.Close()
		}
	}
	defer cleanup()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
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

// initRabbitMQ initializes a RabbitMQ client. With binding keys the client
// declares a queue bound under each of them; queueName may be empty for a
// server-named queue.
func initRabbitMQ(cfg *config.RabbitMQConfig, bindingKeys []string, queueName string, logger *slog.Logger) (*rabbitmq.Client, error) {
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
		QueueName:          queueName,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    queueName == "", // server-named response queues go away with us
		QueueExclusive:     queueName == "",
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

// initRouter initializes the Gin router with all routes and middleware
func initRouter(environment string, table *protocol.Table, publishClient *rabbitmq.Client, logger *slog.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	deps := &frontend.Dependencies{
		Logger:    logger,
		Publisher: frontend.NewPublisher(table, publishClient, logger),
	}

	return frontend.SetupRouter(deps)
}
