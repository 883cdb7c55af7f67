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
	"github.com/tlexii/overlord/internal/news"
	"github.com/tlexii/overlord/shared/logger"
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
	defaultConfigPath := os.Getenv("NEWS_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/news-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateNewsConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting news service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
	)

	creds := auth.NewCache(&auth.Config{
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		TokenURL:     cfg.Auth.TokenURL,
		SafetyMargin: cfg.Auth.SafetyMargin,
		Store:        auth.NewFileStore(cfg.Auth.TokenFile),
		Logger:       appLogger.Logger,
	})

	armoryClient := armory.NewClient(&armory.Config{
		BaseURL:           cfg.Armory.BaseURL,
		Locale:            cfg.Armory.Locale,
		RequestsPerSecond: cfg.Armory.RequestsPerSecond,
		Burst:             cfg.Armory.Burst,
	}, creds, appLogger.Logger)

	guilds := make([]news.GuildConfig, len(cfg.News.Guilds))
	for i, guild := range cfg.News.Guilds {
		guilds[i] = news.GuildConfig{
			Key:        guild.Key,
			Realm:      guild.Realm,
			Name:       guild.Name,
			WebhookURL: guild.WebhookURL,
		}
	}

	poster := news.NewWebhookPoster(appLogger.Logger)
	collector := news.NewCollector(armoryClient, poster, guilds, cfg.News.RunDir, appLogger.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		collector.Run(ctx, cfg.News.PollInterval)
	}()

	appLogger.Info("News service started successfully",
		slog.Int("guilds", len(guilds)),
		slog.Duration("poll_interval", cfg.News.PollInterval),
	)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	appLogger.Info("Received signal, shutting down gracefully",
		slog.String("signal", sig.String()),
	)

	cancel()
	<-done

	appLogger.Info("News service shutdown complete")
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
