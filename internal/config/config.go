package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tlexii/overlord/internal/protocol"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Config represents the complete application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Logging  LoggingConfig  `yaml:"logging"`
	App      AppConfig      `yaml:"app"`
	Worker   WorkerConfig   `yaml:"worker"`
	Auth     AuthConfig     `yaml:"auth"`
	Armory   ArmoryConfig   `yaml:"armory"`
	Simc     SimcConfig     `yaml:"simc"`
	Mounts   MountsConfig   `yaml:"mounts"`
	Webhook  WebhookConfig  `yaml:"webhook"`
	News     NewsConfig     `yaml:"news"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string               `yaml:"host"`
	Port       int                  `yaml:"port"`
	User       string               `yaml:"user"`
	Password   string               `yaml:"password"`
	VHost      string               `yaml:"vhost"`
	Exchange   ExchangeConfig       `yaml:"exchange"`
	Queue      QueueConfig          `yaml:"queue"`
	Routes     map[string]RouteKeys `yaml:"routes"`
	Connection ConnectionConfig     `yaml:"connection"`
	Publish    PublishConfig        `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// RouteKeys is the pair of routing keys configured for one job type
type RouteKeys struct {
	RequestKey  string `yaml:"request_key"`
	ResponseKey string `yaml:"response_key"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level            string `yaml:"level"`
	Format           string `yaml:"format"`
	Output           string `yaml:"output"`
	EnableCaller     bool   `yaml:"enable_caller"`
	EnableStackTrace bool   `yaml:"enable_stack_trace"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	PrefetchCount   int           `yaml:"prefetch_count"`
	FailureMessage  string        `yaml:"failure_message"`
	ConsumerTag     string        `yaml:"consumer_tag"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AuthConfig holds OAuth client credentials and token storage settings
type AuthConfig struct {
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"client_secret"`
	TokenURL     string        `yaml:"token_url"`
	SafetyMargin time.Duration `yaml:"safety_margin"`
	Store        string        `yaml:"store"` // "file" or "db"
	TokenFile    string        `yaml:"token_file"`
}

// ArmoryConfig holds character API client settings
type ArmoryConfig struct {
	BaseURL           string  `yaml:"base_url"`
	Locale            string  `yaml:"locale"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
	DefaultRealm      string  `yaml:"default_realm"`
}

// SimcConfig holds SimulationCraft wrapper settings
type SimcConfig struct {
	SimcPath    string `yaml:"simc_path"`
	OutputPath  string `yaml:"output_path"`
	ProfilePath string `yaml:"profile_path"`
	URLPrefix   string `yaml:"url_prefix"`
}

// MountsConfig holds mount collection cache settings
type MountsConfig struct {
	CacheDir string `yaml:"cache_dir"`
}

// WebhookConfig holds the endpoint job responses are delivered to
type WebhookConfig struct {
	URL string `yaml:"url"`
}

// NewsConfig holds guild news collector settings
type NewsConfig struct {
	RunDir       string            `yaml:"run_dir"`
	PollInterval time.Duration     `yaml:"poll_interval"`
	Guilds       []NewsGuildConfig `yaml:"guilds"`
}

// NewsGuildConfig names one guild to poll
type NewsGuildConfig struct {
	Key        string `yaml:"key"`
	Realm      string `yaml:"realm"`
	Name       string `yaml:"name"`
	WebhookURL string `yaml:"webhook_url"`
}

// Load reads and parses the configuration file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// RoutingTable builds the protocol routing table from the configured routes
func (c *Config) RoutingTable() (*protocol.Table, error) {
	routes := make(map[string]protocol.Route, len(c.RabbitMQ.Routes))
	for jobType, keys := range c.RabbitMQ.Routes {
		routes[jobType] = protocol.Route{
			RequestKey:  keys.RequestKey,
			ResponseKey: keys.ResponseKey,
		}
	}
	return protocol.NewTable(routes)
}

// validateRabbitMQConfig checks the settings every service shares
func (c *Config) validateRabbitMQConfig() error {
	if c.RabbitMQ.Host == "" {
		return fmt.Errorf("rabbitmq host is required")
	}

	if c.RabbitMQ.Port < MinPort || c.RabbitMQ.Port > MaxPort {
		return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", c.RabbitMQ.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Exchange.Name == "" {
		return fmt.Errorf("rabbitmq exchange name is required")
	}

	if len(c.RabbitMQ.Routes) == 0 {
		return fmt.Errorf("at least one rabbitmq route is required")
	}

	return nil
}

// ValidateAPIConfig checks the configuration the API service needs
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.Webhook.URL == "" {
		return fmt.Errorf("webhook url is required")
	}

	return c.validateRabbitMQConfig()
}

// ValidateWorkerConfig checks the configuration the worker service needs
func (c *Config) ValidateWorkerConfig() error {
	if c.Worker.Concurrency <= 0 {
		return fmt.Errorf("worker concurrency must be greater than 0")
	}

	if c.Worker.PrefetchCount <= 0 {
		return fmt.Errorf("worker prefetch_count must be greater than 0")
	}

	// The broker only hands over what the pool can hold, so a slow job
	// type cannot pile deliveries onto a busy worker.
	if c.Worker.PrefetchCount > c.Worker.Concurrency {
		return fmt.Errorf("worker prefetch_count (%d) must not exceed concurrency (%d)",
			c.Worker.PrefetchCount, c.Worker.Concurrency)
	}

	if c.RabbitMQ.Queue.Name == "" {
		return fmt.Errorf("rabbitmq queue name is required")
	}

	if c.Auth.ClientID == "" || c.Auth.ClientSecret == "" {
		return fmt.Errorf("auth client_id and client_secret are required")
	}

	if c.Auth.TokenURL == "" {
		return fmt.Errorf("auth token_url is required")
	}

	switch c.Auth.Store {
	case "file":
		if c.Auth.TokenFile == "" {
			return fmt.Errorf("auth token_file is required for the file store")
		}
	case "db":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required for the db token store")
		}
		if c.Database.Port < MinPort || c.Database.Port > MaxPort {
			return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required for the db token store")
		}
	default:
		return fmt.Errorf("auth store must be \"file\" or \"db\", got %q", c.Auth.Store)
	}

	if c.Armory.BaseURL == "" {
		return fmt.Errorf("armory base_url is required")
	}

	if c.Simc.SimcPath == "" {
		return fmt.Errorf("simc simc_path is required")
	}

	return c.validateRabbitMQConfig()
}

// ValidateNewsConfig checks the configuration the news service needs
func (c *Config) ValidateNewsConfig() error {
	if c.News.RunDir == "" {
		return fmt.Errorf("news run_dir is required")
	}

	if c.News.PollInterval <= 0 {
		return fmt.Errorf("news poll_interval must be greater than 0")
	}

	if len(c.News.Guilds) == 0 {
		return fmt.Errorf("at least one news guild is required")
	}

	for _, guild := range c.News.Guilds {
		if guild.Key == "" || guild.Realm == "" || guild.Name == "" {
			return fmt.Errorf("news guilds need key, realm and name")
		}
		if guild.WebhookURL == "" {
			return fmt.Errorf("news guild %q has no webhook_url", guild.Key)
		}
	}

	if c.Auth.ClientID == "" || c.Auth.ClientSecret == "" {
		return fmt.Errorf("auth client_id and client_secret are required")
	}

	if c.Auth.TokenFile == "" {
		return fmt.Errorf("auth token_file is required")
	}

	if c.Armory.BaseURL == "" {
		return fmt.Errorf("armory base_url is required")
	}

	return nil
}
