package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				// Verify some key fields are populated
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "overlord_exchange", cfg.RabbitMQ.Exchange.Name)
				assert.Equal(t, "overlord_requests", cfg.RabbitMQ.Queue.Name)
				assert.Equal(t, "simc.request", cfg.RabbitMQ.Routes["simc"].RequestKey)
				assert.Equal(t, 3, cfg.Worker.Concurrency)
				assert.Equal(t, "Server error - contact Vengel", cfg.Worker.FailureMessage)
				assert.Equal(t, "file", cfg.Auth.Store)
				assert.Equal(t, 30*time.Second, cfg.Auth.SafetyMargin)
				assert.Equal(t, "khazgoroth", cfg.Armory.DefaultRealm)
				assert.Equal(t, 15*time.Minute, cfg.News.PollInterval)
				require.Len(t, cfg.News.Guilds, 1)
				assert.Equal(t, "fellowship", cfg.News.Guilds[0].Key)
			}
		})
	}
}

func validConfig(t *testing.T) *Config {
	t.Helper()

	cfg, err := Load("testdata/valid_config.yaml")
	require.NoError(t, err)
	return cfg
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:      "invalid server port",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			errString: "invalid server port",
		},
		{
			name:      "missing webhook url",
			mutate:    func(c *Config) { c.Webhook.URL = "" },
			errString: "webhook url is required",
		},
		{
			name:      "empty rabbitmq host",
			mutate:    func(c *Config) { c.RabbitMQ.Host = "" },
			errString: "rabbitmq host is required",
		},
		{
			name:      "empty exchange name",
			mutate:    func(c *Config) { c.RabbitMQ.Exchange.Name = "" },
			errString: "rabbitmq exchange name is required",
		},
		{
			name:      "no routes",
			mutate:    func(c *Config) { c.RabbitMQ.Routes = nil },
			errString: "at least one rabbitmq route is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()
			if tt.errString == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			}
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:      "zero concurrency",
			mutate:    func(c *Config) { c.Worker.Concurrency = 0 },
			errString: "concurrency must be greater than 0",
		},
		{
			name:      "zero prefetch",
			mutate:    func(c *Config) { c.Worker.PrefetchCount = 0 },
			errString: "prefetch_count must be greater than 0",
		},
		{
			name: "prefetch above concurrency",
			mutate: func(c *Config) {
				c.Worker.Concurrency = 3
				c.Worker.PrefetchCount = 5
			},
			errString: "must not exceed concurrency",
		},
		{
			name:      "empty queue name",
			mutate:    func(c *Config) { c.RabbitMQ.Queue.Name = "" },
			errString: "rabbitmq queue name is required",
		},
		{
			name:      "missing client credentials",
			mutate:    func(c *Config) { c.Auth.ClientSecret = "" },
			errString: "client_id and client_secret are required",
		},
		{
			name:      "unknown token store",
			mutate:    func(c *Config) { c.Auth.Store = "redis" },
			errString: `auth store must be "file" or "db"`,
		},
		{
			name: "file store needs token file",
			mutate: func(c *Config) {
				c.Auth.Store = "file"
				c.Auth.TokenFile = ""
			},
			errString: "token_file is required",
		},
		{
			name: "db store needs database",
			mutate: func(c *Config) {
				c.Auth.Store = "db"
				c.Database.Host = ""
			},
			errString: "database host is required",
		},
		{
			name:      "missing simc path",
			mutate:    func(c *Config) { c.Simc.SimcPath = "" },
			errString: "simc_path is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()
			if tt.errString == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			}
		})
	}
}

func TestConfig_ValidateNewsConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:      "missing run dir",
			mutate:    func(c *Config) { c.News.RunDir = "" },
			errString: "run_dir is required",
		},
		{
			name:      "zero poll interval",
			mutate:    func(c *Config) { c.News.PollInterval = 0 },
			errString: "poll_interval must be greater than 0",
		},
		{
			name:      "no guilds",
			mutate:    func(c *Config) { c.News.Guilds = nil },
			errString: "at least one news guild is required",
		},
		{
			name:      "guild without webhook",
			mutate:    func(c *Config) { c.News.Guilds[0].WebhookURL = "" },
			errString: "has no webhook_url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)

			err := cfg.ValidateNewsConfig()
			if tt.errString == "" {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			}
		})
	}
}

func TestConfig_RoutingTable(t *testing.T) {
	cfg := validConfig(t)

	table, err := cfg.RoutingTable()
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"simc", "character", "mounts"}, table.JobTypes())

	route, err := table.Route("simc")
	require.NoError(t, err)
	assert.Equal(t, "simc.request", route.RequestKey)
	assert.Equal(t, "simc.response", route.ResponseKey)
}

func TestConfig_RoutingTable_DuplicateKeys(t *testing.T) {
	cfg := validConfig(t)
	cfg.RabbitMQ.Routes["duplicate"] = RouteKeys{
		RequestKey:  "simc.request",
		ResponseKey: "duplicate.response",
	}

	_, err := cfg.RoutingTable()
	require.Error(t, err)
}
