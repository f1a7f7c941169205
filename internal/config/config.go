// Package config provides configuration loading and validation for the Sv2
// server.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Channel  ChannelConfig  `yaml:"channel"`
	Noise    NoiseConfig    `yaml:"noise"`
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	Logging  LoggingConfig  `yaml:"logging"`
	Template TemplateConfig `yaml:"template"`
}

// ServerConfig holds TCP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	MaxConnections int           `yaml:"max_connections"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	TLS            TLSConfig     `yaml:"tls"`
	Metrics        MetricsConfig `yaml:"metrics"`
}

// TLSConfig holds TLS settings for any plaintext fallback listener; the
// Noise-encrypted transport does not use these.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// ChannelConfig holds the defaults a newly opened Standard Channel is
// configured with.
type ChannelConfig struct {
	ExpectedSharesPerMinute float64       `yaml:"expected_shares_per_minute"`
	InitialNominalHashrate  float64       `yaml:"initial_nominal_hashrate"`
	DefaultRequestedMaxTarget string      `yaml:"default_requested_max_target_hex"`
	ShareBatchSize          uint64        `yaml:"share_batch_size"`
	ExtranoncePrefixSize    int           `yaml:"extranonce_prefix_size"`
	JobTimeout              time.Duration `yaml:"job_timeout"`
}

// NoiseConfig holds the responder's authority identity and certificate
// policy for the Noise NX handshake.
type NoiseConfig struct {
	AuthorityPublicKeyHex  string        `yaml:"authority_public_key_hex"`
	AuthorityPrivateKeyHex string        `yaml:"authority_private_key_hex"`
	CertValidity           time.Duration `yaml:"cert_validity"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	PoolSize  int           `yaml:"pool_size"`
	KeyPrefix string        `yaml:"key_prefix"`
	ShareTTL  time.Duration `yaml:"share_ttl"`
	ChannelTTL time.Duration `yaml:"channel_ttl"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	Database         string        `yaml:"database"`
	User             string        `yaml:"user"`
	Password         string        `yaml:"password"`
	MaxConnections   int           `yaml:"max_connections"`
	MinConnections   int           `yaml:"min_connections"`
	ConnectTimeout   time.Duration `yaml:"connect_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// TemplateConfig holds the upstream template-provider connection settings
// (e.g. a Job Declaration Client or a node's block-template RPC feed).
type TemplateConfig struct {
	RPCURL       string        `yaml:"rpc_url"`
	RPCUser      string        `yaml:"rpc_user"`
	RPCPassword  string        `yaml:"rpc_password"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 34254
	}
	if cfg.Server.MaxConnections == 0 {
		cfg.Server.MaxConnections = 10000
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 5 * time.Minute
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = time.Minute
	}
	if cfg.Server.Metrics.Port == 0 {
		cfg.Server.Metrics.Port = 9090
	}

	if cfg.Channel.ExpectedSharesPerMinute == 0 {
		cfg.Channel.ExpectedSharesPerMinute = 10
	}
	if cfg.Channel.InitialNominalHashrate == 0 {
		cfg.Channel.InitialNominalHashrate = 1_000_000_000_000 // 1 TH/s
	}
	if cfg.Channel.ShareBatchSize == 0 {
		cfg.Channel.ShareBatchSize = 50
	}
	if cfg.Channel.ExtranoncePrefixSize == 0 {
		cfg.Channel.ExtranoncePrefixSize = 8
	}
	if cfg.Channel.JobTimeout == 0 {
		cfg.Channel.JobTimeout = 2 * time.Minute
	}

	if cfg.Noise.CertValidity == 0 {
		cfg.Noise.CertValidity = 30 * 24 * time.Hour
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 100
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = "sv2:"
	}
	if cfg.Redis.ShareTTL == 0 {
		cfg.Redis.ShareTTL = time.Hour
	}
	if cfg.Redis.ChannelTTL == 0 {
		cfg.Redis.ChannelTTL = 5 * time.Minute
	}

	if cfg.Postgres.Host == "" {
		cfg.Postgres.Host = "localhost"
	}
	if cfg.Postgres.Port == 0 {
		cfg.Postgres.Port = 5432
	}
	if cfg.Postgres.MaxConnections == 0 {
		cfg.Postgres.MaxConnections = 50
	}
	if cfg.Postgres.MinConnections == 0 {
		cfg.Postgres.MinConnections = 10
	}
	if cfg.Postgres.ConnectTimeout == 0 {
		cfg.Postgres.ConnectTimeout = 10 * time.Second
	}
	if cfg.Postgres.StatementTimeout == 0 {
		cfg.Postgres.StatementTimeout = 30 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Template.PollInterval == 0 {
		cfg.Template.PollInterval = time.Second
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", cfg.Server.Port)
	}

	if cfg.Server.TLS.Enabled {
		if cfg.Server.TLS.CertFile == "" {
			return fmt.Errorf("TLS enabled but cert_file not specified")
		}
		if cfg.Server.TLS.KeyFile == "" {
			return fmt.Errorf("TLS enabled but key_file not specified")
		}
	}

	if cfg.Channel.ExtranoncePrefixSize < 1 || cfg.Channel.ExtranoncePrefixSize > 32 {
		return fmt.Errorf("invalid extranonce_prefix_size: %d", cfg.Channel.ExtranoncePrefixSize)
	}

	if cfg.Channel.ExpectedSharesPerMinute <= 0 {
		return fmt.Errorf("expected_shares_per_minute must be positive")
	}

	if cfg.Noise.AuthorityPublicKeyHex == "" || cfg.Noise.AuthorityPrivateKeyHex == "" {
		return fmt.Errorf("noise authority key pair must be configured")
	}

	return nil
}
