package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Escalation EscalationConfig `mapstructure:"escalation"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Workday    WorkdayConfig    `mapstructure:"workday"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// RateLimitConfig holds rate limiter configuration
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
}

// EscalationConfig holds priority escalation configuration
type EscalationConfig struct {
	// Window is how far ahead of the deadline escalation triggers
	Window time.Duration `mapstructure:"window"`

	// SweepInterval is how often the sweep runs
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// AuditConfig holds audit log configuration
type AuditConfig struct {
	RetentionDays int           `mapstructure:"retention_days"`
	PurgeInterval time.Duration `mapstructure:"purge_interval"`
}

// WorkdayConfig bounds when developers may update non-critical tasks
type WorkdayConfig struct {
	StartHour int `mapstructure:"start_hour"`
	EndHour   int `mapstructure:"end_hour"`
}

// Load loads configuration from file and environment variables. A .env file
// next to the working directory is applied to the environment first so viper's
// env bindings see it.
func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := gotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env: %w", err)
		}
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	viper.SetDefault("database.path", "data/tasks.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")

	viper.SetDefault("rate_limit.window_seconds", 3600)

	viper.SetDefault("escalation.window", 24*time.Hour)
	viper.SetDefault("escalation.sweep_interval", 5*time.Minute)

	viper.SetDefault("audit.retention_days", 30)
	viper.SetDefault("audit.purge_interval", 12*time.Hour)

	viper.SetDefault("workday.start_hour", 9)
	viper.SetDefault("workday.end_hour", 18)
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("logger.level", "LOG_LEVEL")
}

// Validate checks configuration consistency
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.RateLimit.WindowSeconds <= 0 {
		return fmt.Errorf("rate limit window must be positive")
	}
	if c.Escalation.Window <= 0 {
		return fmt.Errorf("escalation window must be positive")
	}
	if c.Workday.StartHour < 0 || c.Workday.EndHour > 24 || c.Workday.StartHour >= c.Workday.EndHour {
		return fmt.Errorf("invalid workday hours: %d-%d", c.Workday.StartHour, c.Workday.EndHour)
	}
	return nil
}
