// Package config defines runtime defaults, validation, and layered loading
// (defaults, YAML file, environment) for the game portal server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Chat     ChatConfig     `koanf:"chat"`
	Security SecurityConfig `koanf:"security"`
	Database DatabaseConfig `koanf:"database"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            string        `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ChatConfig holds settings for the real-time chat gateway and engine.
type ChatConfig struct {
	AllowedOrigins  []string `koanf:"allowed_origins"`
	MaxMessageSize  int64    `koanf:"max_message_size"`
	SendBufferSize  int      `koanf:"send_buffer_size"`
	EventQueueSize  int      `koanf:"event_queue_size"`
	TimestampFormat string   `koanf:"timestamp_format"`
	// RequireToken rejects WebSocket upgrades that do not carry a valid
	// bearer token. The join payload identity is still used as supplied.
	RequireToken bool `koanf:"require_token"`
}

// SecurityConfig holds token and account settings.
type SecurityConfig struct {
	JWTSecret        string        `koanf:"jwt_secret"`
	TokenTTL         time.Duration `koanf:"token_ttl"`
	BcryptCost       int           `koanf:"bcrypt_cost"`
	AdminUsername    string        `koanf:"admin_username"`
	AdminPassword    string        `koanf:"admin_password"`
	CORSOrigins      []string      `koanf:"cors_origins"`
	AuthRateLimit    int           `koanf:"auth_rate_limit"`
	AuthRateWindow   time.Duration `koanf:"auth_rate_window"`
	AuthRateLimitOff bool          `koanf:"auth_rate_limit_disabled"`
}

// DatabaseConfig holds catalog storage settings.
type DatabaseConfig struct {
	Path        string `koanf:"path"`
	SeedSamples bool   `koanf:"seed_samples"`
}

// LoggingConfig mirrors logging.Config in a koanf-friendly shape.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

const minJWTSecretLength = 32

// Defaults returns a Config populated with default values for all settings.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Chat: ChatConfig{
			AllowedOrigins: []string{
				"http://localhost:8080",
			},
			MaxMessageSize:  4096,
			SendBufferSize:  256,
			EventQueueSize:  1024,
			TimestampFormat: "15:04:05",
		},
		Security: SecurityConfig{
			JWTSecret:      "development_secret_change_me_before_deploying",
			TokenTTL:       24 * time.Hour,
			BcryptCost:     12,
			AdminUsername:  "admin",
			AdminPassword:  "admin123",
			CORSOrigins:    []string{"*"},
			AuthRateLimit:  20,
			AuthRateWindow: time.Minute,
		},
		Database: DatabaseConfig{
			Path:        "gameportal.db",
			SeedSamples: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate fills in zero values with defaults and rejects settings the
// server cannot run with.
func (c *Config) Validate() error {
	d := Defaults()

	if strings.TrimSpace(c.Server.Port) == "" {
		c.Server.Port = d.Server.Port
	}
	if !strings.Contains(c.Server.Port, ":") {
		c.Server.Port = ":" + c.Server.Port
	}
	if c.Server.ReadTimeout <= 0 {
		c.Server.ReadTimeout = d.Server.ReadTimeout
	}
	if c.Server.WriteTimeout <= 0 {
		c.Server.WriteTimeout = d.Server.WriteTimeout
	}
	if c.Server.IdleTimeout <= 0 {
		c.Server.IdleTimeout = d.Server.IdleTimeout
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = d.Server.ShutdownTimeout
	}

	if c.Chat.MaxMessageSize <= 0 {
		c.Chat.MaxMessageSize = d.Chat.MaxMessageSize
	}
	if c.Chat.SendBufferSize <= 0 {
		c.Chat.SendBufferSize = d.Chat.SendBufferSize
	}
	if c.Chat.EventQueueSize <= 0 {
		c.Chat.EventQueueSize = d.Chat.EventQueueSize
	}
	if c.Chat.TimestampFormat == "" {
		c.Chat.TimestampFormat = d.Chat.TimestampFormat
	}
	c.Chat.AllowedOrigins = trimAll(c.Chat.AllowedOrigins)

	if c.Security.TokenTTL <= 0 {
		c.Security.TokenTTL = d.Security.TokenTTL
	}
	if c.Security.BcryptCost <= 0 {
		c.Security.BcryptCost = d.Security.BcryptCost
	}
	if c.Security.AuthRateLimit <= 0 {
		c.Security.AuthRateLimit = d.Security.AuthRateLimit
	}
	if c.Security.AuthRateWindow <= 0 {
		c.Security.AuthRateWindow = d.Security.AuthRateWindow
	}

	var errs []error
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		errs = append(errs, fmt.Errorf("security.jwt_secret must be at least %d characters", minJWTSecretLength))
	}
	if strings.TrimSpace(c.Database.Path) == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	return errors.Join(errs...)
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
