package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfigPaths lists the config files searched, first match wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

// envMappings maps environment variables to koanf keys.
var envMappings = map[string]string{
	"server_port":              "server.port",
	"shutdown_timeout":         "server.shutdown_timeout",
	"allowed_origins":          "chat.allowed_origins",
	"max_message_size":         "chat.max_message_size",
	"chat_send_buffer_size":    "chat.send_buffer_size",
	"chat_event_queue_size":    "chat.event_queue_size",
	"chat_timestamp_format":    "chat.timestamp_format",
	"chat_require_token":       "chat.require_token",
	"jwt_secret":               "security.jwt_secret",
	"token_ttl":                "security.token_ttl",
	"bcrypt_cost":              "security.bcrypt_cost",
	"admin_username":           "security.admin_username",
	"admin_password":           "security.admin_password",
	"cors_origins":             "security.cors_origins",
	"auth_rate_limit":          "security.auth_rate_limit",
	"auth_rate_window":         "security.auth_rate_window",
	"auth_rate_limit_disabled": "security.auth_rate_limit_disabled",
	"database_path":            "database.path",
	"seed_samples":             "database.seed_samples",
	"log_level":                "logging.level",
	"log_format":               "logging.format",
	"log_caller":               "logging.caller",
}

// sliceConfigPaths are keys whose env values are comma separated lists.
var sliceConfigPaths = []string{
	"chat.allowed_origins",
	"security.cors_origins",
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in that order of precedence.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := splitSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransform returns "" for variables that are not configuration, which
// makes koanf skip them.
func envTransform(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

func splitSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		raw, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := trimAll(strings.Split(raw, ","))
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}
