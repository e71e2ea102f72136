package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config interface {
	EnvConfig
	CorsConfig
	AuthConfig
	SessionConfig
	DatabaseConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetLogLevel() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Auth
	Session
	Database
}

// New returns a Config backed by environment variables only.
func New() Config {
	return newMainConfig(nil)
}

// Load reads a YAML file of settings and returns a Config in which environment
// variables still take precedence over the file. Keys are the lower-cased
// environment variable names, e.g. `session_provider: oidc`.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &raw); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	values := make(fileValues, len(raw))
	for k, v := range raw {
		if v == nil {
			continue
		}
		values[strings.ToLower(k)] = fmt.Sprint(v)
	}
	return newMainConfig(values), nil
}

func newMainConfig(values fileValues) mainConfig {
	return mainConfig{
		EnvVars:  EnvVars{values: values},
		Cors:     Cors{values: values},
		Auth:     Auth{values: values},
		Session:  Session{values: values},
		Database: Database{values: values},
	}
}

// fileValues holds settings loaded from a config file, keyed by lower-cased
// environment variable name.
type fileValues map[string]string

func (f fileValues) get(envVar, defaultValue string) string {
	if value := os.Getenv(envVar); value != "" {
		return value
	}
	if value, ok := f[strings.ToLower(envVar)]; ok && value != "" {
		return value
	}
	return defaultValue
}
