package config

import (
	"fmt"
	"strings"
)

const (
	portEnvVar     = "PORT"
	appNameVar     = "APP_NAME"
	baseURLVar     = "BASE_URL"
	logLevelEnvVar = "LOG_LEVEL"
	envEnvVar      = "ENV"
)

type EnvVars struct {
	values fileValues
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.values.get(portEnvVar, "8080")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.values.get(appNameVar, "Content Studio")
}

// GetBaseURL returns the public base URL of the gateway (e.g., "https://studio.example.com")
func (e EnvVars) GetBaseURL() string {
	return e.values.get(baseURLVar, "http://localhost:8080")
}

func (e EnvVars) GetLogLevel() string {
	return e.values.get(logLevelEnvVar, "info")
}

func (e EnvVars) GetEnv() string {
	return e.values.get(envEnvVar, "DEV")
}
