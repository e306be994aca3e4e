// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package server

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

var (
	ErrEnvVariablesNotValid = errors.New("environment variables not valid")
)

// Config holds the http server settings read from the environment.
type Config struct {
	DisableStartupMessage bool          `env:"DISABLE_STARTUP_MESSAGE" envDefault:"true"`
	HTTPHost              string        `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	HTTPPort              int           `env:"HTTP_PORT" envDefault:"3000"`
	ReadTimeout           time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout       time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

func LoadServerConfig() (*Config, error) {
	envVars, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrEnvVariablesNotValid, err.Error())
	}

	if err := validateEnvironmentVariables(&envVars); err != nil {
		return nil, err
	}
	return &envVars, nil
}

func validateEnvironmentVariables(envVars *Config) error {
	envError := make([]string, 0)

	if envVars.HTTPPort < 1 || envVars.HTTPPort > 65535 {
		envError = append(envError, "HTTP_PORT is out of valid range (1-65535)")
	}
	if envVars.ReadTimeout < 0 {
		envError = append(envError, "HTTP_READ_TIMEOUT cannot be negative")
	}
	if envVars.ShutdownTimeout <= 0 {
		envError = append(envError, "HTTP_SHUTDOWN_TIMEOUT must be positive")
	}

	if len(envError) > 0 {
		return fmt.Errorf("%w: %s", ErrEnvVariablesNotValid, strings.Join(envError, ", "))
	}
	return nil
}
