// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"

	"github.com/mia-platform/sharedlog/internal/config"
	"github.com/mia-platform/sharedlog/internal/server"
)

const (
	appSettingsSection = "AppSettings"
	environmentKey     = "environment"
	defaultEnvironment = "development"

	baseSettingsFile        = "appsettings.json"
	environmentSettingsFile = "appsettings.%s.json"
)

var (
	errInvalidOutput = errors.New("invalid output format")
	errEmptySection  = errors.New("section name cannot be empty")
	errUnexpectedArg = errors.New("unexpected arguments")

	// serverGetter returns the http server used by the serve command.
	// It can be overridden for testing purposes.
	serverGetter = server.NewServer
)

// processConfig holds the process settings read from the environment.
type processConfig struct {
	Environment    string `env:"SHAREDLOG_ENVIRONMENT"`
	AppEnvironment string `env:"APP_ENV"`
}

// handleError will do custom print error handling based on the type of error received.
// it will return nil if the command must return 0 exit code, otherwise it will return
// the original error.
func handleError(cmd *cobra.Command, err error) error {
	switch {
	case errors.Is(err, errInvalidOutput), errors.Is(err, errEmptySection), errors.Is(err, errUnexpectedArg):
		cmd.PrintErrln(err)
		_ = cmd.Usage() // do not check error as we cannot do much about it
		return err
	default:
		cmd.PrintErrln(err)
		return err
	}
}

// unwrappedError returns the unwrapped error if available, otherwise it returns the original error.
func unwrappedError(err error) error {
	if unwrapped := errors.Unwrap(err); unwrapped != nil {
		return unwrapped
	}

	return err
}

// noArgs rejects any positional argument.
func noArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return handleError(cmd, fmt.Errorf("%w: %s", errUnexpectedArg, strings.Join(args, " ")))
	}
	return nil
}

// collectPaths cleans the provided paths and checks that every one of them is a readable file.
func collectPaths(paths []string) ([]string, error) {
	collected := make([]string, 0, len(paths))
	for _, p := range paths {
		cleanedPath := filepath.Clean(p)
		info, err := os.Stat(cleanedPath)
		if err != nil {
			return nil, fmt.Errorf("settings file %q: %w", cleanedPath, unwrappedError(err))
		}
		if info.IsDir() {
			return nil, fmt.Errorf("settings file %q: is a directory", cleanedPath)
		}
		collected = append(collected, cleanedPath)
	}

	return collected, nil
}

// existingFile reports whether path points to a regular file.
func existingFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// resolveEnvironment returns the lowercased environment name. The value stored in the
// AppSettings section of the override files wins over the environment variables.
func resolveEnvironment(paths []string) (string, error) {
	appSettings, err := config.MergeFiles(appSettingsSection, config.NewObject(), paths...)
	if err != nil {
		return "", err
	}

	if value, ok := lookupCaseInsensitive(appSettings, environmentKey); ok {
		if name, ok := value.AsString(); ok && name != "" {
			return strings.ToLower(name), nil
		}
	}

	processCfg := processConfig{}
	if err := env.Parse(&processCfg); err != nil {
		return "", err
	}

	switch {
	case processCfg.Environment != "":
		return strings.ToLower(processCfg.Environment), nil
	case processCfg.AppEnvironment != "":
		return strings.ToLower(processCfg.AppEnvironment), nil
	default:
		return defaultEnvironment, nil
	}
}

// defaultSettingsPaths returns the conventional override files found in dir: the base file
// and the one of the environment, when they exist.
func defaultSettingsPaths(dir string) ([]string, string, error) {
	paths := make([]string, 0, 2)
	if base := filepath.Join(dir, baseSettingsFile); existingFile(base) {
		paths = append(paths, base)
	}

	environment, err := resolveEnvironment(paths)
	if err != nil {
		return nil, "", err
	}

	if specific := filepath.Join(dir, fmt.Sprintf(environmentSettingsFile, environment)); existingFile(specific) {
		paths = append(paths, specific)
	}

	return paths, environment, nil
}

func lookupCaseInsensitive(node *config.Node, key string) (*config.Node, bool) {
	for _, candidate := range node.Keys() {
		if strings.EqualFold(candidate, key) {
			return node.Get(candidate)
		}
	}
	return nil, false
}
