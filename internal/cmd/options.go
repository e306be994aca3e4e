// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/mia-platform/sharedlog/internal/config"
	"github.com/mia-platform/sharedlog/internal/info"
	"github.com/mia-platform/sharedlog/internal/logger"
	"github.com/mia-platform/sharedlog/internal/registry"
	"github.com/mia-platform/sharedlog/internal/server"
	"github.com/mia-platform/sharedlog/internal/shutdown"
	"github.com/mia-platform/sharedlog/internal/trap"
)

const (
	programLoggerName = "sharedlog:program"
	requestLoggerName = "sharedlog:request"

	environmentProperty = "env"
	versionProperty     = "version"
)

// serveOptions configures the sample application started by the serve command.
type serveOptions struct {
	configPaths []string
	environment string
	artifactDir string
	section     string

	stdout io.Writer
	stderr io.Writer

	serverGetter func(context.Context, ...server.Option) (server.Server, error)
	// stopSignals is closed to stop the application without waiting for a signal, used in tests.
	stopSignals <-chan struct{}

	lock sync.Mutex
}

// validate checks the configured values and reports invalid setups.
func (o *serveOptions) validate() error {
	if o.section == "" {
		return errEmptySection
	}
	return nil
}

// execute configures the logging backend from the merged settings and serves the sample
// application until the process receives an interrupt.
func (o *serveOptions) execute(ctx context.Context) error {
	if !o.lock.TryLock() {
		return nil
	}
	defer o.lock.Unlock()

	hooks := &shutdown.Hooks{}
	defer hooks.Run()

	logger.FromContext(ctx).Debug("configuring logging", "files", o.configPaths, "environment", o.environment)

	reg, artifact, err := o.configureLogging(ctx, hooks)
	if err != nil {
		return err
	}

	metrics := prometheus.NewRegistry()
	tr, err := trap.New(reg, trap.WithMetrics(metrics))
	if err != nil {
		return err
	}
	defer tr.Recover()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if o.stopSignals != nil {
		go func() {
			select {
			case <-o.stopSignals:
				stop()
			case <-ctx.Done():
			}
		}()
	}

	supervisor := make(chan error, 1)
	go func() {
		supervisor <- tr.Run(ctx)
	}()

	programLog, err := reg.Logger(programLoggerName)
	if err != nil {
		return err
	}
	programLog.Info("logging configured", "environment", o.environment)
	programLog.Debug("merged settings written", "path", artifact, "sources", o.configPaths)
	logger.WithProperty(programLog, versionProperty, info.Version).Info("sharedlog started")

	requestLog, err := reg.Logger(requestLoggerName)
	if err != nil {
		return err
	}

	serverCtx := registry.WithContext(logger.WithContext(ctx, requestLog), reg)
	srv, err := o.serverGetter(serverCtx, server.WithTrap(tr), server.WithMetrics(metrics))
	if err != nil {
		return err
	}

	sample := &helloWorld{registry: reg, trap: tr}
	srv.AddRoute(http.MethodGet, helloWorldPath, sample.getHello)
	srv.AddRoute(http.MethodGet, backgroundFailurePath, sample.getBackgroundFailure)

	srv.StartAsync(serverCtx)
	<-ctx.Done()

	programLog.Info("shutting down")
	stopErr := srv.Stop()
	if supervisorErr := <-supervisor; supervisorErr != nil {
		return supervisorErr
	}
	return stopErr
}

// configureLogging merges the settings files, writes the merged artifact and builds the logging
// backend from it, configuring the registry found in ctx. Cleanup of both is registered on hooks.
func (o *serveOptions) configureLogging(ctx context.Context, hooks *shutdown.Hooks) (*registry.Registry, string, error) {
	defaults, err := config.LoadDefault(o.section)
	if err != nil {
		return nil, "", err
	}

	merged, err := config.MergeFiles(o.section, defaults, o.configPaths...)
	if err != nil {
		return nil, "", err
	}

	artifact, err := config.WriteArtifact(o.artifactDir, o.section, merged)
	if err != nil {
		return nil, "", err
	}
	hooks.OnExit(func() error { return config.RemoveArtifact(artifact) })

	settings, err := logger.SettingsFromFile(artifact, o.section)
	if err != nil {
		return nil, "", err
	}
	if settings.Properties == nil {
		settings.Properties = make(map[string]any)
	}
	settings.Properties[environmentProperty] = o.environment

	provider, err := logger.NewProvider(settings, logger.WithConsoleOutput(o.stdout, o.stderr))
	if err != nil {
		return nil, "", err
	}
	hooks.OnExit(provider.Shutdown)

	reg := registry.FromContext(ctx)
	reg.Configure(provider)
	return reg, artifact, nil
}

// mergeOptions configures the merge command.
type mergeOptions struct {
	defaultPath string
	configPaths []string
	section     string
	output      string

	writer io.Writer
}

// validate checks the configured values and reports invalid setups.
func (o *mergeOptions) validate() error {
	if o.section == "" {
		return errEmptySection
	}

	switch o.output {
	case outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("%w: %s", errInvalidOutput, o.output)
	}
}

// execute prints the settings obtained merging the configured files over the base ones.
func (o *mergeOptions) execute() error {
	base, err := o.base()
	if err != nil {
		return err
	}

	merged, err := config.MergeFiles(o.section, base, o.configPaths...)
	if err != nil {
		return err
	}

	document := config.NewObject()
	document.Set(o.section, merged)

	var data []byte
	switch o.output {
	case outputYAML:
		data, err = yaml.Marshal(document)
	default:
		data, err = json.MarshalIndent(document, "", "  ")
	}
	if err != nil {
		return err
	}

	if _, err := o.writer.Write(data); err != nil {
		return err
	}
	if o.output == outputJSON {
		_, err = fmt.Fprintln(o.writer)
	}
	return err
}

func (o *mergeOptions) base() (*config.Node, error) {
	if o.defaultPath == "" {
		return config.LoadDefault(o.section)
	}
	return config.LoadFile(o.defaultPath, o.section)
}
