// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logger

import (
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var ErrProviderClosed = errors.New("logger provider is shut down")

// Provider builds category loggers writing to the configured targets.
type Provider struct {
	root    hclog.InterceptLogger
	base    hclog.Logger
	closers []io.Closer

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

type providerOptions struct {
	stdout io.Writer
	stderr io.Writer
}

// ProviderOption customizes a Provider.
type ProviderOption func(*providerOptions)

// WithConsoleOutput replaces the process streams used by console targets.
func WithConsoleOutput(stdout, stderr io.Writer) ProviderOption {
	return func(o *providerOptions) {
		o.stdout = stdout
		o.stderr = stderr
	}
}

// NewProvider configures the backend from settings. The first target drives the primary logger
// while every other target is attached as a sink receiving the same entries.
func NewProvider(settings Settings, opts ...ProviderOption) (*Provider, error) {
	options := &providerOptions{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(options)
	}

	if err := settings.Normalize(); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	provider := &Provider{}
	global := LevelFromString(settings.MinLevel)
	for index, target := range settings.Targets {
		loggerOptions := &hclog.LoggerOptions{
			Level:           target.level(global).convertedLevel(),
			Output:          provider.output(target, options),
			JSONFormat:      target.Format == FormatJSON,
			TimeFormat:      target.Layout,
			TimeFn:          time.Now,
			IncludeLocation: settings.IncludeLocation,
			// skip the Logger level helpers
			AdditionalLocationOffset: 2,
			Color:           hclog.ColorOff,
		}

		if index == 0 {
			provider.root = hclog.NewInterceptLogger(loggerOptions)
			continue
		}
		provider.root.RegisterSink(hclog.NewSinkAdapter(loggerOptions))
	}

	provider.base = provider.root.With(propertyArgs(settings.Properties)...)
	return provider, nil
}

func (p *Provider) output(target Target, options *providerOptions) io.Writer {
	if target.Type == TargetFile {
		writer := &lumberjack.Logger{
			Filename:   target.FileName,
			MaxSize:    target.MaxSizeMB,
			MaxBackups: target.MaxBackups,
			MaxAge:     target.MaxAgeDays,
			Compress:   target.Compress,
		}
		p.closers = append(p.closers, writer)
		return writer
	}

	if target.Stream == StreamStdout {
		return options.stdout
	}
	return options.stderr
}

// Logger returns a logger named after category.
func (p *Provider) Logger(category string) (Logger, error) {
	if p.closed.Load() {
		return nil, ErrProviderClosed
	}
	return &instance{log: p.base.ResetNamed(category)}, nil
}

// Root returns the unnamed logger of the provider.
func (p *Provider) Root() Logger {
	return &instance{log: p.base}
}

// Shutdown flushes and closes the file targets. It is safe to call more than once.
func (p *Provider) Shutdown() error {
	p.closeOnce.Do(func() {
		p.closed.Store(true)

		errs := make([]error, 0, len(p.closers))
		for _, closer := range p.closers {
			errs = append(errs, closer.Close())
		}
		p.closeErr = errors.Join(errs...)
	})
	return p.closeErr
}
