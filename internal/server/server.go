// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mia-platform/sharedlog/internal/info"
	"github.com/mia-platform/sharedlog/internal/logger"
	"github.com/mia-platform/sharedlog/internal/trap"
)

const (
	loggerName = "sharedlog:server"
)

// Handler serves a request and returns the plain text response body.
type Handler func(ctx context.Context, headers http.Header, body []byte) (string, error)

type Server interface {
	AddRoute(method string, path string, handler Handler)
	Start() error
	Stop() error
	StartAsync(ctx context.Context)
}

type impServer struct {
	Config

	app *fiber.App
}

var (
	ErrServerListen   = errors.New("server listen error")
	ErrServerShutdown = errors.New("server shutdown error")
)

type options struct {
	trap     *trap.Trap
	gatherer prometheus.Gatherer
}

// Option customizes the server.
type Option func(*options)

// WithTrap routes the panics of the request handlers to tr.
func WithTrap(tr *trap.Trap) Option {
	return func(o *options) {
		o.trap = tr
	}
}

// WithMetrics exposes the metrics collected by gatherer on the metrics route.
func WithMetrics(gatherer prometheus.Gatherer) Option {
	return func(o *options) {
		o.gatherer = gatherer
	}
}

func NewServer(ctx context.Context, opts ...Option) (Server, error) {
	cfg, err := LoadServerConfig()
	if err != nil {
		return nil, err
	}

	options := &options{gatherer: prometheus.DefaultGatherer}
	for _, opt := range opts {
		opt(options)
	}

	app := fiber.New(fiber.Config{
		AppName:               info.AppName,
		DisableStartupMessage: cfg.DisableStartupMessage,
		ReadTimeout:           cfg.ReadTimeout,
		Immutable:             true, // ensure that accessing request body returns a copy that is valid after the request lifecycle (accessing body and headers in goroutines in the request handlers)
	})

	// the request logger wraps the recover middleware to log the outcome of panicking requests too
	log := logger.FromContext(ctx)
	app.Use(logger.RequestMiddlewareLogger(log, []string{"/-/"}))

	recoverConfig := recover.Config{}
	if options.trap != nil {
		recoverConfig.EnableStackTrace = true
		recoverConfig.StackTraceHandler = options.trap.RecoverHandler()
	}
	app.Use(recover.New(recoverConfig))

	statusRoutes(app, info.AppName, info.Version)
	metricsRoute(app, options.gatherer)

	return &impServer{
		app:    app,
		Config: *cfg,
	}, nil
}

func (s *impServer) AddRoute(method string, path string, handler Handler) {
	s.app.Add(method, path, func(ctx *fiber.Ctx) error {
		response, err := handler(ctx.UserContext(), ctx.GetReqHeaders(), ctx.Body())
		if err != nil {
			logger.FromContext(ctx.UserContext()).Error("error processing request", "error", err)
			return ctx.Status(http.StatusInternalServerError).JSON(fiber.Map{
				"statusCode": http.StatusInternalServerError,
				"error":      http.StatusText(http.StatusInternalServerError),
				"message":    "error processing request",
			})
		}
		return ctx.Status(http.StatusOK).SendString(response)
	})
}

// App returns the underlying fiber application.
func (s *impServer) App() *fiber.App {
	return s.app
}

func (s *impServer) Start() error {
	if err := s.app.Listen(fmt.Sprintf("%s:%d", s.HTTPHost, s.HTTPPort)); err != nil {
		return fmt.Errorf("%w: %w", ErrServerListen, err)
	}
	return nil
}

func (s *impServer) Stop() error {
	if err := s.app.ShutdownWithTimeout(s.ShutdownTimeout); err != nil {
		return fmt.Errorf("%w: %w", ErrServerShutdown, err)
	}
	return nil
}

func (s *impServer) StartAsync(ctx context.Context) {
	log := logger.FromContext(ctx).WithName(loggerName)
	go func() {
		if err := s.Start(); err != nil {
			log.Error(err.Error())
		}
	}()
}
