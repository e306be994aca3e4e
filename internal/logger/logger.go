// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logger

import (
	"io"
	"maps"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
)

var (
	// nullLogger is a logger that discards all log messages.
	nullLogger = &instance{log: hclog.NewNullLogger()}
)

//go:generate ${TOOLS_BIN}/stringer -type=Level
type Level int

func LevelFromString(level string) Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return TRACE
	case "DEBUG":
		return DEBUG
	case "INFO", "INFORMATION":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "CRITICAL":
		return CRITICAL
	default:
		return INFO
	}
}

func (l Level) convertedLevel() hclog.Level {
	switch l {
	case TRACE:
		return hclog.Trace
	case DEBUG:
		return hclog.Debug
	case INFO:
		return hclog.Info
	case WARN:
		return hclog.Warn
	case ERROR, CRITICAL:
		return hclog.Error
	default:
		return hclog.Info
	}
}

const (
	CRITICAL Level = iota
	ERROR
	WARN
	INFO
	DEBUG
	TRACE
)

const (
	errorKey    = "error"
	criticalKey = "critical"
)

// Logger describes the interface that must be implemented by all loggers
type Logger interface {
	// Name returns the name of the logger.
	Name() string

	// WithName returns a new Logger instance with the specified name.
	WithName(name string) Logger

	// SetLevel updates the logger level.
	SetLevel(level Level)

	// Trace emit a message and key/value pairs at the TRACE level.
	Trace(msg string, args ...any)

	// Debug emit a message and key/value pairs at the DEBUG level.
	Debug(msg string, args ...any)

	// Info emit a message and key/value pairs at the INFO level.
	Info(msg string, args ...any)

	// Warn emit a message and key/value pairs at the WARN level.
	Warn(msg string, args ...any)

	// Error emit a message and key/value pairs at the ERROR level.
	Error(msg string, args ...any)

	// Critical emit a message and key/value pairs at the CRITICAL level.
	Critical(msg string, args ...any)

	// Log emit a message and key/value pairs at the given level.
	Log(level Level, msg string, args ...any)

	// LogErr emit a message, the attached error and key/value pairs at the given level.
	LogErr(level Level, err error, msg string, args ...any)

	// BeginScope returns a logger that attaches properties to every entry until End is called.
	BeginScope(properties map[string]any) Scope
}

// Scope is a Logger bound to a property set for a limited time.
type Scope interface {
	Logger

	// End closes the scope; entries emitted afterwards are discarded. Calling End more than once is a no-op.
	End()
}

// Make sure that intLogger is a Logger.
var _ Scope = &instance{}

// instance is a Logger implementation.
type instance struct {
	log   hclog.Logger
	ended *atomic.Bool
}

// NewLogger creates a new logger instance.
func NewLogger(writer io.Writer) Logger {
	return &instance{
		log: hclog.New(&hclog.LoggerOptions{
			JSONFormat: true,
			Output:     writer,
			TimeFn:     time.Now,
			Level:      INFO.convertedLevel(),
		}),
	}
}

func (i instance) Name() string {
	return i.log.Name()
}

func (i instance) WithName(name string) Logger {
	return &instance{
		log:   i.log.ResetNamed(name),
		ended: i.ended,
	}
}

func (i instance) SetLevel(level Level) {
	i.log.SetLevel(level.convertedLevel())
}

func (i instance) Trace(msg string, args ...any) {
	i.Log(TRACE, msg, args...)
}

func (i instance) Debug(msg string, args ...any) {
	i.Log(DEBUG, msg, args...)
}

func (i instance) Info(msg string, args ...any) {
	i.Log(INFO, msg, args...)
}

func (i instance) Warn(msg string, args ...any) {
	i.Log(WARN, msg, args...)
}

func (i instance) Error(msg string, args ...any) {
	i.Log(ERROR, msg, args...)
}

func (i instance) Critical(msg string, args ...any) {
	i.Log(CRITICAL, msg, args...)
}

func (i instance) Log(level Level, msg string, args ...any) {
	if i.ended != nil && i.ended.Load() {
		return
	}

	if level == CRITICAL {
		args = append(slices.Clip(args), criticalKey, true)
	}
	i.log.Log(level.convertedLevel(), msg, args...)
}

func (i instance) LogErr(level Level, err error, msg string, args ...any) {
	if err != nil {
		args = append(slices.Clip(args), errorKey, err)
	}
	i.Log(level, msg, args...)
}

func (i instance) BeginScope(properties map[string]any) Scope {
	return &instance{
		log:   i.log.With(propertyArgs(properties)...),
		ended: new(atomic.Bool),
	}
}

func (i *instance) End() {
	if i.ended != nil {
		i.ended.Store(true)
	}
}

// propertyArgs flattens properties into key/value pairs sorted by key.
func propertyArgs(properties map[string]any) []any {
	args := make([]any, 0, 2*len(properties))
	for _, key := range slices.Sorted(maps.Keys(properties)) {
		args = append(args, key, properties[key])
	}
	return args
}
