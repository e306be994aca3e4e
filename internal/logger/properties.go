// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logger

import (
	"maps"
)

// Make sure that PropertyLogger is a Logger.
var _ Logger = &PropertyLogger{}

// PropertyLogger decorates a Logger with an immutable set of properties. The properties are
// attached only while a single entry is emitted: every call opens a scope on the wrapped logger,
// emits and closes the scope again, so the wrapped logger never carries them afterwards.
type PropertyLogger struct {
	log        Logger
	properties map[string]any
}

// WithProperty wraps log and attaches key with value to the entries emitted through the result.
func WithProperty(log Logger, key string, value any) *PropertyLogger {
	if wrapped, ok := log.(*PropertyLogger); ok {
		return wrapped.WithProperty(key, value)
	}

	return &PropertyLogger{
		log:        log,
		properties: map[string]any{key: value},
	}
}

// WithProperty returns a new PropertyLogger holding a copy of the current properties plus key.
// The receiver is left untouched.
func (p *PropertyLogger) WithProperty(key string, value any) *PropertyLogger {
	properties := maps.Clone(p.properties)
	if properties == nil {
		properties = make(map[string]any, 1)
	}
	properties[key] = value

	return &PropertyLogger{
		log:        p.log,
		properties: properties,
	}
}

// Properties returns a copy of the attached properties.
func (p *PropertyLogger) Properties() map[string]any {
	return maps.Clone(p.properties)
}

func (p *PropertyLogger) Name() string {
	return p.log.Name()
}

func (p *PropertyLogger) WithName(name string) Logger {
	return &PropertyLogger{
		log:        p.log.WithName(name),
		properties: p.properties,
	}
}

func (p *PropertyLogger) SetLevel(level Level) {
	p.log.SetLevel(level)
}

func (p *PropertyLogger) Trace(msg string, args ...any) {
	p.emit(TRACE, nil, msg, args)
}

func (p *PropertyLogger) TraceErr(err error, msg string, args ...any) {
	p.emit(TRACE, err, msg, args)
}

func (p *PropertyLogger) Debug(msg string, args ...any) {
	p.emit(DEBUG, nil, msg, args)
}

func (p *PropertyLogger) DebugErr(err error, msg string, args ...any) {
	p.emit(DEBUG, err, msg, args)
}

func (p *PropertyLogger) Info(msg string, args ...any) {
	p.emit(INFO, nil, msg, args)
}

func (p *PropertyLogger) InfoErr(err error, msg string, args ...any) {
	p.emit(INFO, err, msg, args)
}

func (p *PropertyLogger) Warn(msg string, args ...any) {
	p.emit(WARN, nil, msg, args)
}

func (p *PropertyLogger) WarnErr(err error, msg string, args ...any) {
	p.emit(WARN, err, msg, args)
}

func (p *PropertyLogger) Error(msg string, args ...any) {
	p.emit(ERROR, nil, msg, args)
}

func (p *PropertyLogger) ErrorErr(err error, msg string, args ...any) {
	p.emit(ERROR, err, msg, args)
}

func (p *PropertyLogger) Critical(msg string, args ...any) {
	p.emit(CRITICAL, nil, msg, args)
}

func (p *PropertyLogger) CriticalErr(err error, msg string, args ...any) {
	p.emit(CRITICAL, err, msg, args)
}

func (p *PropertyLogger) Log(level Level, msg string, args ...any) {
	p.emit(level, nil, msg, args)
}

func (p *PropertyLogger) LogErr(level Level, err error, msg string, args ...any) {
	p.emit(level, err, msg, args)
}

// BeginScope opens a scope on the wrapped logger with the attached properties and the given ones,
// the latter winning on conflicts.
func (p *PropertyLogger) BeginScope(properties map[string]any) Scope {
	merged := maps.Clone(p.properties)
	if merged == nil {
		merged = make(map[string]any, len(properties))
	}
	maps.Copy(merged, properties)
	return p.log.BeginScope(merged)
}

func (p *PropertyLogger) emit(level Level, err error, msg string, args []any) {
	scope := p.log.BeginScope(p.properties)
	defer scope.End()

	if err != nil {
		scope.LogErr(level, err, msg, args...)
		return
	}
	scope.Log(level, msg, args...)
}
