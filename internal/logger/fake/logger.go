// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/mia-platform/sharedlog/internal/logger"
)

var _ logger.Scope = &Logger{}

// Entry is a log entry recorded by Logger.
type Entry struct {
	Category   string
	Level      logger.Level
	Message    string
	Args       []any
	Err        error
	Properties map[string]any
}

type recorder struct {
	lock       sync.Mutex
	entries    []Entry
	openScopes int
	scopes     int
	panicValue any
}

// Logger records every entry it receives, together with the properties of the scope it was
// emitted in.
type Logger struct {
	name       string
	level      *atomic.Int64
	properties map[string]any
	ended      *atomic.Bool
	recorder   *recorder
}

// Option customizes a fake Logger.
type Option func(*recorder)

// PanicOnEmit makes every emission panic with value after the entry has been recorded.
func PanicOnEmit(value any) Option {
	return func(r *recorder) {
		r.panicValue = value
	}
}

// NewLogger returns a Logger recording entries at every level.
func NewLogger(opts ...Option) *Logger {
	rec := &recorder{}
	for _, opt := range opts {
		opt(rec)
	}

	level := new(atomic.Int64)
	level.Store(int64(logger.TRACE))
	return &Logger{
		level:    level,
		recorder: rec,
	}
}

// Entries returns the recorded entries in emission order.
func (l *Logger) Entries() []Entry {
	l.recorder.lock.Lock()
	defer l.recorder.lock.Unlock()
	return slices.Clone(l.recorder.entries)
}

// OpenScopes returns the number of scopes begun and not yet ended.
func (l *Logger) OpenScopes() int {
	l.recorder.lock.Lock()
	defer l.recorder.lock.Unlock()
	return l.recorder.openScopes
}

// Scopes returns the number of scopes begun so far.
func (l *Logger) Scopes() int {
	l.recorder.lock.Lock()
	defer l.recorder.lock.Unlock()
	return l.recorder.scopes
}

func (l *Logger) Name() string {
	return l.name
}

func (l *Logger) WithName(name string) logger.Logger {
	clone := *l
	clone.name = name
	return &clone
}

func (l *Logger) SetLevel(level logger.Level) {
	l.level.Store(int64(level))
}

func (l *Logger) Trace(msg string, args ...any) { l.LogErr(logger.TRACE, nil, msg, args...) }

func (l *Logger) Debug(msg string, args ...any) { l.LogErr(logger.DEBUG, nil, msg, args...) }

func (l *Logger) Info(msg string, args ...any) { l.LogErr(logger.INFO, nil, msg, args...) }

func (l *Logger) Warn(msg string, args ...any) { l.LogErr(logger.WARN, nil, msg, args...) }

func (l *Logger) Error(msg string, args ...any) { l.LogErr(logger.ERROR, nil, msg, args...) }

func (l *Logger) Critical(msg string, args ...any) { l.LogErr(logger.CRITICAL, nil, msg, args...) }

func (l *Logger) Log(level logger.Level, msg string, args ...any) {
	l.LogErr(level, nil, msg, args...)
}

func (l *Logger) LogErr(level logger.Level, err error, msg string, args ...any) {
	if l.ended != nil && l.ended.Load() {
		return
	}
	if int64(level) > l.level.Load() {
		return
	}

	l.recorder.lock.Lock()
	l.recorder.entries = append(l.recorder.entries, Entry{
		Category:   l.name,
		Level:      level,
		Message:    msg,
		Args:       slices.Clone(args),
		Err:        err,
		Properties: maps.Clone(l.properties),
	})
	panicValue := l.recorder.panicValue
	l.recorder.lock.Unlock()

	if panicValue != nil {
		panic(panicValue)
	}
}

func (l *Logger) BeginScope(properties map[string]any) logger.Scope {
	l.recorder.lock.Lock()
	l.recorder.openScopes++
	l.recorder.scopes++
	l.recorder.lock.Unlock()

	merged := maps.Clone(l.properties)
	if merged == nil {
		merged = make(map[string]any, len(properties))
	}
	maps.Copy(merged, properties)

	clone := *l
	clone.properties = merged
	clone.ended = new(atomic.Bool)
	return &clone
}

func (l *Logger) End() {
	if l.ended == nil || !l.ended.CompareAndSwap(false, true) {
		return
	}

	l.recorder.lock.Lock()
	defer l.recorder.lock.Unlock()
	l.recorder.openScopes--
}
