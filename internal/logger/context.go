// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logger

import (
	"context"
	"maps"
	"slices"
)

// WithContext returns a new context with the provided logger.
func WithContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, contextKey, logger)
}

// FromContext retrieves the logger from the context. If no logger is found, a new null logger is returned.
func FromContext(ctx context.Context) Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(contextKey).(Logger); ok {
			return logger
		}
	}

	return nullLogger
}

// WithProperties returns a new context whose logger attaches properties to every entry, on top of
// the properties already carried by the logger of ctx.
func WithProperties(ctx context.Context, properties map[string]any) context.Context {
	logger := FromContext(ctx)
	for _, key := range slices.Sorted(maps.Keys(properties)) {
		logger = WithProperty(logger, key, properties[key])
	}

	return WithContext(ctx, logger)
}

// Unexported new type so that our context key never collides with another.
type contextKeyType struct{}

// contextKey is the key used for the context to store the logger.
var contextKey = contextKeyType{}
