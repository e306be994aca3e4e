// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package registry

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"

	"github.com/mia-platform/sharedlog/internal/logger"
)

var ErrNotConfigured = errors.New("logger registry used before being configured")

// Provider produces loggers bound to a category.
type Provider interface {
	Logger(category string) (logger.Logger, error)
}

// Registry holds the logger provider of the application. It starts empty, is configured during
// startup and is then shared with every component that needs a logger.
type Registry struct {
	provider atomic.Pointer[providerHolder]
}

type providerHolder struct {
	provider Provider
}

// New returns an unconfigured Registry.
func New() *Registry {
	return &Registry{}
}

// Configure sets the provider, replacing the previous one if any.
func (r *Registry) Configure(provider Provider) {
	r.provider.Store(&providerHolder{provider: provider})
}

// Provider returns the configured provider or ErrNotConfigured.
func (r *Registry) Provider() (Provider, error) {
	holder := r.provider.Load()
	if holder == nil || holder.provider == nil {
		return nil, ErrNotConfigured
	}
	return holder.provider, nil
}

// Logger returns a logger bound to category. Errors of the provider are returned unchanged.
func (r *Registry) Logger(category string) (logger.Logger, error) {
	provider, err := r.Provider()
	if err != nil {
		return nil, err
	}
	return provider.Logger(category)
}

// LoggerFor returns a logger bound to the category of type T.
func LoggerFor[T any](r *Registry) (logger.Logger, error) {
	return r.Logger(CategoryOf[T]())
}

// CategoryOf returns the category name of type T: its package path and type name.
// Pointer types resolve to the type they point to.
func CategoryOf[T any]() string {
	typ := reflect.TypeFor[T]()
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}

	if typ.PkgPath() == "" {
		return typ.String()
	}
	return typ.PkgPath() + "." + typ.Name()
}

// WithContext returns a new context with the provided registry.
func WithContext(ctx context.Context, registry *Registry) context.Context {
	return context.WithValue(ctx, contextKey, registry)
}

// FromContext retrieves the registry from the context. If no registry is found, a new unconfigured
// one is returned.
func FromContext(ctx context.Context) *Registry {
	if ctx != nil {
		if registry, ok := ctx.Value(contextKey).(*Registry); ok {
			return registry
		}
	}

	return New()
}

type contextKeyType struct{}

var contextKey = contextKeyType{}
