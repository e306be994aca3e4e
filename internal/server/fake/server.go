// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package fake

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/mia-platform/sharedlog/internal/server"
)

var _ server.Server = &Server{}

type Route struct {
	Method  string
	Path    string
	Handler server.Handler
}

type Server struct {
	tb testing.TB

	lock             sync.Mutex
	RegisteredRoutes []Route

	startedChan chan struct{}
	closedChan  chan struct{}
	startOnce   sync.Once
	closeOnce   sync.Once
}

func NewFakeServer(tb testing.TB) *Server {
	tb.Helper()

	return &Server{
		tb:          tb,
		startedChan: make(chan struct{}),
		closedChan:  make(chan struct{}),
	}
}

func (s *Server) AddRoute(method string, path string, handler server.Handler) {
	s.tb.Helper()

	s.lock.Lock()
	defer s.lock.Unlock()
	s.RegisteredRoutes = append(s.RegisteredRoutes, Route{
		Method:  method,
		Path:    path,
		Handler: handler,
	})
}

// Call invokes the handler registered for method and path.
func (s *Server) Call(ctx context.Context, method, path string, headers http.Header, body []byte) (string, error) {
	s.tb.Helper()

	s.lock.Lock()
	routes := s.RegisteredRoutes
	s.lock.Unlock()

	for _, route := range routes {
		if route.Method == method && route.Path == path {
			return route.Handler(ctx, headers, body)
		}
	}
	return "", fmt.Errorf("no route registered for %s %s", method, path)
}

func (s *Server) Start() error {
	s.tb.Helper()
	s.startOnce.Do(func() { close(s.startedChan) })
	<-s.closedChan
	return nil
}

func (s *Server) Stop() error {
	s.tb.Helper()
	s.closeOnce.Do(func() { close(s.closedChan) })
	return nil
}

func (s *Server) StartAsync(_ context.Context) {
	s.tb.Helper()
	s.startOnce.Do(func() { close(s.startedChan) })
}

func (s *Server) StartedServer() <-chan struct{} {
	s.tb.Helper()
	return s.startedChan
}

func (s *Server) StoppedServer() <-chan struct{} {
	s.tb.Helper()
	return s.closedChan
}
