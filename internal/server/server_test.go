// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/sharedlog/internal/logger"
	loggerfake "github.com/mia-platform/sharedlog/internal/logger/fake"
	"github.com/mia-platform/sharedlog/internal/registry"
	"github.com/mia-platform/sharedlog/internal/trap"
)

func TestNewApp(t *testing.T) {
	t.Run("successfully creates app with valid config", func(t *testing.T) {
		ctx := t.Context()
		t.Setenv("HTTP_PORT", "3000")

		srv, err := NewServer(ctx)
		require.NoError(t, err)
		require.NotNil(t, srv)

		app := srv.(*impServer).App()
		require.NotNil(t, app)

		for _, path := range []string{"/-/healthz", "/-/ready"} {
			request := httptest.NewRequest(http.MethodGet, path, nil)
			response, err := app.Test(request)
			require.NoError(t, err)

			body, err := io.ReadAll(response.Body)
			response.Body.Close()
			require.NoError(t, err)
			require.Equal(t, http.StatusOK, response.StatusCode)
			assert.JSONEq(t, `{"status":"OK","name":"sharedlog","version":"DEV"}`, string(body))
		}
	})

	t.Run("invalid environment", func(t *testing.T) {
		t.Setenv("HTTP_PORT", "0")

		srv, err := NewServer(t.Context())
		assert.Nil(t, srv)
		assert.ErrorIs(t, err, ErrEnvVariablesNotValid)
	})
}

func TestStartServer(t *testing.T) {
	t.Run("starts and stops the server successfully", func(t *testing.T) {
		ctx := t.Context()
		t.Setenv("HTTP_PORT", "3001")

		srv, err := NewServer(ctx)
		require.NoError(t, err)
		require.NotNil(t, srv)

		errChan := make(chan error, 1)
		go func() {
			err := srv.Start()
			errChan <- err
		}()

		time.Sleep(1 * time.Second)
		response, err := http.Get("http://127.0.0.1:3001/-/healthz")
		require.NoError(t, err)
		response.Body.Close()
		require.Equal(t, http.StatusOK, response.StatusCode)

		require.NoError(t, srv.Stop())
		require.NoError(t, <-errChan)
	})
}

func TestStartAsyncServer(t *testing.T) {
	t.Run("starts the server asynchronously", func(t *testing.T) {
		ctx := t.Context()
		t.Setenv("HTTP_PORT", "3002")

		srv, err := NewServer(ctx)
		require.NoError(t, err)
		require.NotNil(t, srv)

		srv.StartAsync(ctx)

		time.Sleep(1 * time.Second)
		response, err := http.Get("http://127.0.0.1:3002/-/healthz")
		require.NoError(t, err)
		response.Body.Close()
		require.Equal(t, http.StatusOK, response.StatusCode)

		require.NoError(t, srv.Stop())
	})
}

func TestAddRoute(t *testing.T) {
	t.Setenv("HTTP_PORT", "3000")

	srv, err := NewServer(t.Context())
	require.NoError(t, err)

	srv.AddRoute(http.MethodPost, "/echo", func(_ context.Context, headers http.Header, body []byte) (string, error) {
		return headers.Get("X-Test") + ":" + string(body), nil
	})
	srv.AddRoute(http.MethodGet, "/failing", func(context.Context, http.Header, []byte) (string, error) {
		return "", errors.New("failure")
	})

	app := srv.(*impServer).App()
	request := httptest.NewRequest(http.MethodPost, "/echo", strings.NewReader("test body"))
	request.Header.Set("X-Test", "value")
	response, err := app.Test(request)
	require.NoError(t, err)
	body, err := io.ReadAll(response.Body)
	response.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode)
	assert.Equal(t, "value:test body", string(body))

	response, err = app.Test(httptest.NewRequest(http.MethodGet, "/failing", nil))
	require.NoError(t, err)
	response.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, response.StatusCode)
}

func TestPanicsAreTrapped(t *testing.T) {
	t.Setenv("HTTP_PORT", "3000")

	recorder := loggerfake.NewLogger()
	reg := registry.New()
	reg.Configure(loggerfake.NewProvider(recorder))
	metrics := prometheus.NewRegistry()
	tr, err := trap.New(reg, trap.WithMetrics(metrics))
	require.NoError(t, err)

	srv, err := NewServer(t.Context(), WithTrap(tr), WithMetrics(metrics))
	require.NoError(t, err)
	srv.AddRoute(http.MethodGet, "/panic", func(context.Context, http.Header, []byte) (string, error) {
		panic("handler exploded")
	})

	app := srv.(*impServer).App()
	response, err := app.Test(httptest.NewRequest(http.MethodGet, "/panic", nil))
	require.NoError(t, err)
	response.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, response.StatusCode)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.NoError(t, tr.Run(ctx))

	entries := recorder.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "github.com/mia-platform/sharedlog/internal/server", entries[0].Category)
	assert.Equal(t, []any{"fatal", false, "payload", "handler exploded"}, entries[0].Args)

	response, err = app.Test(httptest.NewRequest(http.MethodGet, "/-/metrics", nil))
	require.NoError(t, err)
	body, err := io.ReadAll(response.Body)
	response.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `sharedlog_trapped_failures_total{category="github.com/mia-platform/sharedlog/internal/server",fatal="false"} 1`)
}

func TestPanickingRequestIsLogged(t *testing.T) {
	t.Setenv("HTTP_PORT", "3000")

	reg := registry.New()
	reg.Configure(loggerfake.NewProvider(loggerfake.NewLogger()))
	tr, err := trap.New(reg)
	require.NoError(t, err)

	requestLog := loggerfake.NewLogger()
	srv, err := NewServer(logger.WithContext(t.Context(), requestLog), WithTrap(tr))
	require.NoError(t, err)
	srv.AddRoute(http.MethodGet, "/panic", func(context.Context, http.Header, []byte) (string, error) {
		panic("handler exploded")
	})

	response, err := srv.(*impServer).App().Test(httptest.NewRequest(http.MethodGet, "/panic", nil))
	require.NoError(t, err)
	response.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, response.StatusCode)

	var completed *loggerfake.Entry
	for _, entry := range requestLog.Entries() {
		if entry.Message == logger.RequestCompletedMessage {
			completed = &entry
		}
	}
	require.NotNil(t, completed)
	assert.Equal(t, logger.WARN, completed.Level)

	statusCode := -1
	for i := 0; i+1 < len(completed.Args); i += 2 {
		if completed.Args[i] == "statusCode" {
			statusCode, _ = completed.Args[i+1].(int)
		}
	}
	assert.Equal(t, http.StatusInternalServerError, statusCode)
	assert.Equal(t, 0, requestLog.OpenScopes())
}
