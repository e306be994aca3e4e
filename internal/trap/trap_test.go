// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package trap_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mia-platform/sharedlog/internal/logger"
	loggerfake "github.com/mia-platform/sharedlog/internal/logger/fake"
	"github.com/mia-platform/sharedlog/internal/registry"
	"github.com/mia-platform/sharedlog/internal/trap"
	"github.com/mia-platform/sharedlog/internal/trap/fake"
)

const (
	fakePackage = "github.com/mia-platform/sharedlog/internal/trap/fake"
	testPackage = "github.com/mia-platform/sharedlog/internal/trap_test"
)

func newTrap(t *testing.T, opts ...trap.Option) (*trap.Trap, *loggerfake.Logger) {
	t.Helper()

	recorder := loggerfake.NewLogger()
	reg := registry.New()
	reg.Configure(loggerfake.NewProvider(recorder))

	tr, err := trap.New(reg, opts...)
	require.NoError(t, err)
	return tr, recorder
}

func startSupervisor(t *testing.T, tr *trap.Trap) (context.CancelFunc, <-chan error) {
	t.Helper()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- tr.Run(ctx)
	}()
	return cancel, done
}

func TestRecover(t *testing.T) {
	t.Parallel()

	testCases := map[string]struct {
		fail             func()
		expectedCategory string
		expectedErr      error
		expectedPayload  any
	}{
		"pointer method panicking with an error": {
			fail:             func() { _ = (&fake.Worker{}).Panic() },
			expectedCategory: fakePackage + ".Worker",
			expectedErr:      fake.ErrWorker,
		},
		"value method panicking with a payload": {
			fail:             func() { _ = fake.Worker{}.PanicValue() },
			expectedCategory: fakePackage + ".Worker",
			expectedPayload:  "worker gave up",
		},
		"closure inside a method": {
			fail:             func() { _ = (&fake.Worker{}).Nested() },
			expectedCategory: fakePackage + ".Worker",
			expectedErr:      fake.ErrWorker,
		},
		"plain function": {
			fail:             func() { _ = fake.Explode() },
			expectedCategory: fakePackage,
			expectedErr:      fake.ErrWorker,
		},
		"error owning its category": {
			fail:             func() { panic(trap.Own("billing", fake.ErrWorker)) },
			expectedCategory: "billing",
			expectedErr:      fake.ErrWorker,
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tr, recorder := newTrap(t)
			assert.Panics(t, func() {
				defer tr.Recover()
				test.fail()
			})

			entries := recorder.Entries()
			require.Len(t, entries, 1)
			entry := entries[0]
			assert.Equal(t, test.expectedCategory, entry.Category)
			assert.Equal(t, logger.ERROR, entry.Level)
			if test.expectedErr != nil {
				assert.ErrorIs(t, entry.Err, test.expectedErr)
				assert.Equal(t, []any{"fatal", true}, entry.Args)
				return
			}
			assert.NoError(t, entry.Err)
			assert.Equal(t, []any{"fatal", true, "payload", test.expectedPayload}, entry.Args)
		})
	}
}

func TestRecoverRepanicsWithTheSameValue(t *testing.T) {
	t.Parallel()

	tr, _ := newTrap(t)
	assert.PanicsWithValue(t, fake.ErrWorker, func() {
		defer tr.Recover()
		_ = fake.Explode()
	})

	assert.NotPanics(t, func() {
		defer tr.Recover()
	})
}

func TestRecoverWithUnconfiguredRegistry(t *testing.T) {
	t.Parallel()

	tr, err := trap.New(registry.New())
	require.NoError(t, err)

	assert.PanicsWithValue(t, registry.ErrNotConfigured, func() {
		defer tr.Recover()
		_ = fake.Explode()
	})
}

func TestGo(t *testing.T) {
	t.Parallel()

	worker := &fake.Worker{}
	testCases := map[string]struct {
		job              func() error
		expectedCategory string
		expectedMessage  string
	}{
		"returned error is attributed to the spawning code": {
			job:              worker.Fail,
			expectedCategory: testPackage,
			expectedMessage:  fake.ErrWorker.Error(),
		},
		"returned error with its own stack": {
			job:              worker.FailWithStack,
			expectedCategory: fakePackage + ".Worker",
			expectedMessage:  "worker failure with stack",
		},
		"panic is attributed to the panicking code": {
			job:              worker.Panic,
			expectedCategory: fakePackage + ".Worker",
			expectedMessage:  fake.ErrWorker.Error(),
		},
		"returned error owning its category": {
			job:              func() error { return trap.Own("billing", fake.ErrWorker) },
			expectedCategory: "billing",
			expectedMessage:  fake.ErrWorker.Error(),
		},
	}

	for name, test := range testCases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			tr, recorder := newTrap(t)
			cancel, done := startSupervisor(t, tr)

			tr.Go(test.job)
			tr.Go(func() error { return nil })

			require.Eventually(t, func() bool { return len(recorder.Entries()) == 1 }, time.Second, 10*time.Millisecond)
			cancel()
			require.NoError(t, <-done)

			entry := recorder.Entries()[0]
			assert.Equal(t, test.expectedCategory, entry.Category)
			require.Error(t, entry.Err)
			assert.Equal(t, test.expectedMessage, entry.Err.Error())
			assert.Equal(t, []any{"fatal", false}, entry.Args)
		})
	}
}

func TestGoConcurrentFailures(t *testing.T) {
	t.Parallel()

	tr, recorder := newTrap(t, trap.WithBuffer(1))
	cancel, done := startSupervisor(t, tr)

	worker := &fake.Worker{}
	for range 20 {
		tr.Go(worker.Panic)
		tr.Go(worker.Fail)
	}

	require.Eventually(t, func() bool { return len(recorder.Entries()) == 40 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestRunDrainsAndHandlesLateFailuresInline(t *testing.T) {
	t.Parallel()

	tr, recorder := newTrap(t)
	worker := &fake.Worker{}

	tr.Go(worker.Fail)
	require.Never(t, func() bool { return len(recorder.Entries()) > 0 }, 50*time.Millisecond, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.NoError(t, tr.Run(ctx))
	assert.Len(t, recorder.Entries(), 1)

	tr.Go(worker.Panic)
	assert.Eventually(t, func() bool { return len(recorder.Entries()) == 2 }, time.Second, 10*time.Millisecond)
}

func TestFullQueueWithoutSupervisorIsHandledInline(t *testing.T) {
	t.Parallel()

	tr, recorder := newTrap(t, trap.WithBuffer(1))
	worker := &fake.Worker{}

	for range 3 {
		tr.Go(worker.Fail)
	}
	require.Eventually(t, func() bool { return len(recorder.Entries()) == 2 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.NoError(t, tr.Run(ctx))
	assert.Len(t, recorder.Entries(), 3)
}

func TestRunStopsOnRegistryErrors(t *testing.T) {
	t.Parallel()

	failure := errors.New("provider unavailable")
	reg := registry.New()
	reg.Configure(&loggerfake.Provider{Err: failure})
	tr, err := trap.New(reg)
	require.NoError(t, err)

	cancel, done := startSupervisor(t, tr)
	defer cancel()

	tr.Go((&fake.Worker{}).Fail)
	select {
	case err := <-done:
		assert.ErrorIs(t, err, failure)
	case <-time.After(5 * time.Second):
		assert.Fail(t, "supervisor did not stop")
	}
}

func TestHandle(t *testing.T) {
	t.Parallel()

	tr, recorder := newTrap(t)
	require.NoError(t, tr.Handle(trap.Failure{Payload: 42, Fatal: true}))

	entries := recorder.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, trap.DefaultCategory, entries[0].Category)
	assert.Equal(t, "unhandled failure", entries[0].Message)
	assert.Equal(t, []any{"fatal", true, "payload", 42}, entries[0].Args)

	unconfigured, err := trap.New(registry.New())
	require.NoError(t, err)
	assert.ErrorIs(t, unconfigured.Handle(trap.Failure{Payload: 42}), registry.ErrNotConfigured)
}

func TestRecoverHandler(t *testing.T) {
	t.Parallel()

	tr, recorder := newTrap(t)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(recover.New(recover.Config{
		EnableStackTrace:  true,
		StackTraceHandler: tr.RecoverHandler(),
	}))
	app.Get("/panic", func(_ *fiber.Ctx) error {
		return (&fake.Worker{}).Panic()
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/panic", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.NoError(t, tr.Run(ctx))

	entries := recorder.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, fakePackage+".Worker", entries[0].Category)
	assert.Equal(t, []any{"fatal", false}, entries[0].Args)
}

func TestMetrics(t *testing.T) {
	t.Parallel()

	registerer := prometheus.NewRegistry()
	tr, _ := newTrap(t, trap.WithMetrics(registerer))

	require.NoError(t, tr.Handle(trap.Failure{Err: trap.Own("billing", fake.ErrWorker)}))
	require.NoError(t, tr.Handle(trap.Failure{Err: trap.Own("billing", fake.ErrWorker)}))
	require.NoError(t, tr.Handle(trap.Failure{Payload: "lost", Fatal: true}))

	expected := `
# HELP sharedlog_trapped_failures_total Number of unhandled failures trapped, by attributed category.
# TYPE sharedlog_trapped_failures_total counter
sharedlog_trapped_failures_total{category="billing",fatal="false"} 2
sharedlog_trapped_failures_total{category="sharedlog:trap",fatal="true"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(registerer, strings.NewReader(expected), "sharedlog_trapped_failures_total"))

	again, _ := newTrap(t, trap.WithMetrics(registerer))
	require.NoError(t, again.Handle(trap.Failure{Payload: "lost", Fatal: true}))

	expected = `
# HELP sharedlog_trapped_failures_total Number of unhandled failures trapped, by attributed category.
# TYPE sharedlog_trapped_failures_total counter
sharedlog_trapped_failures_total{category="billing",fatal="false"} 2
sharedlog_trapped_failures_total{category="sharedlog:trap",fatal="true"} 2
`
	assert.NoError(t, testutil.GatherAndCompare(registerer, strings.NewReader(expected), "sharedlog_trapped_failures_total"))
}
