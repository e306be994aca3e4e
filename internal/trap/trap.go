// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package trap

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mia-platform/sharedlog/internal/logger"
	"github.com/mia-platform/sharedlog/internal/registry"
)

const (
	// DefaultCategory owns the failures that cannot be attributed to anything else.
	DefaultCategory = "sharedlog:trap"

	failureMessage = "unhandled failure"
	defaultBuffer  = 64
)

// Trap routes unhandled failures to the logger of the code unit they are attributed to.
//
// Panics reach it through Recover, deferred at the top of a goroutine, or through the fiber recover
// middleware; background work started with Go reports its errors and panics on a channel read by
// the Run supervisor.
type Trap struct {
	registry         *registry.Registry
	frameworks       []string
	stackAttribution bool
	defaultCategory  string
	buffer           int
	registerer       prometheus.Registerer

	failures chan Failure
	running  atomic.Bool
	stopped  chan struct{}
	stopOnce sync.Once
	lock     sync.RWMutex
	closed   bool

	trapped *prometheus.CounterVec
}

// Option customizes a Trap.
type Option func(*Trap)

// WithFrameworkPackages adds package path prefixes whose frames are skipped during attribution.
func WithFrameworkPackages(prefixes ...string) Option {
	return func(t *Trap) {
		t.frameworks = append(t.frameworks, prefixes...)
	}
}

// WithoutStackAttribution disables stack inspection: only errors declaring their category are
// attributed, everything else goes to the default category.
func WithoutStackAttribution() Option {
	return func(t *Trap) {
		t.stackAttribution = false
	}
}

// WithMetrics registers the trapped failures counter on registerer.
func WithMetrics(registerer prometheus.Registerer) Option {
	return func(t *Trap) {
		t.registerer = registerer
	}
}

// WithBuffer sets how many failures can wait for the supervisor.
func WithBuffer(size int) Option {
	return func(t *Trap) {
		t.buffer = max(size, 0)
	}
}

// WithDefaultCategory replaces the category used when attribution finds no owner.
func WithDefaultCategory(category string) Option {
	return func(t *Trap) {
		t.defaultCategory = category
	}
}

// New returns a Trap resolving loggers through reg.
func New(reg *registry.Registry, opts ...Option) (*Trap, error) {
	t := &Trap{
		registry:         reg,
		frameworks:       slices.Clone(DefaultFrameworkPackages),
		stackAttribution: true,
		defaultCategory:  DefaultCategory,
		buffer:           defaultBuffer,
		stopped:          make(chan struct{}),
		trapped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sharedlog_trapped_failures_total",
			Help: "Number of unhandled failures trapped, by attributed category.",
		}, []string{"category", "fatal"}),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.failures = make(chan Failure, t.buffer)

	if t.registerer != nil {
		if err := t.registerer.Register(t.trapped); err != nil {
			alreadyRegistered := prometheus.AlreadyRegisteredError{}
			if !errors.As(err, &alreadyRegistered) {
				return nil, err
			}
			t.trapped = alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
		}
	}

	return t, nil
}

// Recover must be deferred directly: it logs the panic in flight as a fatal failure and then
// panics again with the same value.
func (t *Trap) Recover() {
	value := recover()
	if value == nil {
		return
	}

	if err := t.Handle(failureFromPanic(value, callers(1), true)); err != nil {
		panic(err)
	}
	panic(value)
}

// Go runs fn in a new goroutine. A returned error or a panic is reported to the supervisor as a
// non fatal failure; the goroutine does not bring the process down.
func (t *Trap) Go(fn func() error) {
	spawnedAt := callers(1)
	go func() {
		defer func() {
			if value := recover(); value != nil {
				t.report(failureFromPanic(value, callers(1), false))
			}
		}()

		if err := fn(); err != nil {
			t.report(Failure{Err: err, Frames: spawnedAt})
		}
	}()
}

// RecoverHandler returns a stack trace handler for the fiber recover middleware that reports the
// recovered panic as a non fatal failure.
func (t *Trap) RecoverHandler() func(*fiber.Ctx, any) {
	return func(_ *fiber.Ctx, value any) {
		t.report(failureFromPanic(value, callers(1), false))
	}
}

// Run handles the reported failures until ctx is done, then handles those still queued.
// Failures reported afterwards, or while no supervisor is running and the queue is full, are
// handled by the reporting goroutine. Run returns the first error met resolving a logger.
func (t *Trap) Run(ctx context.Context) error {
	t.running.Store(true)
	defer t.running.Store(false)

	for {
		select {
		case failure := <-t.failures:
			if err := t.Handle(failure); err != nil {
				t.stop()
				return err
			}
		case <-ctx.Done():
			t.stop()
			return t.drain()
		}
	}
}

// Handle attributes f and logs it at ERROR level on the logger of its category.
func (t *Trap) Handle(f Failure) error {
	category := t.Attribute(f)
	log, err := t.registry.Logger(category)
	if err != nil {
		return err
	}

	t.trapped.WithLabelValues(category, strconv.FormatBool(f.Fatal)).Inc()
	if f.Err != nil {
		log.LogErr(logger.ERROR, f.Err, failureMessage, "fatal", f.Fatal)
		return nil
	}

	log.Error(failureMessage, "fatal", f.Fatal, "payload", f.Payload)
	return nil
}

func (t *Trap) report(f Failure) {
	t.lock.RLock()
	if t.closed {
		t.lock.RUnlock()
		t.handleInline(f)
		return
	}

	select {
	case t.failures <- f:
		t.lock.RUnlock()
		return
	default:
	}

	if !t.running.Load() {
		t.lock.RUnlock()
		t.handleInline(f)
		return
	}

	select {
	case t.failures <- f:
		t.lock.RUnlock()
	case <-t.stopped:
		t.lock.RUnlock()
		t.handleInline(f)
	}
}

func (t *Trap) handleInline(f Failure) {
	if err := t.Handle(f); err != nil {
		panic(err)
	}
}

// stop makes new reports bypass the channel and waits for the ones in flight.
func (t *Trap) stop() {
	t.stopOnce.Do(func() {
		close(t.stopped)
	})

	t.lock.Lock()
	t.closed = true
	t.lock.Unlock()
}

func (t *Trap) drain() error {
	for {
		select {
		case failure := <-t.failures:
			if err := t.Handle(failure); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}
