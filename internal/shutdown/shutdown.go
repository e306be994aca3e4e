// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package shutdown

import (
	"slices"
	"sync"
)

// Hooks collects the cleanup actions to run when the process exits.
type Hooks struct {
	lock  sync.Mutex
	hooks []func() error
	ran   bool
}

// OnExit registers a hook. Hooks run in reverse order of registration.
func (h *Hooks) OnExit(hook func() error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.hooks = append(h.hooks, hook)
}

// Run executes the registered hooks once. Errors and panics of a hook are swallowed and do not
// prevent the following hooks from running.
func (h *Hooks) Run() {
	h.lock.Lock()
	if h.ran {
		h.lock.Unlock()
		return
	}
	h.ran = true
	hooks := slices.Clone(h.hooks)
	h.lock.Unlock()

	for _, hook := range slices.Backward(hooks) {
		runQuietly(hook)
	}
}

func runQuietly(hook func() error) {
	defer func() {
		_ = recover()
	}()
	_ = hook()
}
