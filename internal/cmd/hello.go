// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package cmd

import (
	"context"
	"errors"
	"net/http"

	"github.com/mia-platform/sharedlog/internal/registry"
	"github.com/mia-platform/sharedlog/internal/trap"
)

const (
	helloWorldPath        = "/helloworld"
	backgroundFailurePath = "/helloworld/background-failure"

	helloWorldResponse  = "HelloBack"
	backgroundScheduled = "Scheduled"
)

var errBackgroundWork = errors.New("background work failed")

// helloWorld is the sample controller of the serve command. Its loggers are resolved through the
// registry under the category of the type itself.
type helloWorld struct {
	registry *registry.Registry
	trap     *trap.Trap
}

func (h *helloWorld) getHello(_ context.Context, _ http.Header, _ []byte) (string, error) {
	log, err := registry.LoggerFor[helloWorld](h.registry)
	if err != nil {
		return "", err
	}

	log.Info("GetHello called.")
	return helloWorldResponse, nil
}

// getBackgroundFailure starts a background task that fails after the response is sent. The failure
// is logged by the trap under the category of this controller.
func (h *helloWorld) getBackgroundFailure(_ context.Context, _ http.Header, _ []byte) (string, error) {
	h.trap.Go(func() error {
		return errBackgroundWork
	})
	return backgroundScheduled, nil
}
