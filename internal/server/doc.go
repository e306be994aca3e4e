// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package server contains the server implementation for the sharedlog sample application.
// It sets up the HTTP server using the Fiber framework, configures middleware for logging and
// panic recovery, and defines routes for health checks, metrics and service status.
package server
