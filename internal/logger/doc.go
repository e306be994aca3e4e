// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package logger wraps the underlying logging stack behind a consistent interface.
// It builds the backend from the merged logging settings, decorates loggers with per call
// properties through scopes and makes loggers available through context helpers.
package logger
