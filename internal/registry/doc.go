// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package registry resolves category loggers from the provider configured at startup.
package registry
