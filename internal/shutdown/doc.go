// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package shutdown runs best effort cleanup actions on process exit.
package shutdown
