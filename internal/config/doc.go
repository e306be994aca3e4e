// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package config holds the hierarchical configuration model used to set up logging.
//
// Sources are read as text sections, typed with Infer and turned into Node trees; the bundled
// defaults and the application overrides are then combined with Merge, where the overlay wins,
// arrays are replaced as a whole and an explicit null overwrites the base value. Settings files are
// layered with MergeFold, that matches object keys case-insensitively.
package config
