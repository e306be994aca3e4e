// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

// Package trap logs the failures nobody handled on the logger of the code that caused them.
//
// A failure is attributed to the category declared by its error (see Own), or to the type or
// package of the first stack frame that does not belong to the runtime, to a known framework or to
// this package; failures without a recognizable owner go to DefaultCategory.
package trap
