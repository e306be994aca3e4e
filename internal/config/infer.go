// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"math"
	"strconv"
	"strings"
)

// PathDelimiter separates the segments of a configuration key path; keys may contain dots.
const PathDelimiter = ":"

// literalKeys hold identifiers and format strings whose text must be kept as is,
// e.g. a time layout such as "20060102" must not turn into a number.
var literalKeys = map[string]struct{}{
	"type":     {},
	"name":     {},
	"layout":   {},
	"assembly": {},
}

// Infer converts the raw text found at the key path into a typed scalar.
// A nil raw value yields null. Values under a literal key stay strings; everything else is
// tried as boolean, then integer, then floating point, and falls back to the raw string.
func Infer(path string, raw *string) *Node {
	return inferLeaf(lastSegment(path), raw)
}

// inferLeaf is Infer for a single key, that is never split.
func inferLeaf(key string, raw *string) *Node {
	if raw == nil {
		return NewNull()
	}

	value := *raw
	if _, literal := literalKeys[strings.ToLower(key)]; literal {
		return NewString(value)
	}

	if parsed, ok := parseBool(value); ok {
		return NewBool(parsed)
	}
	if parsed, ok := parseInt(value); ok {
		return NewInt(parsed)
	}
	if parsed, ok := parseFloat(value); ok {
		return NewFloat(parsed)
	}

	return NewString(value)
}

func lastSegment(path string) string {
	if index := strings.LastIndex(path, PathDelimiter); index >= 0 {
		return path[index+len(PathDelimiter):]
	}
	return path
}

func parseBool(value string) (bool, bool) {
	switch trimmed := strings.TrimSpace(value); {
	case strings.EqualFold(trimmed, "true"):
		return true, true
	case strings.EqualFold(trimmed, "false"):
		return false, true
	default:
		return false, false
	}
}

// parseInt accepts the 32 bit signed range; larger numbers are left to parseFloat.
func parseInt(value string) (int64, bool) {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 32)
	if err != nil {
		return 0, false
	}
	return parsed, true
}

func parseFloat(value string) (float64, bool) {
	trimmed := strings.TrimSpace(value)
	if strings.ContainsAny(trimmed, "xX_") {
		return 0, false
	}

	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0, false
	}
	return parsed, true
}
