// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Section is the raw form of a configuration source: every leaf is kept as text, the way
// hierarchical configuration providers expose it, and is typed only when the Node is built.
type Section struct {
	Key      string
	Path     string
	Value    *string
	Children []*Section
}

// NewSection converts the decoded value found under the top-level key into a Section tree.
// Maps and slices become children, slices using their indexes as keys; scalars become text leaves.
// Child keys are kept as found in the source, dots included.
func NewSection(key string, raw any) *Section {
	return newSection(key, key, raw)
}

func newSection(key, path string, raw any) *Section {
	section := &Section{
		Key:  key,
		Path: path,
	}

	switch value := raw.(type) {
	case nil:
	case map[string]any:
		for key, child := range value {
			section.Children = append(section.Children, newSection(key, joinPath(path, key), child))
		}
		slices.SortFunc(section.Children, func(a, b *Section) int { return compareKeys(a.Key, b.Key) })
	case []any:
		for index, child := range value {
			section.Children = append(section.Children, newSection(strconv.Itoa(index), joinPath(path, strconv.Itoa(index)), child))
		}
	default:
		text := scalarText(value)
		section.Value = &text
	}

	return section
}

// Node builds the typed tree for s. A section whose children keys are all non-negative
// integers becomes an Array ordered by index; other sections with children become an Object.
// Leaves are typed with Infer.
func (s *Section) Node() *Node {
	if len(s.Children) == 0 {
		return inferLeaf(s.Key, s.Value)
	}

	if indexes, ok := arrayIndexes(s.Children); ok {
		children := slices.Clone(s.Children)
		slices.SortStableFunc(children, func(a, b *Section) int { return indexes[a] - indexes[b] })

		items := make([]*Node, 0, len(children))
		for _, child := range children {
			items = append(items, child.Node())
		}
		return NewArray(items...)
	}

	object := NewObject()
	for _, child := range s.Children {
		object.Set(child.Key, child.Node())
	}
	return object
}

func arrayIndexes(children []*Section) (map[*Section]int, bool) {
	indexes := make(map[*Section]int, len(children))
	for _, child := range children {
		index, ok := parseIndex(child.Key)
		if !ok {
			return nil, false
		}
		indexes[child] = index
	}
	return indexes, true
}

func parseIndex(key string) (int, bool) {
	index, err := strconv.ParseInt(key, 10, 32)
	if err != nil || index < 0 {
		return 0, false
	}
	return int(index), true
}

// compareKeys orders sibling keys: integer keys first by value, then the others case-insensitively.
func compareKeys(a, b string) int {
	aIndex, aErr := strconv.ParseInt(a, 10, 32)
	bIndex, bErr := strconv.ParseInt(b, 10, 32)
	switch {
	case aErr == nil && bErr == nil:
		return int(aIndex - bIndex)
	case aErr == nil:
		return -1
	case bErr == nil:
		return 1
	}

	if result := strings.Compare(strings.ToLower(a), strings.ToLower(b)); result != 0 {
		return result
	}
	return strings.Compare(a, b)
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + PathDelimiter + key
}

func scalarText(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
