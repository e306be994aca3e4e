// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/tidwall/jsonc"
)

// Format identifies the syntax of a configuration source.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DefaultSection is the top-level key holding the logging configuration.
const DefaultSection = "Logging"

var (
	ErrParsing = errors.New("error parsing configuration")

	//go:embed sharedlog.default.json
	defaultSettings []byte
)

// FormatFromPath guesses the format of a file from its extension. Unknown extensions are read
// as YAML that is also able to read plain JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// LoadFile reads the file at path and returns the typed tree found under section.
func LoadFile(path, section string) (*Node, error) {
	data, err := file.Provider(path).ReadBytes()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	node, err := LoadBytes(data, FormatFromPath(path), section)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return node, nil
}

// LoadDefault returns the bundled defaults found under section.
func LoadDefault(section string) (*Node, error) {
	return LoadBytes(defaultSettings, FormatJSON, section)
}

// LoadBytes parses data and returns the typed tree found under section. The section is matched
// case-insensitively against the top-level keys; when it is missing an empty object is returned.
// An empty section name returns the whole document.
func LoadBytes(data []byte, format Format, section string) (*Node, error) {
	if format == FormatJSON {
		data = jsonc.ToJSON(data)
	}

	k := koanf.New(PathDelimiter)
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParsing, err)
	}

	raw := k.Raw()
	if section == "" {
		return sectionNode(NewSection("", raw))
	}

	for key, value := range raw {
		if strings.EqualFold(key, section) {
			return sectionNode(NewSection(key, value))
		}
	}

	return NewObject(), nil
}

// sectionNode builds the tree of a top-level section, that must be an object; an empty section
// counts as missing.
func sectionNode(section *Section) (*Node, error) {
	node := section.Node()
	switch node.Kind() {
	case Object:
		return node, nil
	case Null:
		return NewObject(), nil
	default:
		return nil, fmt.Errorf("%w: section %q is %s instead of object", ErrParsing, section.Path, node.Kind())
	}
}

// MergeFiles loads section from every path and folds the trees over base in order. Keys are
// matched case-insensitively across files, see MergeFold.
func MergeFiles(section string, base *Node, paths ...string) (*Node, error) {
	merged := base.Clone()
	if merged == nil {
		merged = NewObject()
	}

	for _, path := range paths {
		overlay, err := LoadFile(path, section)
		if err != nil {
			return nil, err
		}
		merged = MergeFold(merged, overlay)
	}

	return merged, nil
}
