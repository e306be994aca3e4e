// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logger

import (
	"errors"
	"fmt"
	"strings"

	"dario.cat/mergo"
	"github.com/hashicorp/go-hclog"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	TargetConsole = "console"
	TargetFile    = "file"

	FormatText = "text"
	FormatJSON = "json"

	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

var (
	ErrInvalidTarget = errors.New("invalid logging target")
	ErrSettings      = errors.New("error reading logging settings")
)

// Settings describes the backend configuration: the global level, the properties attached to
// every entry and the targets entries are written to.
type Settings struct {
	MinLevel        string         `koanf:"minLevel"`
	IncludeLocation bool           `koanf:"includeLocation"`
	Properties      map[string]any `koanf:"properties"`
	Targets         []Target       `koanf:"targets"`
}

// Target is a single destination of the log entries.
type Target struct {
	Name   string `koanf:"name"`
	Type   string `koanf:"type"`
	Format string `koanf:"format"`
	// Layout is the time layout used for the entry timestamp.
	Layout   string `koanf:"layout"`
	MinLevel string `koanf:"minLevel"`
	Stream   string `koanf:"stream"`

	FileName   string `koanf:"fileName"`
	MaxSizeMB  int    `koanf:"maxSizeMB"`
	MaxBackups int    `koanf:"maxBackups"`
	MaxAgeDays int    `koanf:"maxAgeDays"`
	Compress   bool   `koanf:"compress"`
}

var (
	defaultSettings = Settings{
		MinLevel: INFO.String(),
	}

	defaultTarget = Target{
		Name:       TargetConsole,
		Type:       TargetConsole,
		Format:     FormatText,
		Layout:     hclog.TimeFormat,
		Stream:     StreamStderr,
		MaxSizeMB:  100,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
)

// SettingsFromFile decodes the settings stored under section in the file at path, as written
// by the configuration merge step. The section name is matched case-insensitively.
func SettingsFromFile(path, section string) (Settings, error) {
	// property keys such as "service.name" contain dots
	k := koanf.New(":")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return Settings{}, fmt.Errorf("%w %q: %w", ErrSettings, path, err)
	}

	settings := Settings{}
	for key := range k.Raw() {
		if !strings.EqualFold(key, section) {
			continue
		}

		if err := k.UnmarshalWithConf(key, &settings, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
			return Settings{}, fmt.Errorf("%w %q: %w", ErrSettings, path, err)
		}
		break
	}

	return settings, nil
}

// Normalize fills the unset fields of s and of its targets with the defaults. Without targets
// a single console target is configured.
func (s *Settings) Normalize() error {
	if err := mergo.Merge(s, defaultSettings); err != nil {
		return fmt.Errorf("%w: %w", ErrSettings, err)
	}

	if len(s.Targets) == 0 {
		s.Targets = []Target{{}}
	}

	for index := range s.Targets {
		target := &s.Targets[index]
		if target.Name == "" && target.Type != "" {
			target.Name = target.Type
		}
		if err := mergo.Merge(target, defaultTarget); err != nil {
			return fmt.Errorf("%w: %w", ErrSettings, err)
		}
		target.Type = strings.ToLower(target.Type)
		target.Format = strings.ToLower(target.Format)
		target.Stream = strings.ToLower(target.Stream)
	}

	return nil
}

// Validate reports the first target that cannot be built.
func (s Settings) Validate() error {
	for _, target := range s.Targets {
		switch {
		case target.Type != TargetConsole && target.Type != TargetFile:
			return fmt.Errorf("%w %q: unknown type %q", ErrInvalidTarget, target.Name, target.Type)
		case target.Format != FormatText && target.Format != FormatJSON:
			return fmt.Errorf("%w %q: unknown format %q", ErrInvalidTarget, target.Name, target.Format)
		case target.Type == TargetConsole && target.Stream != StreamStdout && target.Stream != StreamStderr:
			return fmt.Errorf("%w %q: unknown stream %q", ErrInvalidTarget, target.Name, target.Stream)
		case target.Type == TargetFile && target.FileName == "":
			return fmt.Errorf("%w %q: missing fileName", ErrInvalidTarget, target.Name)
		}
	}
	return nil
}

// level returns the less verbose between the target level and the global one.
func (t Target) level(global Level) Level {
	if t.MinLevel == "" {
		return global
	}
	return min(global, LevelFromString(t.MinLevel))
}
