// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package logger

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderTargets(t *testing.T) {
	t.Parallel()

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	logFile := filepath.Join(t.TempDir(), "app.log")

	provider, err := NewProvider(Settings{
		MinLevel:   "DEBUG",
		Properties: map[string]any{"app": "sharedlog", "env": "test"},
		Targets: []Target{
			{Name: "console", Format: FormatJSON, Stream: StreamStdout},
			{Name: "errors", Format: FormatText, Stream: StreamStderr, MinLevel: "ERROR"},
			{Name: "file", Type: TargetFile, Format: FormatJSON, FileName: logFile},
		},
	}, WithConsoleOutput(stdout, stderr))
	require.NoError(t, err)

	log, err := provider.Logger("sharedlog:test")
	require.NoError(t, err)
	assert.Equal(t, "sharedlog:test", log.Name())

	log.Trace("filtered everywhere")
	log.Debug("debug line", "key", "value")
	log.LogErr(ERROR, errors.New("boom"), "error line")

	entries := decodeEntries(t, stdout)
	require.Len(t, entries, 2)
	assert.Equal(t, "debug line", entries[0]["@message"])
	assert.Equal(t, "sharedlog:test", entries[0]["@module"])
	assert.Equal(t, "sharedlog", entries[0]["app"])
	assert.Equal(t, "test", entries[0]["env"])
	assert.Equal(t, "value", entries[0]["key"])
	assert.Equal(t, "boom", entries[1]["error"])

	errorLines := strings.Split(strings.TrimSpace(stderr.String()), "\n")
	require.Len(t, errorLines, 1)
	assert.Contains(t, errorLines[0], "[ERROR]")
	assert.Contains(t, errorLines[0], "sharedlog:test: error line")
	assert.Contains(t, errorLines[0], "env=test")

	require.NoError(t, provider.Shutdown())
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	fileEntries := decodeEntries(t, bytes.NewBuffer(data))
	require.Len(t, fileEntries, 2)
	assert.Equal(t, "error line", fileEntries[1]["@message"])
}

func TestProviderRootAndLevels(t *testing.T) {
	t.Parallel()

	stderr := new(bytes.Buffer)
	provider, err := NewProvider(Settings{
		MinLevel: "WARN",
		Targets:  []Target{{Format: FormatJSON, MinLevel: "TRACE"}},
	}, WithConsoleOutput(nil, stderr))
	require.NoError(t, err)

	root := provider.Root()
	root.Info("filtered by the global level")
	root.Warn("kept")

	scope := root.BeginScope(map[string]any{"requestId": "abc"})
	scope.Critical("scoped")
	scope.End()

	entries := decodeEntries(t, stderr)
	require.Len(t, entries, 2)
	assert.NotContains(t, entries[0], "@module")
	assert.Equal(t, "abc", entries[1]["requestId"])
	assert.Equal(t, true, entries[1]["critical"])
}

func TestProviderShutdown(t *testing.T) {
	t.Parallel()

	provider, err := NewProvider(Settings{}, WithConsoleOutput(new(bytes.Buffer), new(bytes.Buffer)))
	require.NoError(t, err)

	require.NoError(t, provider.Shutdown())
	require.NoError(t, provider.Shutdown())

	log, err := provider.Logger("sharedlog:test")
	assert.Nil(t, log)
	assert.ErrorIs(t, err, ErrProviderClosed)
}

func TestProviderInvalidSettings(t *testing.T) {
	t.Parallel()

	provider, err := NewProvider(Settings{Targets: []Target{{Type: "database"}}})
	assert.Nil(t, provider)
	assert.ErrorIs(t, err, ErrInvalidTarget)
}
