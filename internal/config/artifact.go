// Copyright Mia srl
// SPDX-License-Identifier: AGPL-3.0-only or Commercial

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

const artifactPrefix = "sharedlog.merged."

// WriteArtifact stores tree under section in a new JSON file inside dir and returns its path.
// An empty dir means the system temporary directory. Every call uses a unique file name.
func WriteArtifact(dir, section string, tree *Node) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if tree == nil {
		tree = NewObject()
	}

	root := NewObject()
	root.Set(section, tree)
	data, err := root.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encoding merged configuration: %w", err)
	}

	path := filepath.Join(dir, artifactPrefix+uuid.NewString()+".json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("writing merged configuration: %w", err)
	}

	return path, nil
}

// RemoveArtifact deletes the file written by WriteArtifact. A file already gone is not an error.
func RemoveArtifact(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
