// Package dotdir manages the .sleeves/ and ~/.sleeves directories.
//
// The directory holds config.toml, an optional .env file, and by default the
// local index artifacts under index/.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the sleeves directory.
	dirName = ".sleeves"

	// IndexDir is the artifact subdirectory inside a .sleeves/ directory.
	IndexDir = "index"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .sleeves/ directory.
// Order of precedence is as follows:
//  1. Provided override (created if missing)
//  2. Local ./.sleeves/ dir
//  3. Home ~/.sleeves/ dir
//  4. If none found, an empty string
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating sleeves directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if isDir(filepath.Join(cwd, dirName)) {
		return filepath.Join(cwd, dirName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	if isDir(filepath.Join(home, dirName)) {
		return filepath.Join(home, dirName), nil
	}

	return "", nil
}

// Init creates a .sleeves/ directory and its index/ subdirectory under
// parent, or in the current working directory when parent is empty.
// Returns the absolute path of the .sleeves/ directory.
func (m *Manager) Init(parent string) (string, error) {
	if parent == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		parent = cwd
	}

	dir := filepath.Join(parent, dirName)
	if err := os.MkdirAll(filepath.Join(dir, IndexDir), 0o755); err != nil {
		return "", fmt.Errorf("creating sleeves directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
