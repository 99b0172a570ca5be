// Package dotdir manages the .quarry/ and ~/.quarry directories.
//
// The directory holds the persistent configuration (config.toml) plus any
// local state the quarry services keep between runs (the default SQLite
// databases live here unless configured elsewhere).
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the quarry directory.
	dirName = ".quarry"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .quarry/ directory.
// Order of precedence is as follows:
//  1. Provided override (created if missing)
//  2. Local ./.quarry/ dir
//  3. Home ~/.quarry/ dir
//
// If none is found, Target returns an empty string; callers fall back to
// defaults and config writes error clearly.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating quarry directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	if dir, ok := m.localDir(); ok {
		return filepath.Abs(dir)
	}

	if dir, ok := m.homeDir(); ok {
		return filepath.Abs(dir)
	}

	return "", nil
}

// localDir checks whether a .quarry/ directory exists in the current
// working directory.
func (m *Manager) localDir() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}

	dir := filepath.Join(cwd, dirName)
	info, err := os.Stat(dir)
	return dir, err == nil && info.IsDir()
}

// homeDir checks whether a .quarry/ directory exists in the user's home.
func (m *Manager) homeDir() (string, bool) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", false
	}

	dir := filepath.Join(home, dirName)
	info, err := os.Stat(dir)
	return dir, err == nil && info.IsDir()
}
