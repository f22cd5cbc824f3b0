// Package support holds shared state and step definitions for the CLI
// integration suite.
package support

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand  string
	LastOutput   string
	LastError    error
	LastExitCode int
	LastDuration time.Duration

	// Test environment
	WorkingDir string
	TempDir    string
	EnvVars    []string

	// Test artifacts
	CreatedFiles []string
}

// NewTestContext creates a new test context rooted at the project directory.
func NewTestContext() (*TestContext, error) {
	workingDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	// Test execution may cd into a subdirectory; walk up to the go.mod root.
	currentDir := workingDir
	for {
		if _, err := os.Stat(filepath.Join(currentDir, "go.mod")); err == nil {
			workingDir = currentDir
			break
		}
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}

	tempDir, err := os.MkdirTemp("", "leafstitch-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}

	return &TestContext{
		WorkingDir:   workingDir,
		TempDir:      tempDir,
		EnvVars:      []string{},
		CreatedFiles: []string{},
	}, nil
}

// Cleanup removes all temporary files created during the scenario.
func (testCtx *TestContext) Cleanup() error {
	var firstErr error

	for _, f := range testCtx.CreatedFiles {
		if err := os.Remove(f); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = fmt.Errorf("failed to remove %s: %w", f, err)
		}
	}
	if err := os.RemoveAll(testCtx.TempDir); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to remove temp dir: %w", err)
	}
	return firstErr
}

// GetTempPath returns a path under the scenario temp directory.
func (testCtx *TestContext) GetTempPath(name string) string {
	return filepath.Join(testCtx.TempDir, name)
}

// AddEnvVar appends an environment variable for subsequent command runs.
func (testCtx *TestContext) AddEnvVar(name, value string) {
	testCtx.EnvVars = append(testCtx.EnvVars, name+"="+value)
}
