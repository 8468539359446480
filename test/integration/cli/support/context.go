package support

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// TestContext holds the state for integration tests.
type TestContext struct {
	// Command execution state
	LastCommand   string
	LastOutput    string
	LastStderr    string
	LastError     error
	LastExitCode  int
	LastStartTime time.Time
	LastDuration  time.Duration

	// Test environment
	TempDir string
	envKeys []string

	// Server management
	HTTPTestServer *HTTPTestServerWrapper

	// HTTP response state
	LastHTTPStatusCode int
	LastHTTPResponse   []byte
	LastHTTPHeaders    map[string]string
}

// NewTestContext creates a new test context with its own temp directory.
func NewTestContext() (*TestContext, error) {
	tempDir, err := os.MkdirTemp("", "sticker-test-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	return &TestContext{
		TempDir:         tempDir,
		LastHTTPHeaders: map[string]string{},
	}, nil
}

// Cleanup stops the test server, restores the environment and removes the
// temp directory.
func (testCtx *TestContext) Cleanup() error {
	var errs []error

	if testCtx.HTTPTestServer != nil {
		testCtx.stopTestHTTPServer()
	}
	for _, key := range testCtx.envKeys {
		if err := os.Unsetenv(key); err != nil {
			errs = append(errs, fmt.Errorf("failed to unset %s: %w", key, err))
		}
	}
	testCtx.envKeys = nil

	if err := os.RemoveAll(testCtx.TempDir); err != nil && !os.IsNotExist(err) {
		errs = append(errs, fmt.Errorf("failed to remove temp directory %s: %w", testCtx.TempDir, err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// SetEnvVar sets an environment variable until Cleanup.
func (testCtx *TestContext) SetEnvVar(name, value string) error {
	if err := os.Setenv(name, value); err != nil {
		return err
	}
	testCtx.envKeys = append(testCtx.envKeys, name)
	return nil
}

// Path resolves name inside the scenario's temp directory.
func (testCtx *TestContext) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(testCtx.TempDir, name)
}

// substituteCommandVariables replaces {tmp} with the scenario temp directory.
func (testCtx *TestContext) substituteCommandVariables(command string) string {
	return strings.ReplaceAll(command, "{tmp}", testCtx.TempDir)
}
