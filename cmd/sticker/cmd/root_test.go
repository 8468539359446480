package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/sticker/internal/testutil"
	"github.com/MeKo-Tech/sticker/internal/version"
)

// executeCommand runs a fresh command tree with args and returns what it
// wrote to stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommand(t *testing.T) {
	root := NewRootCommand()
	assert.Equal(t, "sticker", root.Use)
	assert.NotEmpty(t, root.Short)
	assert.NotEmpty(t, root.Long)
}

func TestRootCommandHelp(t *testing.T) {
	out, _, err := executeCommand(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Turn photos")
	assert.Contains(t, out, "Available Commands:")
	assert.Contains(t, out, "Usage:")
}

func TestRootCommandNoArgs(t *testing.T) {
	out, _, err := executeCommand(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Usage:")
}

func TestRootCommandVersion(t *testing.T) {
	out, _, err := executeCommand(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, version.String())

	out, _, err = executeCommand(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "sticker "+version.String()+"\n", out)
}

func TestRootCommandSubcommands(t *testing.T) {
	root := NewRootCommand()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, expected := range []string{"image", "batch", "pdf", "report", "serve", "config", "version"} {
		assert.Contains(t, names, expected, "Expected subcommand '%s' not found", expected)
	}
}

func TestRootCommandInvalidFlag(t *testing.T) {
	_, stderr, err := executeCommand(t, "--invalid-flag")
	require.Error(t, err)
	assert.Contains(t, stderr, "unknown flag")
}

func TestRootCommandConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	testutil.WriteFile(t, path, []byte("sticker:\n  border: 22\n  style: bw\n"))

	out, _, err := executeCommand(t, "--config", path, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "border: 22")
	assert.Contains(t, out, "style: bw")
}

func TestRootCommandInvalidConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	testutil.WriteFile(t, path, []byte("sticker:\n  border: 99\n"))

	_, _, err := executeCommand(t, "--config", path, "config", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error loading configuration")
}

func TestRootCommandsAreIndependent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	testutil.WriteFile(t, path, []byte("sticker:\n  border: 22\n"))

	_, _, err := executeCommand(t, "--config", path, "config", "show")
	require.NoError(t, err)

	out, _, err := executeCommand(t, "config", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "border: 15")
}
