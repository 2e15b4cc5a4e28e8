package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range configCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["show"])
	assert.True(t, names["set"])
	assert.True(t, names["path"])
}

func TestConfigPath(t *testing.T) {
	setupTestServices(t)
	dir := t.TempDir()

	out, err := execute(t, "config", "path", "--data-dir", dir)

	require.NoError(t, err)
	assert.Contains(t, out, filepath.Join(dir, "config.toml"))
}

func TestConfigSet_WritesFile(t *testing.T) {
	setupTestServices(t)
	dir := t.TempDir()

	out, err := execute(t, "config", "set", "CHUNK_SIZE_TOKENS", "640", "--data-dir", dir)

	require.NoError(t, err)
	assert.Contains(t, out, "Set chunking.size_tokens = 640")

	data, err := os.ReadFile(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "size_tokens = 640")
}

func TestConfigSet_RejectsAPIKey(t *testing.T) {
	setupTestServices(t)
	dir := t.TempDir()

	_, err := execute(t, "config", "set", "OPENAI_API_KEY", "sk-test", "--data-dir", dir)

	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "config.toml"))
}

func TestConfigSet_RequiresTwoArgs(t *testing.T) {
	setupTestServices(t)

	_, err := execute(t, "config", "set", "CHUNK_SIZE_TOKENS")

	assert.Error(t, err)
}

func TestConfigShow(t *testing.T) {
	setupTestServices(t)
	dir := t.TempDir()
	t.Setenv("CHUNK_SIZE_TOKENS", "")
	t.Setenv("OPENAI_API_KEY", "sk-secret")
	_, err := execute(t, "config", "set", "chunking.size_tokens", "320", "--data-dir", dir)
	require.NoError(t, err)

	out, err := execute(t, "config", "show", "--data-dir", dir)

	require.NoError(t, err)
	assert.Contains(t, out, "chunking.size_tokens")
	assert.Contains(t, out, "320")
	assert.NotContains(t, out, "sk-secret")
}

func TestConfigShow_DoesNotBootstrap(t *testing.T) {
	setupTestServices(t)
	svc = nil
	called := false
	SetBootstrap(func(_ context.Context, _ string) (*Services, func() error, error) {
		called = true
		return nil, nil, assert.AnError
	})

	_, err := execute(t, "config", "show", "--data-dir", t.TempDir())

	require.NoError(t, err)
	assert.False(t, called)
}
