package commands_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/runbal/internal/commands"
	"github.com/cleared-dev/runbal/internal/config"
)

func runRunbal(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := commands.NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInit_CreatesStructure(t *testing.T) {
	dir := t.TempDir()
	out, err := runRunbal(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized runbal project at "+dir)

	for _, d := range []string{"data", "out"} {
		info, err := os.Stat(filepath.Join(dir, d))
		require.NoError(t, err, "directory %s should exist", d)
		assert.True(t, info.IsDir(), "%s should be a directory", d)
	}
}

func TestInit_Config(t *testing.T) {
	dir := t.TempDir()
	_, err := runRunbal(t, "init", dir)
	require.NoError(t, err)

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestInit_Parquet(t *testing.T) {
	dir := t.TempDir()
	_, err := runRunbal(t, "init", dir, "--format", "parquet")
	require.NoError(t, err)

	cfg, err := config.Load(filepath.Join(dir, config.FileName))
	require.NoError(t, err)
	assert.Equal(t, config.FormatParquet, cfg.Inputs.Format)
	assert.Equal(t, "data/balances.parquet", cfg.Inputs.Snapshots)
}

func TestInit_UnknownFormat(t *testing.T) {
	dir := t.TempDir()
	_, err := runRunbal(t, "init", dir, "--format", "xlsx")
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, config.FileName))
}

func TestInit_Gitignore(t *testing.T) {
	dir := t.TempDir()
	_, err := runRunbal(t, "init", dir)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, "out/\n", string(data))
}

func TestInit_RefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	_, err := runRunbal(t, "init", dir)
	require.NoError(t, err)

	_, err = runRunbal(t, "init", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = runRunbal(t, "init", dir, "--force")
	require.NoError(t, err)
}

func TestVersion(t *testing.T) {
	out, err := runRunbal(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, out, "dev (commit: none, built: unknown)")
}
