package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig points the commands at a throwaway CSV store.
func writeConfig(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "store:\n  data_dir: " + dir + "\nuploads:\n  dir: " + filepath.Join(dir, "uploads") + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	configFile = path
	t.Cleanup(func() { configFile = "" })
}

func run(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestNextIDCmd(t *testing.T) {
	writeConfig(t)
	assert.Equal(t, "PAT001\n", run(t, nextIDCmd()))
}

func TestDrugsCmd(t *testing.T) {
	writeConfig(t)

	out := run(t, drugsCmd(), "list")
	assert.Contains(t, out, "Paracetamol\n")
	assert.Contains(t, out, "Benadryl\n")

	out = run(t, drugsCmd(), "map", "saridon", "propyphenazone")
	assert.Equal(t, "saridon -> propyphenazone\n", out)
	assert.Contains(t, run(t, drugsCmd(), "list"), "Saridon\n")
}

func TestResolveJWTSecret(t *testing.T) {
	secret, generated, err := resolveJWTSecret("configured")
	require.NoError(t, err)
	assert.Equal(t, "configured", secret)
	assert.False(t, generated)

	secret, generated, err = resolveJWTSecret("")
	require.NoError(t, err)
	assert.True(t, generated)
	assert.Len(t, secret, 64)
}
