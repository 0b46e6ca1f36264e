package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeZip(t *testing.T, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	p := filepath.Join(t.TempDir(), "pkg.zip")
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o644))
	return p
}

func TestPackageCommands(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	dataDir := t.TempDir()
	archive := writeZip(t, map[string]string{
		"manifest.json": `{"id":"demo","name":"Demo","version":"1.2","type":"image"}`,
		"code.js":       `plugin.getListings = function () { return []; };`,
	})

	out, err := run(t, "--data-dir", dataDir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No packages installed.")

	out, err = run(t, "--data-dir", dataDir, "install", archive)
	require.NoError(t, err)
	assert.Contains(t, out, "Installed demo 1.2 (image)")

	out, err = run(t, "--data-dir", dataDir, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "demo")
	assert.Contains(t, out, "Demo")

	out, err = run(t, "--data-dir", dataDir, "remove", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed demo")
	assert.NoDirExists(t, filepath.Join(dataDir, "Sources", "demo"))
}

func TestCommandErrors(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	dataDir := t.TempDir()

	_, err := run(t, "--data-dir", dataDir, "install")
	assert.Error(t, err)

	_, err = run(t, "--data-dir", dataDir, "install", "ftp://example.org/p.zip")
	assert.Error(t, err)

	_, err = run(t, "--data-dir", dataDir, "remove", "../escape")
	assert.Error(t, err)
}
