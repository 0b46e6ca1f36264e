package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(`{"id":"demo"}`), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "res"), 0o755))
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "res", "icon.png"), png, 0o644))

	inv, err := Inspect(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, inv.Files, 2)

	assert.Equal(t, "manifest.json", inv.Files[0].Path)
	assert.Equal(t, "application/json", inv.Files[0].MIME)
	assert.True(t, inv.Files[0].Text)

	assert.Equal(t, "res/icon.png", inv.Files[1].Path)
	assert.Equal(t, "image/png", inv.Files[1].MIME)
	assert.False(t, inv.Files[1].Text)

	assert.Equal(t, int64(13+len(png)), inv.Bytes)
	assert.Equal(t, "29 B", inv.Size)
}

func TestInspectCancelled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"), []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Inspect(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", formatBytes(512))
	assert.Equal(t, "1.50 KB", formatBytes(1536))
	assert.Equal(t, "2.00 MB", formatBytes(2<<20))
}
