package filesystem

import (
	"archive/tar"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var packageFiles = map[string]string{
	"manifest.json": `{"id":"demo"}`,
	"code.js":       `plugin = {}`,
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

func writeTar(t *testing.T, files map[string]string, format Format) string {
	t.Helper()
	var buf bytes.Buffer
	var out io.WriteCloser
	switch format {
	case FormatTarGz:
		out = gzip.NewWriter(&buf)
	case FormatTarZst:
		zw, err := zstd.NewWriter(&buf)
		require.NoError(t, err)
		out = zw
	}

	var sink io.Writer = &buf
	if out != nil {
		sink = out
	}
	tw := tar.NewWriter(sink)
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0o644,
			Size:     int64(len(body)),
			Typeflag: tar.TypeReg,
		}))
		_, err := io.WriteString(tw, body)
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	if out != nil {
		require.NoError(t, out.Close())
	}

	p := filepath.Join(t.TempDir(), "pkg.bin")
	require.NoError(t, os.WriteFile(p, buf.Bytes(), 0o644))
	return p
}

func TestExtractFormats(t *testing.T) {
	tests := []struct {
		name    string
		archive func(t *testing.T) string
		format  Format
	}{
		{"zip", func(t *testing.T) string { return writeZip(t, packageFiles) }, FormatZip},
		{"tar", func(t *testing.T) string { return writeTar(t, packageFiles, FormatTar) }, FormatTar},
		{"tar.gz", func(t *testing.T) string { return writeTar(t, packageFiles, FormatTarGz) }, FormatTarGz},
		{"tar.zst", func(t *testing.T) string { return writeTar(t, packageFiles, FormatTarZst) }, FormatTarZst},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dest := t.TempDir()
			res, err := NewExtractor(0).Extract(context.Background(), tt.archive(t), dest)
			require.NoError(t, err)

			assert.Equal(t, tt.format, res.Format)
			assert.Equal(t, 2, res.Files)

			data, err := os.ReadFile(filepath.Join(dest, "code.js"))
			require.NoError(t, err)
			assert.Equal(t, "plugin = {}", string(data))
		})
	}
}

func TestExtractSkipsJunk(t *testing.T) {
	archive := writeZip(t, map[string]string{
		"demo/manifest.json":       `{}`,
		"demo/code.js":             `x`,
		"demo/.DS_Store":           `junk`,
		"__MACOSX/demo/._code.js":  `junk`,
		"__MACOSX/demo/._manifest": `junk`,
		"demo/assets/.DS_Store":    `junk`,
		"demo/assets/icon.png":     `png`,
	})

	dest := t.TempDir()
	res, err := NewExtractor(0).Extract(context.Background(), archive, dest)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Files)
	assert.Equal(t, 4, res.Skipped)
	assert.NoDirExists(t, filepath.Join(dest, "__MACOSX"))
	assert.NoFileExists(t, filepath.Join(dest, "demo", ".DS_Store"))
	assert.FileExists(t, filepath.Join(dest, "demo", "assets", "icon.png"))
}

func TestExtractRejectsTraversal(t *testing.T) {
	archive := writeZip(t, map[string]string{
		"../../evil.js": `boom`,
	})

	dest := filepath.Join(t.TempDir(), "staging")
	_, err := NewExtractor(0).Extract(context.Background(), archive, dest)
	assert.ErrorIs(t, err, ErrUnsafePath)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dest), "evil.js"))
}

func TestExtractLimits(t *testing.T) {
	archive := writeZip(t, map[string]string{
		"manifest.json": `{"id":"demo","padding":"` + string(bytes.Repeat([]byte("x"), 512)) + `"}`,
	})

	_, err := NewExtractor(100).Extract(context.Background(), archive, t.TempDir())
	assert.ErrorIs(t, err, ErrArchiveTooLarge)

	ex := NewExtractor(0)
	ex.MaxFiles = 1
	_, err = ex.Extract(context.Background(), writeZip(t, packageFiles), t.TempDir())
	assert.ErrorIs(t, err, ErrArchiveTooLarge)
}

func TestExtractUnsupported(t *testing.T) {
	p := filepath.Join(t.TempDir(), "pkg.zip")
	require.NoError(t, os.WriteFile(p, []byte("this is plain text, not an archive"), 0o644))

	_, err := NewExtractor(0).Extract(context.Background(), p, t.TempDir())
	assert.ErrorIs(t, err, ErrUnsupportedArchive)
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewExtractor(0).Extract(ctx, writeZip(t, packageFiles), t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFindRoot(t *testing.T) {
	t.Run("top level", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.json"), nil, 0o644))

		root, err := FindRoot(dir, "manifest.json")
		require.NoError(t, err)
		assert.Equal(t, filepath.Clean(dir), root)
	})

	t.Run("one wrapper", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "demo-1.0"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "demo-1.0", "manifest.json"), nil, 0o644))

		root, err := FindRoot(dir, "manifest.json")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "demo-1.0"), root)
	})

	t.Run("too deep", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "a", "b"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "a", "b", "manifest.json"), nil, 0o644))

		_, err := FindRoot(dir, "manifest.json")
		assert.ErrorIs(t, err, ErrMarkerNotFound)
	})

	t.Run("ambiguous", func(t *testing.T) {
		dir := t.TempDir()
		for _, sub := range []string{"a", "b"} {
			require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
			require.NoError(t, os.WriteFile(filepath.Join(dir, sub, "manifest.json"), nil, 0o644))
		}

		_, err := FindRoot(dir, "manifest.json")
		assert.ErrorIs(t, err, ErrAmbiguousRoot)
	})
}
