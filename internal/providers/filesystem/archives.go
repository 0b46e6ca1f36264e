package filesystem

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
)

var (
	ErrUnsupportedArchive = errors.New("unsupported archive format")
	ErrUnsafePath         = errors.New("archive entry escapes destination")
	ErrArchiveTooLarge    = errors.New("archive exceeds extraction limits")
)

// Format is a detected archive container
type Format string

const (
	FormatZip    Format = "zip"
	FormatTar    Format = "tar"
	FormatTarGz  Format = "tar.gz"
	FormatTarZst Format = "tar.zst"
)

// DefaultSkip lists OS junk never extracted from package archives
var DefaultSkip = []string{
	"__MACOSX/**",
	"**/.DS_Store",
	"**/Thumbs.db",
	"**/._*",
}

// Extractor unpacks package archives with size, count and path limits
type Extractor struct {
	MaxBytes int64    // total uncompressed bytes, 0 means unlimited
	MaxFiles int      // total regular files, 0 means unlimited
	Skip     []string // doublestar patterns matched against entry paths
}

// ExtractResult summarizes one extraction
type ExtractResult struct {
	Format  Format
	Files   int
	Bytes   int64
	Skipped int
}

// NewExtractor creates an extractor with the default junk filters
func NewExtractor(maxBytes int64) *Extractor {
	return &Extractor{
		MaxBytes: maxBytes,
		MaxFiles: 10000,
		Skip:     DefaultSkip,
	}
}

// DetectFormat sniffs the archive container from its leading bytes
func DetectFormat(archive string) (Format, error) {
	mt, err := mimetype.DetectFile(archive)
	if err != nil {
		return "", fmt.Errorf("detect failed: %w", err)
	}

	for m := mt; m != nil; m = m.Parent() {
		switch {
		case m.Is("application/zip"):
			return FormatZip, nil
		case m.Is("application/gzip"):
			return FormatTarGz, nil
		case m.Is("application/zstd"):
			return FormatTarZst, nil
		case m.Is("application/x-tar"):
			return FormatTar, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedArchive, mt.String())
}

// Extract unpacks archive into dest, which is created if needed
func (e *Extractor) Extract(ctx context.Context, archive, dest string) (*ExtractResult, error) {
	format, err := DetectFormat(archive)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create destination: %w", err)
	}

	w := &writer{ex: e, dest: filepath.Clean(dest), result: &ExtractResult{Format: format}}

	switch format {
	case FormatZip:
		err = w.zip(ctx, archive)
	default:
		err = w.tar(ctx, archive, format)
	}
	if err != nil {
		return nil, err
	}
	return w.result, nil
}

// writer carries the running totals of one extraction
type writer struct {
	ex     *Extractor
	dest   string
	result *ExtractResult
}

func (w *writer) zip(ctx context.Context, archive string) error {
	// Insecure names are rejected per entry below
	reader, err := zip.OpenReader(archive)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("open failed: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("extraction cancelled: %w", err)
		}

		mode := file.Mode()
		switch {
		case mode.IsDir():
			if err := w.dir(file.Name); err != nil {
				return err
			}
		case mode.IsRegular():
			rc, err := file.Open()
			if err != nil {
				return fmt.Errorf("open entry %s: %w", file.Name, err)
			}
			err = w.file(file.Name, rc, mode)
			rc.Close()
			if err != nil {
				return err
			}
		default:
			// Symlinks and devices never belong in a package
			w.result.Skipped++
		}
	}
	return nil
}

func (w *writer) tar(ctx context.Context, archive string, format Format) error {
	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("open failed: %w", err)
	}
	defer f.Close()

	var src io.Reader = f
	switch format {
	case FormatTarGz:
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("gzip failed: %w", err)
		}
		defer gz.Close()
		src = gz
	case FormatTarZst:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return fmt.Errorf("zstd failed: %w", err)
		}
		defer zr.Close()
		src = zr
	}

	tr := tar.NewReader(src)
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("extraction cancelled: %w", err)
		}

		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tar failed: %w", err)
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := w.dir(hdr.Name); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := w.file(hdr.Name, tr, hdr.FileInfo().Mode()); err != nil {
				return err
			}
		default:
			w.result.Skipped++
		}
	}
}

// target resolves an entry name inside dest, rejecting traversal
func (w *writer) target(name string) (string, bool, error) {
	clean := path.Clean(strings.ReplaceAll(name, `\`, "/"))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "." || clean == "" {
		return "", true, nil
	}
	if w.skip(clean) {
		return "", true, nil
	}

	full := filepath.Join(w.dest, filepath.FromSlash(clean))
	if !strings.HasPrefix(full, w.dest+string(os.PathSeparator)) {
		return "", false, fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return full, false, nil
}

func (w *writer) skip(name string) bool {
	for _, pattern := range w.ex.Skip {
		if ok, _ := doublestar.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (w *writer) dir(name string) error {
	full, skipped, err := w.target(name)
	if err != nil {
		return err
	}
	if skipped {
		w.result.Skipped++
		return nil
	}
	return os.MkdirAll(full, 0o755)
}

func (w *writer) file(name string, r io.Reader, mode os.FileMode) error {
	full, skipped, err := w.target(name)
	if err != nil {
		return err
	}
	if skipped {
		w.result.Skipped++
		return nil
	}

	if w.ex.MaxFiles > 0 && w.result.Files >= w.ex.MaxFiles {
		return fmt.Errorf("%w: more than %d files", ErrArchiveTooLarge, w.ex.MaxFiles)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	dst, err := os.OpenFile(full, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()|0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer dst.Close()

	src := r
	if w.ex.MaxBytes > 0 {
		src = io.LimitReader(r, w.ex.MaxBytes-w.result.Bytes+1)
	}
	n, err := io.Copy(dst, src)
	if err != nil {
		return fmt.Errorf("extract %s: %w", name, err)
	}

	w.result.Bytes += n
	w.result.Files++
	if w.ex.MaxBytes > 0 && w.result.Bytes > w.ex.MaxBytes {
		return fmt.Errorf("%w: more than %d bytes", ErrArchiveTooLarge, w.ex.MaxBytes)
	}
	return nil
}
