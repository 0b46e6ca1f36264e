package filesystem

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
)

// FileEntry describes one file of an installed package
type FileEntry struct {
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	MIME     string    `json:"mime"`
	Text     bool      `json:"text"`
	Modified time.Time `json:"modified"`
}

// Inventory lists a package directory
type Inventory struct {
	Files []FileEntry `json:"files"`
	Bytes int64       `json:"bytes"`
	Size  string      `json:"size"`
}

// Inspect walks dir and reports every regular file with its detected type.
// Paths are slash-separated and relative to dir.
func Inspect(ctx context.Context, dir string) (*Inventory, error) {
	var (
		mu    sync.Mutex
		files []FileEntry
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(p string, d os.DirEntry, err error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err != nil || !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return nil
		}

		entry := FileEntry{
			Path:     filepath.ToSlash(rel),
			Size:     info.Size(),
			MIME:     "application/octet-stream",
			Modified: info.ModTime(),
		}
		if mtype, err := mimetype.DetectFile(p); err == nil {
			entry.MIME = mtype.String()
			entry.Text = isText(mtype)
		}

		mu.Lock()
		files = append(files, entry)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("inspect %s: %w", dir, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	inv := &Inventory{Files: files}
	for _, f := range files {
		inv.Bytes += f.Size
	}
	inv.Size = formatBytes(inv.Bytes)
	return inv, nil
}

func isText(mtype *mimetype.MIME) bool {
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") {
			return true
		}
	}
	switch {
	case mtype.Is("application/json"), mtype.Is("application/javascript"):
		return true
	}
	return false
}

// formatBytes formats bytes to human-readable size
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	units := []string{"KB", "MB", "GB", "TB", "PB"}
	return fmt.Sprintf("%.2f %s", float64(bytes)/float64(div), units[exp])
}
