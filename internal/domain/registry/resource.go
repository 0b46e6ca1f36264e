package registry

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var ErrUnsupportedSource = errors.New("unsupported install source")

// Resource is an acquired install archive. Release must be called on every
// exit path; it is safe to call more than once.
type Resource interface {
	Path() string
	Release() error
}

// Downloader fetches remote archives and listings
type Downloader interface {
	Download(ctx context.Context, rawURL, dir string, maxBytes int64) (string, error)
}

type localResource struct {
	path string
}

func (r *localResource) Path() string   { return r.path }
func (r *localResource) Release() error { return nil }

// tempResource owns a downloaded file and removes it on release
type tempResource struct {
	path string
	once sync.Once
	err  error
}

func (r *tempResource) Path() string { return r.path }

func (r *tempResource) Release() error {
	r.once.Do(func() {
		if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
			r.err = err
		}
	})
	return r.err
}

// acquire resolves src to a local archive. Remote archives land in dir.
func acquire(ctx context.Context, dl Downloader, src, dir string, maxBytes int64) (Resource, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, fmt.Errorf("%w: empty source", ErrUnsupportedSource)
	}

	u, err := url.Parse(src)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// plain paths, including windows drive letters
		return openLocal(src)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		return openLocal(filepath.FromSlash(p))
	case "http", "https":
		if dl == nil {
			return nil, fmt.Errorf("%w: no downloader configured", ErrUnsupportedSource)
		}
		p, err := dl.Download(ctx, src, dir, maxBytes)
		if err != nil {
			return nil, err
		}
		return &tempResource{path: p}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, u.Scheme)
	}
}

func openLocal(p string) (Resource, error) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnsupportedSource, p)
	}
	return &localResource{path: p}, nil
}
