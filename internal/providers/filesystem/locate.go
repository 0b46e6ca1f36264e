package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/charlievieth/fastwalk"
)

var (
	ErrMarkerNotFound = errors.New("marker file not found")
	ErrAmbiguousRoot  = errors.New("multiple candidate roots")
)

// FindRoot returns the directory under dir that directly contains marker.
// The marker may sit at dir itself or inside one wrapper directory, which
// is how most zip tools package a folder.
func FindRoot(dir, marker string) (string, error) {
	var (
		mu    sync.Mutex
		found []string
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		rel, relErr := filepath.Rel(dir, p)
		if relErr != nil {
			return nil
		}
		depth := strings.Count(rel, string(os.PathSeparator))

		if d.IsDir() {
			if p != dir && depth >= 1 {
				return fastwalk.SkipDir
			}
			return nil
		}

		if d.Name() == marker && depth <= 1 {
			mu.Lock()
			found = append(found, filepath.Dir(p))
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk failed: %w", err)
	}

	if len(found) == 0 {
		return "", fmt.Errorf("%w: %s", ErrMarkerNotFound, marker)
	}

	// A marker at the top level wins over wrapped ones
	sort.Slice(found, func(i, j int) bool { return len(found[i]) < len(found[j]) })
	if found[0] == filepath.Clean(dir) {
		return found[0], nil
	}
	if len(found) > 1 {
		return "", fmt.Errorf("%w: %s", ErrAmbiguousRoot, strings.Join(found, ", "))
	}
	return found[0], nil
}
