// Package paths provides the standardized on-disk layout of the plugin host.
//
// Every component that touches the data directory goes through Layout so
// installs, discovery and the JSON preference store agree on locations.
package paths

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Data directory subdirectories
const (
	// SourcesDir contains installed text, image and video packages
	SourcesDir = "Sources"

	// TrackersDir contains installed tracker packages
	TrackersDir = "Trackers"

	// StagingDir holds extracted archives before they are committed
	StagingDir = ".staging"

	// DownloadsDir holds remote archives while they are being installed
	DownloadsDir = ".downloads"

	// PreferencesFile is the JSON preferences store
	PreferencesFile = "preferences.json"

	// KeychainFile is the encrypted credential store
	KeychainFile = "keychain.json"

	// KeychainSecretFile holds the generated keychain sealing key
	KeychainSecretFile = "keychain.key"
)

// ErrInvalidPackageID marks an id that cannot name a package directory
var ErrInvalidPackageID = errors.New("invalid package ID")

// Layout resolves paths relative to a data directory root
type Layout struct {
	Root string
}

// New returns a layout rooted at dir
func New(dir string) Layout {
	return Layout{Root: filepath.Clean(dir)}
}

// Sources returns the root of installed source packages
func (l Layout) Sources() string {
	return filepath.Join(l.Root, SourcesDir)
}

// Trackers returns the root of installed tracker packages
func (l Layout) Trackers() string {
	return filepath.Join(l.Root, TrackersDir)
}

// Staging returns the staging root used during installs
func (l Layout) Staging() string {
	return filepath.Join(l.Root, StagingDir)
}

// Downloads returns the temporary download root
func (l Layout) Downloads() string {
	return filepath.Join(l.Root, DownloadsDir)
}

// Preferences returns the preference store file
func (l Layout) Preferences() string {
	return filepath.Join(l.Root, PreferencesFile)
}

// Keychain returns the credential store file
func (l Layout) Keychain() string {
	return filepath.Join(l.Root, KeychainFile)
}

// KeychainSecret returns the keychain sealing key file
func (l Layout) KeychainSecret() string {
	return filepath.Join(l.Root, KeychainSecretFile)
}

// Package returns the permanent directory of a package under root
func (l Layout) Package(root, id string) string {
	return filepath.Join(root, id)
}

// StandardDirectories returns all directories that must exist before startup
func (l Layout) StandardDirectories() []string {
	return []string{
		l.Sources(),
		l.Trackers(),
		l.Staging(),
		l.Downloads(),
	}
}

// IsWithin reports whether path lies inside root after cleaning
func IsWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// ValidatePackageID checks if a package ID is safe for path construction
func ValidatePackageID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidPackageID)
	}
	if filepath.IsAbs(id) {
		return fmt.Errorf("%w: absolute path %s", ErrInvalidPackageID, id)
	}
	if filepath.Clean(id) != id || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return fmt.Errorf("%w: %s contains path components", ErrInvalidPackageID, id)
	}
	return nil
}
