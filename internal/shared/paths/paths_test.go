package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayout(t *testing.T) {
	l := New("/data/shelf/")

	assert.Equal(t, filepath.Join("/data/shelf", "Sources"), l.Sources())
	assert.Equal(t, filepath.Join("/data/shelf", "Trackers"), l.Trackers())
	assert.Equal(t, filepath.Join("/data/shelf", "Sources", "demo"), l.Package(l.Sources(), "demo"))
	assert.Len(t, l.StandardDirectories(), 4)
}

func TestIsWithin(t *testing.T) {
	assert.True(t, IsWithin("/a/b", "/a/b/c"))
	assert.True(t, IsWithin("/a/b", "/a/b/c/../d"))
	assert.False(t, IsWithin("/a/b", "/a/b/../c"))
	assert.False(t, IsWithin("/a/b", "/a/bc"))
	assert.True(t, IsWithin("/a/b", "/a/b/..c"))
}

func TestValidatePackageID(t *testing.T) {
	assert.NoError(t, ValidatePackageID("demo"))
	assert.NoError(t, ValidatePackageID("com.example.demo"))

	for _, bad := range []string{"", "/abs", "a/b", "..", ".", "a/../b", `a\b`} {
		assert.ErrorIs(t, ValidatePackageID(bad), ErrInvalidPackageID, bad)
	}
}
