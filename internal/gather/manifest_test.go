package gather

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.txt")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))
	return path
}

func TestReadManifest(t *testing.T) {
	path := writeManifest(t, "a/first.sig\nb/second.sig\nthird.sig\n")

	paths, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"a/first.sig", "b/second.sig", "third.sig"}, paths)
}

func TestReadManifestSkipsBlankLines(t *testing.T) {
	path := writeManifest(t, "first.sig\n\n\nsecond.sig\n\n")

	paths, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"first.sig", "second.sig"}, paths)
}

func TestReadManifestEmpty(t *testing.T) {
	path := writeManifest(t, "")

	paths, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestReadManifestMissing(t *testing.T) {
	_, err := ReadManifest(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}
