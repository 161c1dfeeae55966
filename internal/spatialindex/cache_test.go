package spatialindex

import (
	"io"
	"io/fs"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrascope-data/gridded.report/internal/fsutil"
	"github.com/terrascope-data/gridded.report/internal/geometry"
)

// spyFS wraps a FileSystem and counts every operation, so tests can assert
// that a code path performed no filesystem work at all.
type spyFS struct {
	inner fsutil.FileSystem
	calls int
}

func (s *spyFS) Open(name string) (fs.File, error) {
	s.calls++
	return s.inner.Open(name)
}

func (s *spyFS) Create(name string) (io.WriteCloser, error) {
	s.calls++
	return s.inner.Create(name)
}

func (s *spyFS) ReadFile(name string) ([]byte, error) {
	s.calls++
	return s.inner.ReadFile(name)
}

func (s *spyFS) WriteFile(name string, data []byte, perm os.FileMode) error {
	s.calls++
	return s.inner.WriteFile(name, data, perm)
}

func (s *spyFS) ReadDir(name string) ([]string, error) {
	s.calls++
	return s.inner.ReadDir(name)
}

func (s *spyFS) Stat(name string) (fs.FileInfo, error) {
	s.calls++
	return s.inner.Stat(name)
}

func (s *spyFS) MkdirAll(path string, perm os.FileMode) error {
	s.calls++
	return s.inner.MkdirAll(path, perm)
}

func (s *spyFS) Remove(name string) error {
	s.calls++
	return s.inner.Remove(name)
}

func (s *spyFS) Exists(name string) bool {
	s.calls++
	return s.inner.Exists(name)
}

func TestResolveBuildsOncePerLocation(t *testing.T) {
	swath := testSwath(t, 3, 4, 34.0, -118.0, 0.0005)
	grid, err := geometry.Geographic(swath, 0.0007)
	require.NoError(t, err)

	mfs := fsutil.NewMemoryFileSystem()
	cache := NewCache(mfs, true)

	first, err := cache.Resolve(swath, grid, 60, "/cache/scene.kdindex")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Stats().Builds)
	assert.True(t, mfs.Exists("/cache/scene.kdindex"), "index must be persisted")

	// A second resolution for the same location is served from the memo,
	// not rebuilt, even if the on-disk file disappears meanwhile.
	require.NoError(t, mfs.Remove("/cache/scene.kdindex"))
	second, err := cache.Resolve(swath, grid, 60, "/cache/scene.kdindex")
	require.NoError(t, err)
	assert.Same(t, first, second, "resolution must reuse the already resolved index")
	assert.Equal(t, 1, cache.Stats().Builds)
	assert.Equal(t, 1, cache.Stats().MemoHits)
}

func TestResolveLoadsExisting(t *testing.T) {
	swath := testSwath(t, 3, 4, 34.0, -118.0, 0.0005)
	grid, err := geometry.Geographic(swath, 0.0007)
	require.NoError(t, err)

	mfs := fsutil.NewMemoryFileSystem()

	// First process invocation builds and persists.
	warm := NewCache(mfs, true)
	_, err = warm.Resolve(swath, grid, 60, "/cache/scene.kdindex")
	require.NoError(t, err)

	// A fresh cache (new invocation) loads instead of rebuilding.
	cold := NewCache(mfs, true)
	_, err = cold.Resolve(swath, grid, 60, "/cache/scene.kdindex")
	require.NoError(t, err)
	assert.Equal(t, 0, cold.Stats().Builds)
	assert.Equal(t, 1, cold.Stats().Loads)
}

func TestResolveUntrustedCacheRebuilds(t *testing.T) {
	swath := testSwath(t, 3, 4, 34.0, -118.0, 0.0005)
	grid, err := geometry.Geographic(swath, 0.0007)
	require.NoError(t, err)

	mfs := fsutil.NewMemoryFileSystem()
	warm := NewCache(mfs, true)
	_, err = warm.Resolve(swath, grid, 60, "/cache/scene.kdindex")
	require.NoError(t, err)

	untrusting := NewCache(mfs, false)
	_, err = untrusting.Resolve(swath, grid, 60, "/cache/scene.kdindex")
	require.NoError(t, err)
	assert.Equal(t, 1, untrusting.Stats().Builds, "trust_cache=false must force a rebuild")
	assert.Equal(t, 0, untrusting.Stats().Loads)
}

func TestResolveEmptyLocationNeverPersists(t *testing.T) {
	swath := testSwath(t, 3, 4, 34.0, -118.0, 0.0005)
	grid, err := geometry.Geographic(swath, 0.0007)
	require.NoError(t, err)

	mfs := fsutil.NewMemoryFileSystem()
	spy := &spyFS{inner: mfs}
	cache := NewCache(spy, true)

	_, err = cache.Resolve(swath, grid, 60, "")
	require.NoError(t, err)
	assert.Equal(t, 0, spy.calls, "no cache location means no filesystem activity")

	// Without a location there is nothing to memoize against: each call
	// rebuilds.
	_, err = cache.Resolve(swath, grid, 60, "")
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Stats().Builds)
}
