package fsroot

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/burrow/internal/protocol/gopher"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRoot = "/srv/gopher"

func newTestFs(t *testing.T) afero.Fs {
	t.Helper()

	fsys := afero.NewMemMapFs()
	require.NoError(t, fsys.MkdirAll(filepath.Join(testRoot, "files", "nested"), 0755))
	require.NoError(t, afero.WriteFile(fsys, filepath.Join(testRoot, "about.txt"), []byte("hello\n"), 0644))
	require.NoError(t, afero.WriteFile(fsys, filepath.Join(testRoot, "files", "notes.txt"), []byte("notes"), 0644))
	require.NoError(t, afero.WriteFile(fsys, "/etc/passwd", []byte("root:x:0:0"), 0644))
	return fsys
}

func TestResolve(t *testing.T) {
	r := NewResolver(newTestFs(t), testRoot)

	tests := []struct {
		name     string
		selector string
		wantPath string
		wantType gopher.ItemType
	}{
		{name: "empty selector is root", selector: "", wantPath: testRoot, wantType: gopher.ItemDirectory},
		{name: "slash is root", selector: "/", wantPath: testRoot, wantType: gopher.ItemDirectory},
		{name: "file", selector: "about.txt", wantPath: testRoot + "/about.txt", wantType: gopher.ItemFile},
		{name: "leading slash file", selector: "/about.txt", wantPath: testRoot + "/about.txt", wantType: gopher.ItemFile},
		{name: "directory with trailing slash", selector: "files/", wantPath: testRoot + "/files", wantType: gopher.ItemDirectory},
		{name: "directory without trailing slash", selector: "files", wantPath: testRoot + "/files", wantType: gopher.ItemDirectory},
		{name: "nested file", selector: "files/notes.txt", wantPath: testRoot + "/files/notes.txt", wantType: gopher.ItemFile},
		{name: "parent segment staying inside", selector: "files/nested/../notes.txt", wantPath: testRoot + "/files/notes.txt", wantType: gopher.ItemFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target, err := r.Resolve(tt.selector)
			require.NoError(t, err)
			assert.Equal(t, filepath.FromSlash(tt.wantPath), target.Path)
			assert.Equal(t, tt.wantType, target.Type)
			assert.Equal(t, tt.selector, target.Selector)
		})
	}
}

func TestResolve_NotFound(t *testing.T) {
	r := NewResolver(newTestFs(t), testRoot)

	_, err := r.Resolve("missing/thing.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrForbidden))
}

// countingFs records every Stat so tests can prove that forbidden selectors
// never reach the filesystem.
type countingFs struct {
	afero.Fs
	stats []string
}

func (c *countingFs) Stat(name string) (os.FileInfo, error) {
	c.stats = append(c.stats, name)
	return c.Fs.Stat(name)
}

func TestResolve_Traversal(t *testing.T) {
	fsys := &countingFs{Fs: newTestFs(t)}
	r := NewResolver(fsys, testRoot)

	selectors := []string{
		"..",
		"../",
		"../../etc/passwd",
		"/../../etc/passwd",
		"files/../../gopher/../../etc/passwd",
		"files/../..",
		"./../etc",
	}

	for _, selector := range selectors {
		t.Run(selector, func(t *testing.T) {
			_, err := r.Resolve(selector)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrForbidden)
		})
	}

	assert.Empty(t, fsys.stats, "forbidden selectors must not touch the filesystem")
}

func TestResolve_TraversalFromFilesystemRoot(t *testing.T) {
	fsys := newTestFs(t)
	r := NewResolver(fsys, "/srv")

	_, err := r.Resolve("/../etc/passwd")
	assert.ErrorIs(t, err, ErrForbidden)

	rootResolver := NewResolver(fsys, "/")
	_, err = rootResolver.Resolve("../etc/passwd")
	assert.ErrorIs(t, err, ErrForbidden)

	// A legitimate absolute-looking selector stays under "/".
	target, err := rootResolver.Resolve("/etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, gopher.ItemFile, target.Type)
}

type brokenStatFs struct {
	afero.Fs
}

func (brokenStatFs) Stat(name string) (os.FileInfo, error) {
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrPermission}
}

func TestResolve_StatFailure(t *testing.T) {
	r := NewResolver(brokenStatFs{Fs: afero.NewMemMapFs()}, testRoot)

	_, err := r.Resolve("about.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestNewResolver(t *testing.T) {
	r := NewResolver(afero.NewMemMapFs(), "/srv/gopher/")
	assert.Equal(t, filepath.Clean("/srv/gopher"), r.Root())

	assert.Equal(t, ".", NewResolver(afero.NewMemMapFs(), "").Root())
	assert.Panics(t, func() { NewResolver(nil, "/") })
}

// newOSTree lays out a served root and a sibling directory outside it on the
// host filesystem, returning the root.
func newOSTree(t *testing.T) (root, outside string) {
	t.Helper()

	base := t.TempDir()
	root = filepath.Join(base, "root")
	outside = filepath.Join(base, "outside")

	require.NoError(t, os.MkdirAll(filepath.Join(root, "files"), 0o755))
	require.NoError(t, os.MkdirAll(outside, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "about.txt"), []byte("hello\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "files", "notes.txt"), []byte("notes"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("secret"), 0o644))
	return root, outside
}

func symlink(t *testing.T, target, link string) {
	t.Helper()
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
}

func TestResolve_OSNotFound(t *testing.T) {
	root, _ := newOSTree(t)
	r := NewResolver(afero.NewReadOnlyFs(afero.NewOsFs()), root)

	for _, selector := range []string{
		"missing.txt",
		"about.txt/nope",
		"files/notes.txt/deeper/still",
		strings.Repeat("n", 300),
		"files/" + strings.Repeat("n", 300) + "/x",
	} {
		_, err := r.Resolve(selector)
		assert.ErrorIs(t, err, ErrNotFound, "selector %q", selector)
	}
}

func TestResolve_SymlinkInsideRoot(t *testing.T) {
	root, _ := newOSTree(t)
	symlink(t, "files", filepath.Join(root, "alias"))
	symlink(t, filepath.Join(root, "about.txt"), filepath.Join(root, "files", "about-link.txt"))
	r := NewResolver(afero.NewReadOnlyFs(afero.NewOsFs()), root)

	target, err := r.Resolve("alias/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "files", "notes.txt"), target.Path)
	assert.Equal(t, gopher.ItemFile, target.Type)

	target, err = r.Resolve("alias/")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "files"), target.Path)
	assert.Equal(t, gopher.ItemDirectory, target.Type)

	target, err = r.Resolve("files/about-link.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "about.txt"), target.Path)
}

func TestResolve_SymlinkEscapingRoot(t *testing.T) {
	root, outside := newOSTree(t)
	symlink(t, outside, filepath.Join(root, "escape"))
	symlink(t, filepath.Join("..", "..", "outside", "secret.txt"), filepath.Join(root, "files", "relative.txt"))
	symlink(t, "/", filepath.Join(root, "slash"))
	r := NewResolver(afero.NewReadOnlyFs(afero.NewOsFs()), root)

	for _, selector := range []string{"escape", "escape/secret.txt", "files/relative.txt", "slash/etc"} {
		_, err := r.Resolve(selector)
		assert.ErrorIs(t, err, ErrForbidden, "selector %q", selector)
	}
}

func TestResolve_SymlinkLoop(t *testing.T) {
	root, _ := newOSTree(t)
	symlink(t, "b", filepath.Join(root, "a"))
	symlink(t, "a", filepath.Join(root, "b"))
	r := NewResolver(afero.NewReadOnlyFs(afero.NewOsFs()), root)

	_, err := r.Resolve("a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCanonical_WithoutSymlinkSupport(t *testing.T) {
	r := NewResolver(newTestFs(t), testRoot)

	path, err := r.Canonical(filepath.Join(testRoot, "about.txt"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(testRoot, "about.txt"), path)
}
