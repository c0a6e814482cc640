// Package fsroot maps client selectors onto a directory tree.
//
// A Resolver is anchored at a root directory of an afero.Fs. Every selector
// is joined to the root and canonicalized lexically; the result must remain
// the root itself or one of its descendants, otherwise ErrForbidden is
// returned without touching the filesystem. On filesystems that support
// symbolic links, links below the root are then resolved one component at a
// time and the final path must still be inside the root. Surviving paths are
// stat'ed and classified as containers (directories) or content (everything
// else).
package fsroot

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/marmos91/burrow/internal/protocol/gopher"
	"github.com/spf13/afero"
)

// Target is a resolved selector.
type Target struct {
	// Selector is the client selector that produced this target.
	Selector string

	// Path is the canonical filesystem path inside the root.
	Path string

	// Type is ItemDirectory for containers and ItemFile for content.
	Type gopher.ItemType
}

// Resolver resolves selectors below a fixed root. It holds no mutable state
// and is safe for concurrent use.
type Resolver struct {
	fs      afero.Fs
	root    string
	absRoot string
}

// maxSymlinks bounds link resolution for one path, as SYMLOOP_MAX does.
const maxSymlinks = 40

// NewResolver returns a resolver anchored at root on fsys. root is cleaned
// but not required to exist yet.
func NewResolver(fsys afero.Fs, root string) *Resolver {
	if fsys == nil {
		panic("filesystem cannot be nil")
	}
	if root == "" {
		root = "."
	}
	root = filepath.Clean(root)
	absRoot, err := filepath.Abs(root)
	if err != nil {
		absRoot = root
	}
	return &Resolver{
		fs:      fsys,
		root:    root,
		absRoot: absRoot,
	}
}

// Fs returns the filesystem the resolver reads from.
func (r *Resolver) Fs() afero.Fs {
	return r.fs
}

// Root returns the cleaned root directory.
func (r *Resolver) Root() string {
	return r.root
}

// Path maps selector to its canonical filesystem path without touching the
// filesystem. It fails with ErrForbidden if the path would leave the root.
func (r *Resolver) Path(selector string) (string, error) {
	if escapesRoot(selector) {
		return "", fmt.Errorf("selector %q: %w", selector, ErrForbidden)
	}

	// Selectors use '/' regardless of platform.
	joined := filepath.Join(r.root, filepath.FromSlash(selector))

	if !r.contains(joined) {
		return "", fmt.Errorf("selector %q: %w", selector, ErrForbidden)
	}
	return joined, nil
}

// Locate maps selector to its path with symbolic links resolved.
func (r *Resolver) Locate(selector string) (string, error) {
	path, err := r.Path(selector)
	if err != nil {
		return "", err
	}

	resolved, err := r.Canonical(path)
	if err != nil {
		return "", fmt.Errorf("selector %q: %w", selector, err)
	}
	return resolved, nil
}

// Canonical resolves symbolic links in path, which must already lie inside
// the root, and fails with ErrForbidden if the result leaves it. Links are
// followed relative to the directory holding them; components that do not
// exist are kept as they are and left for Stat to report. Filesystems
// without symlink support return path unchanged.
func (r *Resolver) Canonical(path string) (string, error) {
	lstater, ok := r.fs.(afero.Lstater)
	if !ok {
		return path, nil
	}
	reader, ok := r.fs.(afero.LinkReader)
	if !ok {
		return path, nil
	}

	if !r.contains(path) {
		return "", ErrForbidden
	}
	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		return "", ErrForbidden
	}

	pending := splitPath(rel)
	current := r.root
	links := 0

	for len(pending) > 0 {
		name := pending[0]
		pending = pending[1:]

		if name == ".." {
			current = filepath.Dir(current)
			continue
		}

		next := filepath.Join(current, name)
		info, lstatCalled, err := lstater.LstatIfPossible(next)
		if err != nil || !lstatCalled || info.Mode()&fs.ModeSymlink == 0 {
			current = next
			continue
		}

		if !filepath.IsAbs(current) {
			// Links may climb above a relative root, so continue from its
			// absolute form.
			if relCurrent, err := filepath.Rel(r.root, current); err == nil {
				current = filepath.Join(r.absRoot, relCurrent)
			}
		}

		links++
		if links > maxSymlinks {
			return "", fmt.Errorf("%s: too many levels of symbolic links: %w", path, ErrNotFound)
		}

		target, err := reader.ReadlinkIfPossible(next)
		if err != nil {
			return "", fmt.Errorf("readlink %s: %w", next, err)
		}

		if filepath.IsAbs(target) {
			current = filepath.VolumeName(target) + string(filepath.Separator)
			target = strings.TrimPrefix(target, current)
		}
		pending = append(splitPath(target), pending...)
	}

	if !r.contains(current) {
		return "", ErrForbidden
	}
	return current, nil
}

// Resolve maps selector to a classified target.
//
// Errors:
//   - ErrForbidden if the selector escapes the root (no filesystem access)
//   - ErrNotFound if nothing exists at the resolved path
//   - a wrapped I/O error for any other stat failure
func (r *Resolver) Resolve(selector string) (Target, error) {
	path, err := r.Locate(selector)
	if err != nil {
		return Target{}, err
	}

	itemType, err := r.Classify(path)
	if err != nil {
		return Target{}, fmt.Errorf("selector %q: %w", selector, err)
	}

	return Target{
		Selector: selector,
		Path:     path,
		Type:     itemType,
	}, nil
}

// Classify stats path and reports whether it is a container or content.
// path must already be inside the root.
//
// A path that walks through a regular file (ENOTDIR) or has a component too
// long for the filesystem (ENAMETOOLONG) cannot exist either, so both are
// reported as ErrNotFound alongside fs.ErrNotExist.
func (r *Resolver) Classify(path string) (gopher.ItemType, error) {
	info, err := r.fs.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) ||
			errors.Is(err, syscall.ENOTDIR) ||
			errors.Is(err, syscall.ENAMETOOLONG) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("stat %s: %w", path, err)
	}

	if info.IsDir() {
		return gopher.ItemDirectory, nil
	}
	return gopher.ItemFile, nil
}

// contains reports whether path is the root or one of its descendants,
// comparing lexically.
func (r *Resolver) contains(path string) bool {
	base := r.root
	if filepath.IsAbs(path) != filepath.IsAbs(base) {
		base = r.absRoot
	}

	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// splitPath splits a relative path into its non-empty, non-"." components.
func splitPath(path string) []string {
	var parts []string
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part != "" && part != "." {
			parts = append(parts, part)
		}
	}
	return parts
}

// escapesRoot walks the selector segment by segment and reports whether the
// depth ever drops below the root. The Rel check alone misses this when the
// root is "/" because cleaning clamps "/.." to "/".
func escapesRoot(selector string) bool {
	depth := 0
	for _, segment := range strings.Split(filepath.ToSlash(selector), "/") {
		switch segment {
		case "", ".":
		case "..":
			depth--
			if depth < 0 {
				return true
			}
		default:
			depth++
		}
	}
	return false
}
