// Package menu turns a directory into a Gopher menu.
package menu

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/marmos91/burrow/internal/logger"
	"github.com/marmos91/burrow/internal/protocol/gopher"
	"github.com/marmos91/burrow/pkg/fsroot"
)

// Origin is the host and port advertised in every menu entry. Clients use
// it to open the follow-up connection for the entry's selector.
type Origin struct {
	Host string
	Port int
}

// Builder lists containers. It holds only read-only state and may be shared
// by all workers.
type Builder struct {
	resolver *fsroot.Resolver
	origin   Origin
}

// NewBuilder returns a builder reading through resolver and advertising
// origin.
func NewBuilder(resolver *fsroot.Resolver, origin Origin) *Builder {
	if resolver == nil {
		panic("resolver cannot be nil")
	}
	return &Builder{
		resolver: resolver,
		origin:   origin,
	}
}

// Items lists the immediate children of the container named by selector.
//
// Children are sorted by name. A child whose metadata cannot be read, or
// whose name cannot be framed on a menu line, is skipped and the listing
// continues. Failing to open or read the container itself is returned as an
// error.
func (b *Builder) Items(selector string) ([]gopher.Item, error) {
	dir, err := b.resolver.Locate(selector)
	if err != nil {
		return nil, err
	}

	names, err := b.readNames(dir)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)

	prefix := containerPrefix(selector)
	items := make([]gopher.Item, 0, len(names))

	for _, name := range names {
		itemType, err := b.classifyChild(filepath.Join(dir, name))
		if err != nil {
			logger.Debug("Skipping menu entry %q in %s: %v", name, dir, err)
			continue
		}

		item := gopher.Item{
			Type:     itemType,
			Display:  name,
			Selector: prefix + name,
			Host:     b.origin.Host,
			Port:     b.origin.Port,
		}
		if itemType.IsContainer() {
			item.Selector += "/"
		}

		if !item.Encodable() {
			logger.Debug("Skipping menu entry %q in %s: name cannot be encoded", name, dir)
			continue
		}

		items = append(items, item)
	}

	return items, nil
}

// Build lists the container named by selector and renders it as a menu
// body (without the terminator).
func (b *Builder) Build(selector string) ([]byte, error) {
	items, err := b.Items(selector)
	if err != nil {
		return nil, err
	}
	return gopher.EncodeMenu(items), nil
}

// classifyChild resolves links in a child path before classifying it, so
// links leading out of the root never reach a menu.
func (b *Builder) classifyChild(path string) (gopher.ItemType, error) {
	resolved, err := b.resolver.Canonical(path)
	if err != nil {
		return 0, err
	}
	return b.resolver.Classify(resolved)
}

func (b *Builder) readNames(dir string) ([]string, error) {
	f, err := b.resolver.Fs().Open(dir)
	if err != nil {
		return nil, fmt.Errorf("open directory %s: %w", dir, err)
	}
	defer func() { _ = f.Close() }()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}
	return names, nil
}

// containerPrefix returns the selector prefix for children of the container
// at selector. The root ("" or "/") keeps its form; any other container
// selector gets exactly one trailing slash so that child selectors are
// navigable whether or not the client sent one.
func containerPrefix(selector string) string {
	if selector == "" || selector == "/" {
		return selector
	}
	return strings.TrimRight(selector, "/") + "/"
}
