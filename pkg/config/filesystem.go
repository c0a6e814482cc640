package config

import (
	"fmt"
	"path/filepath"

	"github.com/marmos91/burrow/internal/logger"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/afero"
)

// MemoryFilesystemOptions configures the in-memory backend.
type MemoryFilesystemOptions struct {
	// Seed populates the served root with a small demo tree.
	Seed bool `mapstructure:"seed"`
}

// CreateFilesystem builds the read-only filesystem selected by
// cfg.Filesystem and checks that the Gopher root is a directory in it.
func CreateFilesystem(cfg *Config) (afero.Fs, error) {
	var (
		fsys afero.Fs
		err  error
	)

	switch cfg.Filesystem.Type {
	case "os":
		fsys = createOSFilesystem()
	case "memory":
		fsys, err = createMemoryFilesystem(cfg.Filesystem.Memory, cfg.Adapters.Gopher.Root)
	default:
		return nil, fmt.Errorf("unknown filesystem type: %q", cfg.Filesystem.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := checkRoot(fsys, cfg.Adapters.Gopher.Root); err != nil {
		return nil, err
	}

	return fsys, nil
}

func createOSFilesystem() afero.Fs {
	return afero.NewReadOnlyFs(afero.NewOsFs())
}

func createMemoryFilesystem(options map[string]any, root string) (afero.Fs, error) {
	var opts MemoryFilesystemOptions
	if err := decodeOptions(options, &opts); err != nil {
		return nil, fmt.Errorf("invalid memory filesystem config: %w", err)
	}

	mem := afero.NewMemMapFs()
	if err := mem.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create memory root %s: %w", root, err)
	}

	if opts.Seed {
		if err := SeedDemoTree(mem, root); err != nil {
			return nil, err
		}
		logger.Info("Memory filesystem seeded under %s", root)
	}

	return afero.NewReadOnlyFs(mem), nil
}

// decodeOptions decodes a backend options section, rejecting unknown keys.
func decodeOptions(input map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

func checkRoot(fsys afero.Fs, root string) error {
	isDir, err := afero.IsDir(fsys, root)
	if err != nil {
		return fmt.Errorf("gopher root %s: %w", root, err)
	}
	if !isDir {
		return fmt.Errorf("gopher root %s: not a directory", root)
	}
	return nil
}

// SeedDemoTree writes a small tree of menus and documents under root.
func SeedDemoTree(fsys afero.Fs, root string) error {
	dirs := []string{"docs", "images"}
	for _, dir := range dirs {
		if err := fsys.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	files := []struct {
		name    string
		content string
	}{
		{"about.txt", "This is Burrow, a small Gopher server.\n"},
		{"notes.txt", "Menus are sorted by name.\nDirectories end with a slash.\n"},
		{"docs/protocol.txt", "Send a selector line, receive a menu or a file, then a lone dot.\n"},
		{"docs/faq.txt", "Unknown selectors return the root menu.\n"},
		{"images/background1.png", "PNG image content for background1"},
		{"images/background2.jpg", "JPEG image content for background2"},
		{"images/wallpaper.png", "PNG image content for wallpaper"},
	}

	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f.name))
		if err := afero.WriteFile(fsys, path, []byte(f.content), 0o644); err != nil {
			return fmt.Errorf("failed to create %s: %w", f.name, err)
		}
	}

	return nil
}
