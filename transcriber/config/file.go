package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/blazeiburgess/WaoN/logging"
)

const (
	SystemConfigPath = "/etc/waon.conf"
	UserConfigPath   = "~/.waonrc"
)

// ExpandPath replaces a leading "~" with the user's home directory.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// LoadFile overlays the keys present in a TOML configuration file onto opts.
// Keys absent from the file keep their current values.
func LoadFile(path string, opts *Options) error {
	logger := logging.WithFields(logging.Fields{
		"component": "config",
		"function":  "LoadFile",
		"path":      path,
	})

	path = ExpandPath(path)
	meta, err := toml.DecodeFile(path, opts)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}

	if meta.IsDefined("note-detection", "relative-cutoff") && !meta.IsDefined("note-detection", "use-relative-cutoff") {
		opts.NoteDetection.UseRelativeCutoff = true
	}

	for _, key := range meta.Undecoded() {
		logger.Warn("Unknown configuration key", logging.Fields{
			"key": key.String(),
		})
	}

	logger.Debug("Configuration file loaded", logging.Fields{
		"keys": len(meta.Keys()),
	})
	return nil
}

// LoadDefaultFiles applies the system file and then the user file, skipping
// any that do not exist. It returns the paths that were loaded.
func LoadDefaultFiles(opts *Options) ([]string, error) {
	var loaded []string
	for _, path := range []string{SystemConfigPath, ExpandPath(UserConfigPath)} {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if err := LoadFile(path, opts); err != nil {
			return loaded, err
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

// SaveFile writes opts as a TOML configuration file.
func SaveFile(path string, opts *Options) error {
	f, err := os.Create(ExpandPath(path))
	if err != nil {
		return err
	}

	if _, err := f.WriteString("# WaoN configuration file\n\n"); err != nil {
		f.Close()
		return err
	}
	if err := toml.NewEncoder(f).Encode(opts); err != nil {
		f.Close()
		return fmt.Errorf("encode configuration: %w", err)
	}
	return f.Close()
}
